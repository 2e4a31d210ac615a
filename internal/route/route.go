// Package route provides hash normalization and the route table.
package route

import (
	"sort"
	"strings"

	"github.com/fragnav/fragnav/internal/errors"
)

// NotFoundKey is the sentinel route key for the fallback page.
const NotFoundKey = "404"

// Route describes one page.
type Route struct {
	// Template is the URI of the page's markup, resolved against the base URL.
	Template string `json:"template" yaml:"template"`
}

// Normalize turns a raw location hash into a canonical route key.
//
// "" and "#" mean the root page. A leading "#" is stripped. Inputs that are
// already canonical ("/"-rooted, or the 404 sentinel) pass through unchanged,
// which makes Normalize idempotent. Anything else is an InvalidRouteKey.
func Normalize(hash string) (string, error) {
	h := hash
	if h == "" || h == "#" {
		return "/", nil
	}
	if strings.HasPrefix(h, "#") {
		h = h[1:]
		if h == "" {
			return "/", nil
		}
	}
	if strings.HasPrefix(h, "/") || h == NotFoundKey {
		return h, nil
	}
	return "", errors.NewInvalidRouteKey(hash)
}

// IsHashHref reports whether an anchor href belongs to this router.
func IsHashHref(href string) bool {
	return strings.HasPrefix(href, "#")
}

// Table maps route keys to routes. Immutable after construction.
type Table struct {
	routes map[string]Route
}

// NewTable builds a route table from a key-to-route mapping.
func NewTable(routes map[string]Route) *Table {
	m := make(map[string]Route, len(routes))
	for k, r := range routes {
		m[k] = r
	}
	return &Table{routes: m}
}

// Get returns the route registered for a key.
func (t *Table) Get(key string) (Route, bool) {
	r, ok := t.routes[key]
	return r, ok
}

// Resolve returns the route for a key, falling back to the 404 entry.
// The returned bool reports whether the fallback was taken. When neither
// the key nor the fallback exists, a RouteNotFound error is returned.
func (t *Table) Resolve(key string) (Route, bool, error) {
	if r, ok := t.routes[key]; ok {
		return r, false, nil
	}
	if r, ok := t.routes[NotFoundKey]; ok {
		return r, true, nil
	}
	return Route{}, false, errors.NewRouteNotFound(key)
}

// Keys returns all route keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}
