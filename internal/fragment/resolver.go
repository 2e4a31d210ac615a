// Package fragment resolves named placeholder slots in a markup tree by
// fetching and splicing partial templates, recursively and to full depth.
package fragment

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/fragnav/fragnav/internal/dom"
	"github.com/fragnav/fragnav/internal/errors"
	"github.com/fragnav/fragnav/internal/logger"
)

// DefaultMaxDepth bounds fragment nesting. A fragment that references
// itself, directly or transitively, trips the guard instead of recursing
// forever.
const DefaultMaxDepth = 16

// DefaultConcurrency bounds concurrent fragment fetches.
const DefaultConcurrency = 8

// Issue records one recoverable failure encountered while resolving slots.
// The slot marker it refers to is left in place.
type Issue struct {
	Fragment string
	URL      string
	Err      error
}

// Config holds resolver configuration.
type Config struct {
	MaxDepth    int
	Concurrency int
	Logger      *logger.Logger
}

// Fetcher is the part of the HTTP client the resolver needs.
type Fetcher interface {
	GetText(ctx context.Context, ref string) (string, error)
}

// Resolver replaces slot markers with fetched partial markup.
type Resolver struct {
	table    map[string]string
	client   Fetcher
	maxDepth int
	sem      chan struct{}
	log      *logger.Logger
}

// New creates a resolver over an immutable fragment table.
func New(table map[string]string, client Fetcher, cfg Config) *Resolver {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	frozen := make(map[string]string, len(table))
	for k, v := range table {
		frozen[k] = v
	}
	return &Resolver{
		table:    frozen,
		client:   client,
		maxDepth: cfg.MaxDepth,
		sem:      make(chan struct{}, cfg.Concurrency),
		log:      cfg.Logger.WithComponent("fragment"),
	}
}

// Resolve replaces every resolvable slot marker under root, in place.
// Sibling slots fetch concurrently; a fetched fragment's own slots are
// resolved to full depth before it is spliced in, so the caller never sees
// a partially resolved subtree. Recoverable failures leave the marker in
// place and are returned as issues.
func (r *Resolver) Resolve(ctx context.Context, root *html.Node) []Issue {
	return r.resolve(ctx, root, nil)
}

type sliceResult struct {
	nodes  []*html.Node
	issues []Issue
}

func (r *Resolver) resolve(ctx context.Context, root *html.Node, branch []string) []Issue {
	slots := dom.FindAll(root, func(n *html.Node) bool {
		_, ok := dom.GetAttr(n, dom.SlotAttr)
		return ok
	})
	if len(slots) == 0 {
		return nil
	}

	results := make([]sliceResult, len(slots))
	var wg sync.WaitGroup

	for i, marker := range slots {
		name, _ := dom.GetAttr(marker, dom.SlotAttr)

		uri, known := r.table[name]
		if !known {
			// Explicit no-op: an unregistered slot renders as-is.
			r.log.WithFragment(name).Debug("Slot name not in fragment table, leaving marker")
			continue
		}

		if len(branch) >= r.maxDepth || contains(branch, name) {
			err := errors.NewFragmentCycle(name, branch)
			r.log.WithFragment(name).WithError(err).Warn("Fragment recursion guard tripped")
			results[i] = sliceResult{issues: []Issue{{Fragment: name, URL: uri, Err: err}}}
			continue
		}

		wg.Add(1)
		go func(i int, name, uri string) {
			defer wg.Done()
			results[i] = r.load(ctx, name, uri, branch)
		}(i, name, uri)
	}
	wg.Wait()

	// Splice sequentially: sibling markers may share a parent, and the tree
	// is not safe for concurrent mutation.
	var issues []Issue
	for i, marker := range slots {
		res := results[i]
		issues = append(issues, res.issues...)
		if res.nodes != nil {
			dom.ReplaceNode(marker, res.nodes)
		}
	}
	return issues
}

// load fetches one fragment and resolves its nested slots to full depth.
// The semaphore guards only the fetch, so deep nesting cannot starve it.
func (r *Resolver) load(ctx context.Context, name, uri string, branch []string) sliceResult {
	r.sem <- struct{}{}
	text, err := r.client.GetText(ctx, uri)
	<-r.sem

	if err != nil {
		loadErr := errors.NewFragmentLoadFailed(name, uri, err)
		r.log.WithFragment(name).WithURL(uri).WithError(err).Warn("Fragment fetch failed, leaving marker")
		return sliceResult{issues: []Issue{{Fragment: name, URL: uri, Err: loadErr}}}
	}

	nodes, err := dom.ParseFragment(text)
	if err != nil {
		loadErr := errors.NewFragmentLoadFailed(name, uri, err)
		r.log.WithFragment(name).WithError(err).Warn("Fragment parse failed, leaving marker")
		return sliceResult{issues: []Issue{{Fragment: name, URL: uri, Err: loadErr}}}
	}

	container := dom.NewContainer()
	for _, n := range nodes {
		container.AppendChild(n)
	}

	next := make([]string, len(branch), len(branch)+1)
	copy(next, branch)
	next = append(next, name)

	sub := r.resolve(ctx, container, next)
	return sliceResult{nodes: dom.Children(container), issues: sub}
}

func contains(branch []string, name string) bool {
	for _, b := range branch {
		if b == name {
			return true
		}
	}
	return false
}
