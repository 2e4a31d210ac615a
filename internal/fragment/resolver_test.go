package fragment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/fragnav/fragnav/internal/dom"
	naverr "github.com/fragnav/fragnav/internal/errors"
	"github.com/fragnav/fragnav/internal/fetch"
)

func newTestClient(t *testing.T, pages map[string]string) (*fetch.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := fetch.New(srv.URL, fetch.DefaultConfig())
	if err != nil {
		t.Fatalf("fetch.New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c, srv
}

func parseContainer(t *testing.T, raw string) *html.Node {
	t.Helper()
	nodes, err := dom.ParseFragment(raw)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	container := dom.NewContainer()
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container
}

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestResolveSimpleSlot(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/frags/nav.html": `<nav><a href="/home">home</a></nav>`,
	})
	r := New(map[string]string{"nav": "/frags/nav.html"}, client, Config{})

	tree := parseContainer(t, `<div data-fragment="nav"></div><p>content</p>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	out := render(t, tree)
	if !strings.Contains(out, "<nav>") {
		t.Errorf("fragment content missing: %q", out)
	}
	if strings.Contains(out, dom.SlotAttr) {
		t.Errorf("slot marker survived: %q", out)
	}
}

func TestResolveNestedDepthFirst(t *testing.T) {
	// A references B, B references C: the final tree contains C's content
	// with no intermediate marker for B or C.
	client, _ := newTestClient(t, map[string]string{
		"/a.html": `<div class="a"><div data-fragment="b"></div></div>`,
		"/b.html": `<div class="b"><div data-fragment="c"></div></div>`,
		"/c.html": `<span class="c">deep</span>`,
	})
	r := New(map[string]string{
		"a": "/a.html",
		"b": "/b.html",
		"c": "/c.html",
	}, client, Config{})

	tree := parseContainer(t, `<div data-fragment="a"></div>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	out := render(t, tree)
	if !strings.Contains(out, `<span class="c">deep</span>`) {
		t.Errorf("nested content missing: %q", out)
	}
	if strings.Contains(out, dom.SlotAttr) {
		t.Errorf("intermediate marker survived: %q", out)
	}
}

func TestResolveUnknownNameIsNoOp(t *testing.T) {
	// nav.html itself contains a slot pointing at nothing: resolution
	// succeeds and the inner marker stays as literal markup.
	client, _ := newTestClient(t, map[string]string{
		"/nav.html": `<nav>menu<div data-fragment="sidebar"></div></nav>`,
	})
	r := New(map[string]string{"nav": "/nav.html"}, client, Config{})

	tree := parseContainer(t, `<div data-fragment="nav"></div>`)
	issues := r.Resolve(context.Background(), tree)
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}

	out := render(t, tree)
	if !strings.Contains(out, "menu") {
		t.Errorf("fragment content missing: %q", out)
	}
	if !strings.Contains(out, `data-fragment="sidebar"`) {
		t.Errorf("unresolvable inner marker should remain: %q", out)
	}
}

func TestResolveFetchFailureLeavesMarker(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{})
	r := New(map[string]string{"nav": "/missing.html"}, client, Config{})

	tree := parseContainer(t, `<div data-fragment="nav"></div><p>rest</p>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) != 1 {
		t.Fatalf("len(issues) = %d, want 1", len(issues))
	}
	if naverr.TypeOf(issues[0].Err) != naverr.FragmentLoadFailed {
		t.Errorf("issue type = %v, want FragmentLoadFailed", naverr.TypeOf(issues[0].Err))
	}

	out := render(t, tree)
	if !strings.Contains(out, `data-fragment="nav"`) {
		t.Errorf("marker should remain after failed fetch: %q", out)
	}
	if !strings.Contains(out, "<p>rest</p>") {
		t.Errorf("rest of page should survive: %q", out)
	}
}

func TestResolveCycleDetected(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/self.html": `<div>loop<div data-fragment="self"></div></div>`,
	})
	r := New(map[string]string{"self": "/self.html"}, client, Config{})

	tree := parseContainer(t, `<div data-fragment="self"></div>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) != 1 {
		t.Fatalf("len(issues) = %d, want 1", len(issues))
	}
	if naverr.TypeOf(issues[0].Err) != naverr.FragmentCycleDetected {
		t.Errorf("issue type = %v, want FragmentCycleDetected", naverr.TypeOf(issues[0].Err))
	}

	// One level of content made it in before the guard tripped; the page
	// still rendered.
	out := render(t, tree)
	if !strings.Contains(out, "loop") {
		t.Errorf("first fragment level missing: %q", out)
	}
}

func TestResolveDepthGuard(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/a.html": `<div data-fragment="b"></div>`,
		"/b.html": `<div data-fragment="a"></div>`,
	})
	r := New(map[string]string{"a": "/a.html", "b": "/b.html"}, client, Config{MaxDepth: 4})

	tree := parseContainer(t, `<div data-fragment="a"></div>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) == 0 {
		t.Fatal("expected a cycle issue for mutually recursive fragments")
	}
	if naverr.TypeOf(issues[0].Err) != naverr.FragmentCycleDetected {
		t.Errorf("issue type = %v, want FragmentCycleDetected", naverr.TypeOf(issues[0].Err))
	}
}

func TestResolveSiblingsAllResolved(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/one.html":   `<i>1</i>`,
		"/two.html":   `<i>2</i>`,
		"/three.html": `<i>3</i>`,
	})
	r := New(map[string]string{
		"one":   "/one.html",
		"two":   "/two.html",
		"three": "/three.html",
	}, client, Config{Concurrency: 2})

	tree := parseContainer(t, `<div data-fragment="one"></div><div data-fragment="two"></div><div data-fragment="three"></div>`)
	issues := r.Resolve(context.Background(), tree)

	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	out := render(t, tree)
	for _, want := range []string{"<i>1</i>", "<i>2</i>", "<i>3</i>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, dom.SlotAttr) {
		t.Errorf("a marker survived: %q", out)
	}
}
