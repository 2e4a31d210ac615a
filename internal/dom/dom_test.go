package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestEmptyDocument(t *testing.T) {
	d := Empty()

	mount, err := d.Mount()
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if mount.Data != "div" {
		t.Errorf("mount element = %q, want div", mount.Data)
	}
	if d.Head() == nil {
		t.Error("Head() = nil")
	}
	if d.Body() == nil {
		t.Error("Body() = nil")
	}
}

func TestSetTitle(t *testing.T) {
	d := Empty()

	d.SetTitle("First")
	if got := d.Title(); got != "First" {
		t.Errorf("Title() = %q, want First", got)
	}

	// A second set replaces, not appends.
	d.SetTitle("Second")
	if got := d.Title(); got != "Second" {
		t.Errorf("Title() = %q, want Second", got)
	}
}

func TestRemoveDynamicStyles(t *testing.T) {
	d := Empty()

	nodes, err := ParseFragment(`<style>a{}</style><link rel="stylesheet" href="/a.css"><link rel="icon" href="/i.png">`)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	for _, n := range nodes {
		MarkOwned(n)
		d.AppendHead(n)
	}

	// Static styles are never touched.
	static, _ := ParseFragment(`<style>b{}</style>`)
	d.AppendHead(static[0])

	removed := d.RemoveDynamicStyles()
	if removed != 2 {
		t.Errorf("RemoveDynamicStyles() = %d, want 2", removed)
	}

	out, _ := d.Render()
	if !strings.Contains(out, "b{}") {
		t.Error("static style was removed")
	}
	if strings.Contains(out, "a{}") {
		t.Error("owned style survived removal")
	}
}

func TestRemoveDynamicScripts(t *testing.T) {
	d := Empty()

	nodes, _ := ParseFragment(`<script src="/a.js"></script><script>x()</script>`)
	for _, n := range nodes {
		MarkOwned(n)
		d.AppendBody(n)
	}
	static, _ := ParseFragment(`<script>keep()</script>`)
	d.AppendBody(static[0])

	if removed := d.RemoveDynamicScripts(); removed != 2 {
		t.Errorf("RemoveDynamicScripts() = %d, want 2", removed)
	}

	out, _ := d.Render()
	if !strings.Contains(out, "keep()") {
		t.Error("static script was removed")
	}
}

func TestSwapChildren(t *testing.T) {
	d := Empty()
	mount, _ := d.Mount()

	first, _ := ParseFragment(`<p>one</p><p>two</p>`)
	SwapChildren(mount, first)

	second, _ := ParseFragment(`<h1>new</h1>`)
	SwapChildren(mount, second)

	out, _ := d.Render()
	if strings.Contains(out, "one") || strings.Contains(out, "two") {
		t.Error("previous children survived the swap")
	}
	if !strings.Contains(out, "<h1>new</h1>") {
		t.Errorf("new child missing from %q", out)
	}
}

func TestReplaceNode(t *testing.T) {
	container := NewContainer()
	nodes, _ := ParseFragment(`<p>before</p><div data-fragment="nav"></div><p>after</p>`)
	for _, n := range nodes {
		container.AppendChild(n)
	}

	marker := FindAll(container, func(n *html.Node) bool {
		_, ok := GetAttr(n, SlotAttr)
		return ok
	})[0]

	replacements, _ := ParseFragment(`<nav>menu</nav>`)
	ReplaceNode(marker, replacements)

	var b strings.Builder
	html.Render(&b, container)
	out := b.String()

	if strings.Contains(out, SlotAttr) {
		t.Error("marker survived replacement")
	}
	wantOrder := []string{"before", "<nav>menu</nav>", "after"}
	last := -1
	for _, w := range wantOrder {
		idx := strings.Index(out, w)
		if idx < 0 {
			t.Fatalf("output %q missing %q", out, w)
		}
		if idx < last {
			t.Errorf("output %q has %q out of order", out, w)
		}
		last = idx
	}
}

func TestRewriteRootedLinks(t *testing.T) {
	container := NewContainer()
	nodes, _ := ParseFragment(`<a href="/users">u</a><a href="#/about">a</a><a href="https://example.com/">x</a>`)
	for _, n := range nodes {
		container.AppendChild(n)
	}

	if count := RewriteRootedLinks(container); count != 1 {
		t.Errorf("RewriteRootedLinks() = %d, want 1", count)
	}

	var b strings.Builder
	html.Render(&b, container)
	out := b.String()

	if !strings.Contains(out, `href="#/users"`) {
		t.Errorf("rooted link not rewritten: %q", out)
	}
	if !strings.Contains(out, `href="#/about"`) {
		t.Errorf("hash link modified: %q", out)
	}
	if !strings.Contains(out, `href="https://example.com/"`) {
		t.Errorf("external link modified: %q", out)
	}
}

func TestPrefetchHrefs(t *testing.T) {
	container := NewContainer()
	nodes, _ := ParseFragment(`<a data-prefetch href="#/a">a</a><a href="#/b">b</a><a data-prefetch href="/c">c</a>`)
	for _, n := range nodes {
		container.AppendChild(n)
	}

	got := PrefetchHrefs(container)
	if len(got) != 1 || got[0] != "#/a" {
		t.Errorf("PrefetchHrefs() = %v, want [#/a]", got)
	}
}
