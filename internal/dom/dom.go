// Package dom provides the live in-memory document the engine renders into,
// plus the node surgery helpers shared by the fragment resolver and the
// page assembler.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fragnav/fragnav/internal/errors"
)

// Markup conventions recognized during assembly.
const (
	// SlotAttr marks an element as a named fragment placeholder.
	SlotAttr = "data-fragment"
	// TitleAttr marks the meta element carrying the page title.
	TitleAttr = "data-page-title"
	// PrefetchAttr marks an anchor as prefetchable on hover/touch.
	PrefetchAttr = "data-prefetch"
	// OwnedAttr marks style/script elements injected by the engine, so the
	// next navigation can remove exactly what the previous one added.
	OwnedAttr = "data-fragnav-owned"
)

// DefaultMountSelector locates the element whose children are replaced on
// every navigation.
const DefaultMountSelector = "#app"

const emptyShell = `<!DOCTYPE html><html><head><title></title></head><body><div id="app"></div></body></html>`

// Document wraps a parsed HTML page: the head and body the engine injects
// styles and scripts into, and the mount root it swaps page content into.
type Document struct {
	root     *html.Node
	sel      *goquery.Document
	mountSel string
}

// Parse parses a full HTML page into a Document.
func Parse(raw, mountSelector string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, errors.NewParseError("", "document_parse", err)
	}
	if mountSelector == "" {
		mountSelector = DefaultMountSelector
	}
	return &Document{
		root:     root,
		sel:      goquery.NewDocumentFromNode(root),
		mountSel: mountSelector,
	}, nil
}

// Empty returns a minimal host document with a #app mount root.
func Empty() *Document {
	d, err := Parse(emptyShell, DefaultMountSelector)
	if err != nil {
		// The shell is a constant; parsing it cannot fail.
		panic(err)
	}
	return d
}

// Selection returns a goquery view over the live document.
func (d *Document) Selection() *goquery.Document {
	return d.sel
}

// Head returns the document's head element.
func (d *Document) Head() *html.Node {
	return d.findElement("head")
}

// Body returns the document's body element.
func (d *Document) Body() *html.Node {
	return d.findElement("body")
}

// Mount returns the element whose children are swapped on navigation.
func (d *Document) Mount() (*html.Node, error) {
	s := d.sel.Find(d.mountSel)
	if s.Length() == 0 {
		return nil, errors.NewParseError(d.mountSel, "mount_lookup", nil)
	}
	return s.Get(0), nil
}

// MountSelection returns the mount root as a goquery selection.
func (d *Document) MountSelection() *goquery.Selection {
	return d.sel.Find(d.mountSel).First()
}

// Title returns the document title.
func (d *Document) Title() string {
	return d.sel.Find("title").First().Text()
}

// SetTitle sets the document title, creating the title element if needed.
func (d *Document) SetTitle(title string) {
	head := d.Head()
	if head == nil {
		return
	}
	var titleNode *html.Node
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Title {
			titleNode = c
			break
		}
	}
	if titleNode == nil {
		titleNode = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		head.AppendChild(titleNode)
	}
	for titleNode.FirstChild != nil {
		titleNode.RemoveChild(titleNode.FirstChild)
	}
	titleNode.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// RemoveDynamicStyles removes every engine-owned stylesheet link and inline
// style from the head, returning how many were removed.
func (d *Document) RemoveDynamicStyles() int {
	head := d.Head()
	if head == nil {
		return 0
	}
	victims := FindAll(head, func(n *html.Node) bool {
		if !IsOwned(n) {
			return false
		}
		return n.DataAtom == atom.Style || isStylesheetLink(n)
	})
	for _, v := range victims {
		Detach(v)
	}
	return len(victims)
}

// RemoveDynamicScripts removes every engine-owned script from the body,
// returning how many were removed.
func (d *Document) RemoveDynamicScripts() int {
	body := d.Body()
	if body == nil {
		return 0
	}
	victims := FindAll(body, func(n *html.Node) bool {
		return IsOwned(n) && n.DataAtom == atom.Script
	})
	for _, v := range victims {
		Detach(v)
	}
	return len(victims)
}

// AppendHead moves a node to the end of the head.
func (d *Document) AppendHead(n *html.Node) {
	if head := d.Head(); head != nil {
		Detach(n)
		head.AppendChild(n)
	}
}

// AppendBody moves a node to the end of the body.
func (d *Document) AppendBody(n *html.Node) {
	if body := d.Body(); body != nil {
		Detach(n)
		body.AppendChild(n)
	}
}

// Render serializes the live document back to HTML.
func (d *Document) Render() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", errors.NewParseError("", "render", err)
	}
	return b.String(), nil
}

func (d *Document) findElement(name string) *html.Node {
	s := d.sel.Find(name)
	if s.Length() == 0 {
		return nil
	}
	return s.Get(0)
}

// ParseFragment parses partial markup into detached body-context nodes.
func ParseFragment(raw string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(raw), ctx)
	if err != nil {
		return nil, errors.NewParseError("", "fragment_parse", err)
	}
	return nodes, nil
}

// NewContainer returns a detached element that can hold parsed page content
// while it is being assembled.
func NewContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
}

// GetAttr returns an attribute value.
func GetAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// MarkOwned tags an element as dynamically injected by the engine.
func MarkOwned(n *html.Node) {
	SetAttr(n, OwnedAttr, "true")
}

// IsOwned reports whether an element was injected by the engine.
func IsOwned(n *html.Node) bool {
	v, ok := GetAttr(n, OwnedAttr)
	return ok && v == "true"
}

// Detach removes a node from its parent, leaving it reusable.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ReplaceNode splices replacement nodes over a marker and drops the marker.
func ReplaceNode(marker *html.Node, replacements []*html.Node) {
	parent := marker.Parent
	if parent == nil {
		return
	}
	for _, r := range replacements {
		Detach(r)
		parent.InsertBefore(r, marker)
	}
	parent.RemoveChild(marker)
}

// SwapChildren replaces all of parent's children with the given nodes.
func SwapChildren(parent *html.Node, children []*html.Node) {
	for parent.FirstChild != nil {
		parent.RemoveChild(parent.FirstChild)
	}
	for _, c := range children {
		Detach(c)
		parent.AppendChild(c)
	}
}

// Children returns a node's direct children as a slice.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// FindAll returns every node in the subtree matching the predicate, in
// document order.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && pred(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// RewriteRootedLinks rewrites every absolute-rooted anchor href ("/x") in
// the subtree to its hash-prefixed equivalent ("#/x"), so subsequent clicks
// are intercepted by the router. Returns the number of rewritten anchors.
func RewriteRootedLinks(scope *html.Node) int {
	count := 0
	anchors := FindAll(scope, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return false
		}
		href, ok := GetAttr(n, "href")
		return ok && strings.HasPrefix(href, "/")
	})
	for _, a := range anchors {
		href, _ := GetAttr(a, "href")
		SetAttr(a, "href", "#"+href)
		count++
	}
	return count
}

// PrefetchHrefs returns the hrefs of every prefetchable hash anchor in the
// subtree, in document order.
func PrefetchHrefs(scope *html.Node) []string {
	var out []string
	anchors := FindAll(scope, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return false
		}
		if _, ok := GetAttr(n, PrefetchAttr); !ok {
			return false
		}
		href, ok := GetAttr(n, "href")
		return ok && strings.HasPrefix(href, "#")
	})
	for _, a := range anchors {
		href, _ := GetAttr(a, "href")
		out = append(out, href)
	}
	return out
}

func isStylesheetLink(n *html.Node) bool {
	if n.DataAtom != atom.Link {
		return false
	}
	rel, _ := GetAttr(n, "rel")
	return strings.EqualFold(rel, "stylesheet")
}

// IsStyleElement reports whether a node carries styles for the page.
func IsStyleElement(n *html.Node) bool {
	return n.DataAtom == atom.Style || isStylesheetLink(n)
}

// IsScriptElement reports whether a node is a script.
func IsScriptElement(n *html.Node) bool {
	return n.DataAtom == atom.Script
}
