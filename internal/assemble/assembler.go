// Package assemble turns raw page markup into a fully resolved,
// ready-to-mount tree: title extraction, fragment resolution, and
// deterministic style/script replacement against the live document.
package assemble

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/fragnav/fragnav/internal/dom"
	naverr "github.com/fragnav/fragnav/internal/errors"
	"github.com/fragnav/fragnav/internal/fragment"
	"github.com/fragnav/fragnav/internal/logger"
	"github.com/fragnav/fragnav/internal/metrics"
)

// DefaultTitle is used when a page declares no title marker.
const DefaultTitle = "Untitled page"

// ErrSuperseded is returned when a newer transition began while this page
// was being assembled; no live-document mutation has been committed since.
var ErrSuperseded = errors.New("assembly superseded by a newer transition")

// Script describes one script element found during assembly.
type Script struct {
	Src    string // external source, empty for inline scripts
	Inline string // inline script content
	Attrs  map[string]string
}

// ScriptRunner executes an inline script at attachment time. The engine
// binds it to the active page's runtime for each transition.
type ScriptRunner func(ctx context.Context, script Script) error

// Guard reports whether the owning transition is still the current one.
// It is consulted before every live-document mutation.
type Guard func() bool

// ScriptFetcher awaits an external script's load-or-error signal.
type ScriptFetcher interface {
	Warm(ctx context.Context, ref string) error
}

// Issue records one recoverable failure encountered during assembly.
type Issue struct {
	Kind naverr.Type `json:"kind"`
	Ref  string      `json:"ref"` // fragment name or script URL
	Err  error       `json:"-"`

	Detail string `json:"detail"`
}

// Page is the result of assembling one route's markup.
type Page struct {
	// Tree is a detached container whose children are ready to mount.
	Tree *html.Node
	// Title is the resolved document title.
	Title string
	// Issues lists the recoverable failures; the page rendered without them.
	Issues []Issue
}

// Config holds assembler configuration.
type Config struct {
	DefaultTitle string
	Logger       *logger.Logger
	Metrics      *metrics.Collector
}

// Assembler builds pages against a live document.
type Assembler struct {
	doc          *dom.Document
	scripts      ScriptFetcher
	resolver     *fragment.Resolver
	defaultTitle string
	log          *logger.Logger
	metrics      *metrics.Collector
}

// New creates an assembler bound to a live document.
func New(doc *dom.Document, scripts ScriptFetcher, resolver *fragment.Resolver, cfg Config) *Assembler {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = DefaultTitle
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Assembler{
		doc:          doc,
		scripts:      scripts,
		resolver:     resolver,
		defaultTitle: cfg.DefaultTitle,
		log:          cfg.Logger.WithComponent("assemble"),
		metrics:      cfg.Metrics,
	}
}

// Assemble runs the full pipeline on raw markup: parse, title resolution,
// fragment resolution, style replacement, script replacement. It returns
// only when every external script load attempt has settled. Fragment and
// script failures degrade gracefully and are reported as issues; a guard
// failure aborts with ErrSuperseded before the next live-document write.
func (a *Assembler) Assemble(ctx context.Context, raw string, runner ScriptRunner, guard Guard) (*Page, error) {
	if guard == nil {
		guard = func() bool { return true }
	}

	nodes, err := dom.ParseFragment(raw)
	if err != nil {
		return nil, err
	}
	tree := dom.NewContainer()
	for _, n := range nodes {
		tree.AppendChild(n)
	}

	title := a.resolveTitle(tree)
	if !guard() {
		return nil, ErrSuperseded
	}
	a.doc.SetTitle(title)

	issues := a.resolveFragments(ctx, tree)

	if !guard() {
		return nil, ErrSuperseded
	}
	a.resolveStyles(tree)

	if !guard() {
		return nil, ErrSuperseded
	}
	issues = append(issues, a.resolveScripts(ctx, tree, runner)...)

	return &Page{Tree: tree, Title: title, Issues: issues}, nil
}

// resolveTitle extracts and removes the title marker, falling back to the
// default placeholder.
func (a *Assembler) resolveTitle(tree *html.Node) string {
	markers := dom.FindAll(tree, func(n *html.Node) bool {
		_, ok := dom.GetAttr(n, dom.TitleAttr)
		return ok
	})
	if len(markers) == 0 {
		return a.defaultTitle
	}
	title, _ := dom.GetAttr(markers[0], dom.TitleAttr)
	for _, m := range markers {
		dom.Detach(m)
	}
	if title == "" {
		return a.defaultTitle
	}
	return title
}

func (a *Assembler) resolveFragments(ctx context.Context, tree *html.Node) []Issue {
	slotsBefore := countSlots(tree)
	fragIssues := a.resolver.Resolve(ctx, tree)

	resolved := slotsBefore - countSlots(tree)
	for i := 0; i < resolved; i++ {
		a.metrics.RecordFragment(true)
	}

	issues := make([]Issue, 0, len(fragIssues))
	for _, fi := range fragIssues {
		a.metrics.RecordFragment(false)
		issues = append(issues, Issue{
			Kind:   naverr.TypeOf(fi.Err),
			Ref:    fi.Fragment,
			Err:    fi.Err,
			Detail: fi.Err.Error(),
		})
	}
	return issues
}

// resolveStyles removes the previous page's dynamic styles from the live
// head and moves this page's stylesheet links and inline styles there, in
// document order, marked as engine-owned.
func (a *Assembler) resolveStyles(tree *html.Node) {
	removed := a.doc.RemoveDynamicStyles()
	styles := dom.FindAll(tree, dom.IsStyleElement)
	for _, s := range styles {
		dom.MarkOwned(s)
		a.doc.AppendHead(s)
	}
	a.log.Debugf("Replaced styles: removed %d, injected %d", removed, len(styles))
}

// resolveScripts removes the previous page's dynamic scripts from the live
// body and attaches this page's scripts. Inline scripts run synchronously at
// attachment; external scripts load concurrently and the step completes only
// after every load attempt settles.
func (a *Assembler) resolveScripts(ctx context.Context, tree *html.Node, runner ScriptRunner) []Issue {
	a.doc.RemoveDynamicScripts()

	var issues []Issue
	var external []string

	for _, node := range dom.FindAll(tree, dom.IsScriptElement) {
		script := scriptFromNode(node)
		dom.MarkOwned(node)
		a.doc.AppendBody(node)

		if script.Src != "" {
			external = append(external, script.Src)
			continue
		}
		if runner == nil {
			continue
		}
		if err := runner(ctx, script); err != nil {
			loadErr := naverr.NewScriptLoadFailed("", err)
			a.log.WithError(err).Warn("Inline script failed")
			a.metrics.RecordScript(false)
			issues = append(issues, Issue{Kind: naverr.ScriptLoadFailed, Err: loadErr, Detail: loadErr.Error()})
		} else {
			a.metrics.RecordScript(true)
		}
	}

	// External scripts load concurrently; ordering between them is not
	// guaranteed, only that assembly completes after all of them settle.
	results := make([]error, len(external))
	var wg sync.WaitGroup
	for i, src := range external {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			results[i] = a.scripts.Warm(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for i, err := range results {
		if err == nil {
			a.metrics.RecordScript(true)
			continue
		}
		loadErr := naverr.NewScriptLoadFailed(external[i], err)
		a.log.WithURL(external[i]).WithError(err).Warn("External script failed to load")
		a.metrics.RecordScript(false)
		issues = append(issues, Issue{Kind: naverr.ScriptLoadFailed, Ref: external[i], Err: loadErr, Detail: loadErr.Error()})
	}
	return issues
}

func scriptFromNode(n *html.Node) Script {
	s := Script{Attrs: make(map[string]string, len(n.Attr))}
	for _, a := range n.Attr {
		s.Attrs[a.Key] = a.Val
		if a.Key == "src" {
			s.Src = a.Val
		}
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	s.Inline = b.String()
	return s
}

func countSlots(tree *html.Node) int {
	return len(dom.FindAll(tree, func(n *html.Node) bool {
		_, ok := dom.GetAttr(n, dom.SlotAttr)
		return ok
	}))
}
