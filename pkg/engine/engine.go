// Package engine provides the hash-navigation controller: it resolves
// route keys, fetches and assembles pages, swaps the live document's
// mount root and drives page lifecycle hooks.
package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fragnav/fragnav/internal/assemble"
	"github.com/fragnav/fragnav/internal/dom"
	"github.com/fragnav/fragnav/internal/fetch"
	"github.com/fragnav/fragnav/internal/fragment"
	"github.com/fragnav/fragnav/internal/hooks"
	"github.com/fragnav/fragnav/internal/logger"
	"github.com/fragnav/fragnav/internal/metrics"
	"github.com/fragnav/fragnav/internal/prefetch"
	"github.com/fragnav/fragnav/internal/report"
	"github.com/fragnav/fragnav/internal/route"
)

// ErrSuperseded is returned by Navigate when a newer navigation began
// before this one could commit its result.
var ErrSuperseded = assemble.ErrSuperseded

const notFoundMarkup = `<h1>404</h1><p>The page you are looking for does not exist.</p>`

// ScriptFunc executes one inline page script. The runtime lets the script
// register lifecycle hooks and redirect.
type ScriptFunc func(ctx context.Context, rt *Runtime, script assemble.Script) error

// Engine is the navigation controller.
type Engine struct {
	config  *Config
	baseLog *logger.Logger
	log     *logger.Logger
	metrics *metrics.Collector

	table     *route.Table
	client    *fetch.Client
	doc       *dom.Document
	resolver  *fragment.Resolver
	assembler *assemble.Assembler
	registry  *hooks.Registry
	warmer    *prefetch.Warmer
	runner    ScriptFunc
	onReady   func(key string, rt *Runtime)

	generation atomic.Uint64

	mu      sync.Mutex
	current string // mounted route key, "" before the first navigation
	active  string // key hook registrations attach to, read at call time
}

// New creates an engine from a configuration and options.
func New(config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		config:   config,
		metrics:  metrics.New(),
		registry: hooks.NewRegistry(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	if e.baseLog == nil {
		level := logger.InfoLevel
		if e.config.Verbose {
			level = logger.DebugLevel
		}
		cfg := logger.DefaultConfig()
		cfg.Level = level
		e.baseLog = logger.New(cfg)
	}
	e.log = e.baseLog.WithComponent("engine")

	if e.doc == nil {
		e.doc = dom.Empty()
	}

	client, err := fetch.New(e.config.BaseURL, fetch.Config{Timeout: e.config.Timeout})
	if err != nil {
		return nil, err
	}
	e.client = client

	e.table = route.NewTable(e.config.Routes)
	e.resolver = fragment.New(e.config.Fragments, client, fragment.Config{
		MaxDepth:    e.config.MaxFragmentDepth,
		Concurrency: e.config.FragmentConcurrency,
		Logger:      e.baseLog,
	})
	e.assembler = assemble.New(e.doc, client, e.resolver, assemble.Config{
		DefaultTitle: e.config.DefaultTitle,
		Logger:       e.baseLog,
		Metrics:      e.metrics,
	})
	e.warmer = prefetch.New(client, prefetch.Config{
		RequestsPerSecond: e.config.Prefetch.RequestsPerSecond,
		Burst:             e.config.Prefetch.Burst,
		EstimatedURLs:     len(e.config.Routes) * 4,
		Logger:            e.baseLog,
		Metrics:           e.metrics,
	})

	return e, nil
}

// Click handles an anchor activation. Hash-prefixed hrefs become a
// navigation and the default action should be suppressed; anything else is
// not handled and the return is false.
func (e *Engine) Click(ctx context.Context, href string) (bool, error) {
	if !route.IsHashHref(href) {
		return false, nil
	}
	return true, e.Navigate(ctx, href)
}

// Navigate performs one hash-change transition. It covers user
// navigation, back/forward, programmatic redirect and the initial load
// (current key empty, no unmount step).
//
// A navigation that starts after this one makes every remaining step a
// no-op; such a superseded transition returns ErrSuperseded. A failure to
// fetch the target's own template abandons the transition with an error
// and leaves the previous page mounted.
func (e *Engine) Navigate(ctx context.Context, hash string) error {
	to, err := route.Normalize(hash)
	if err != nil {
		e.log.WithError(err).Warnf("Navigation abandoned: %q", hash)
		return err
	}

	gen := e.generation.Add(1)

	e.mu.Lock()
	from := e.current
	e.active = to
	e.mu.Unlock()

	e.log.TransitionEvent(from, to, gen)
	e.metrics.RecordNavigation()

	// The unmount hook for the outgoing page completes before any fetch.
	if from != "" {
		if fn, ok := e.registry.Unmount(from); ok {
			if err := fn(ctx); err != nil {
				e.log.WithRoute(from).WithError(err).Warn("Unmount hook failed")
			}
		}
	}

	r, fellBack, err := e.table.Resolve(to)
	if err != nil {
		return e.renderNotFound(to, gen)
	}

	start := time.Now()
	raw, err := e.client.GetText(ctx, r.Template)
	if err != nil {
		e.log.WithRoute(to).WithURL(r.Template).WithError(err).Error("Template fetch failed")
		return err
	}
	e.log.FetchEvent(r.Template, 200, time.Since(start))

	rt := &Runtime{engine: e}
	guard := func() bool { return !e.stale(gen) }

	page, err := e.assembler.Assemble(ctx, raw, e.bindRunner(rt), guard)
	if err != nil {
		if stderrors.Is(err, ErrSuperseded) {
			e.metrics.RecordSuperseded()
			e.log.WithRoute(to).Debug("Transition superseded during assembly")
		}
		return err
	}

	if e.stale(gen) {
		e.metrics.RecordSuperseded()
		return ErrSuperseded
	}

	mount, err := e.doc.Mount()
	if err != nil {
		return err
	}
	dom.SwapChildren(mount, dom.Children(page.Tree))
	dom.RewriteRootedLinks(mount)

	e.mu.Lock()
	e.current = to
	e.mu.Unlock()

	if fellBack {
		// The fallback page renders fully but fires no ready signal and
		// no lifecycle hooks.
		e.metrics.RecordNotFound()
		e.log.WithRoute(to).Info("Rendered 404 fallback")
		return nil
	}

	if e.onReady != nil {
		e.onReady(to, rt)
	}
	if e.stale(gen) {
		e.metrics.RecordSuperseded()
		return ErrSuperseded
	}
	if fn, ok := e.registry.Mount(to); ok {
		if err := fn(ctx); err != nil {
			e.log.WithRoute(to).WithError(err).Warn("Mount hook failed")
		}
	}
	return nil
}

// renderNotFound mounts the literal not-found page. Terminal for the
// transition: no ready signal, no hooks.
func (e *Engine) renderNotFound(to string, gen uint64) error {
	nodes, err := dom.ParseFragment(notFoundMarkup)
	if err != nil {
		return err
	}
	if e.stale(gen) {
		e.metrics.RecordSuperseded()
		return ErrSuperseded
	}

	mount, err := e.doc.Mount()
	if err != nil {
		return err
	}
	dom.SwapChildren(mount, nodes)
	e.doc.SetTitle(e.config.NotFoundTitle)

	e.mu.Lock()
	e.current = to
	e.mu.Unlock()

	e.metrics.RecordNotFound()
	e.log.WithRoute(to).Warn("No route and no 404 entry, rendered literal fallback")
	return nil
}

// Prefetch resolves a hash href and warms its template. Unknown keys warm
// the 404 entry's template; all failures are ignored.
func (e *Engine) Prefetch(ctx context.Context, href string) {
	if !route.IsHashHref(href) {
		return
	}
	key, err := route.Normalize(href)
	if err != nil {
		return
	}
	r, _, err := e.table.Resolve(key)
	if err != nil {
		return
	}
	e.warmer.Warm(ctx, r.Template)
}

// PrefetchTargets returns the hrefs of prefetchable anchors currently in
// the live document body, for embedders wiring hover or touch intent.
func (e *Engine) PrefetchTargets() []string {
	body := e.doc.Body()
	if body == nil {
		return nil
	}
	return dom.PrefetchHrefs(body)
}

// CheckSite assembles every route in the table against a throwaway
// document and reports per-route issues.
func (e *Engine) CheckSite(ctx context.Context) *report.Report {
	rep := &report.Report{
		Site:        e.config.BaseURL,
		GeneratedAt: time.Now().UTC(),
	}

	for _, key := range e.table.Keys() {
		r, _ := e.table.Get(key)
		result := report.RouteResult{Key: key, Template: r.Template}
		start := time.Now()

		raw, err := e.client.GetText(ctx, r.Template)
		if err != nil {
			result.Error = err.Error()
			result.DurationMS = time.Since(start).Milliseconds()
			rep.Routes = append(rep.Routes, result)
			continue
		}

		scratch := dom.Empty()
		asm := assemble.New(scratch, e.client, e.resolver, assemble.Config{
			DefaultTitle: e.config.DefaultTitle,
			Logger:       e.baseLog,
			Metrics:      e.metrics,
		})
		page, err := asm.Assemble(ctx, raw, nil, nil)
		result.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Title = page.Title
			result.Issues = page.Issues
			result.OK = len(page.Issues) == 0
		}
		rep.Routes = append(rep.Routes, result)
	}

	rep.Metrics = e.metrics.Snapshot()
	return rep
}

// Flush waits for background prefetch work to settle.
func (e *Engine) Flush() {
	e.warmer.Flush()
}

// Close releases the engine's network resources.
func (e *Engine) Close() {
	e.warmer.Flush()
	e.client.Close()
}

// Document returns the live document the engine renders into.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Current returns the mounted route key, empty before the first navigation.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) stale(gen uint64) bool {
	return e.generation.Load() != gen
}

func (e *Engine) activeKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != "" {
		return e.active
	}
	return e.current
}

func (e *Engine) bindRunner(rt *Runtime) assemble.ScriptRunner {
	if e.runner == nil {
		return nil
	}
	return func(ctx context.Context, script assemble.Script) error {
		return e.runner(ctx, rt, script)
	}
}

// Runtime is the hook surface handed to page scripts and the OnReady
// callback. Hook registrations attach to the route key that is active at
// call time, not to the key the runtime was created for.
type Runtime struct {
	engine *Engine
	ready  atomic.Bool
}

// Key returns the route key currently being activated.
func (rt *Runtime) Key() string {
	return rt.engine.activeKey()
}

// OnMount registers a mount hook for the active route key, replacing any
// earlier registration.
func (rt *Runtime) OnMount(fn hooks.Hook) {
	rt.engine.registry.SetMount(rt.engine.activeKey(), fn)
}

// OnUnmount registers an unmount hook for the active route key, replacing
// any earlier registration.
func (rt *Runtime) OnUnmount(fn hooks.Hook) {
	rt.engine.registry.SetUnmount(rt.engine.activeKey(), fn)
}

// Ready marks the page's own setup as finished.
func (rt *Runtime) Ready() {
	rt.ready.Store(true)
}

// IsReady reports whether the page announced its readiness.
func (rt *Runtime) IsReady() bool {
	return rt.ready.Load()
}

// Redirect navigates programmatically to another hash path.
func (rt *Runtime) Redirect(ctx context.Context, path string) error {
	key, err := route.Normalize(path)
	if err != nil {
		return err
	}
	return rt.engine.Navigate(ctx, "#"+key)
}
