package engine

import (
	"time"

	"github.com/fragnav/fragnav/internal/dom"
	"github.com/fragnav/fragnav/internal/logger"
	"github.com/fragnav/fragnav/internal/metrics"
	"github.com/fragnav/fragnav/internal/route"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine) error

// WithBaseURL sets the site base URL.
func WithBaseURL(url string) Option {
	return func(e *Engine) error {
		e.config.BaseURL = url
		return nil
	}
}

// WithRoutes sets the route table.
func WithRoutes(routes map[string]route.Route) Option {
	return func(e *Engine) error {
		e.config.Routes = routes
		return nil
	}
}

// WithFragments sets the fragment table.
func WithFragments(fragments map[string]string) Option {
	return func(e *Engine) error {
		e.config.Fragments = fragments
		return nil
	}
}

// WithMountSelector sets the mount root selector.
func WithMountSelector(sel string) Option {
	return func(e *Engine) error {
		e.config.Mount = sel
		return nil
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		e.config.Timeout = timeout
		return nil
	}
}

// WithMaxFragmentDepth sets the fragment recursion limit.
func WithMaxFragmentDepth(depth int) Option {
	return func(e *Engine) error {
		if depth < 1 {
			depth = 1
		}
		e.config.MaxFragmentDepth = depth
		return nil
	}
}

// WithFragmentConcurrency sets the concurrent sibling fetch limit.
func WithFragmentConcurrency(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.config.FragmentConcurrency = n
		return nil
	}
}

// WithDefaultTitle sets the title used when a page declares none.
func WithDefaultTitle(title string) Option {
	return func(e *Engine) error {
		e.config.DefaultTitle = title
		return nil
	}
}

// WithNotFoundTitle sets the title of the literal not-found page.
func WithNotFoundTitle(title string) Option {
	return func(e *Engine) error {
		e.config.NotFoundTitle = title
		return nil
	}
}

// WithPrefetchRate sets the prefetch rate limit.
func WithPrefetchRate(rps float64, burst int) Option {
	return func(e *Engine) error {
		e.config.Prefetch.RequestsPerSecond = rps
		e.config.Prefetch.Burst = burst
		return nil
	}
}

// WithDocument sets the live document the engine renders into.
func WithDocument(doc *dom.Document) Option {
	return func(e *Engine) error {
		e.doc = doc
		return nil
	}
}

// WithScriptRunner sets the function invoked for each inline page script.
func WithScriptRunner(fn ScriptFunc) Option {
	return func(e *Engine) error {
		e.runner = fn
		return nil
	}
}

// WithOnReady sets the callback fired when a page's assembly is mounted
// and the page may register its hooks.
func WithOnReady(fn func(key string, rt *Runtime)) Option {
	return func(e *Engine) error {
		e.onReady = fn
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) error {
		e.baseLog = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(e *Engine) error {
		e.config.Verbose = verbose
		return nil
	}
}

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) error {
		e.config = config
		return nil
	}
}
