// Package prefetch opportunistically warms the network cache for route
// templates on hover/touch intent, independent of the rendering pipeline.
package prefetch

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/time/rate"

	"github.com/fragnav/fragnav/internal/logger"
	"github.com/fragnav/fragnav/internal/metrics"
)

// Fetcher issues the warm-up request; the result is discarded.
type Fetcher interface {
	Warm(ctx context.Context, ref string) error
}

// Config holds warmer configuration.
type Config struct {
	// RequestsPerSecond bounds warm-up traffic; hover storms over a link
	// list must not flood the network.
	RequestsPerSecond float64
	Burst             int
	// EstimatedURLs sizes the dedup filter.
	EstimatedURLs int
	Logger        *logger.Logger
	Metrics       *metrics.Collector
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
		EstimatedURLs:     1000,
	}
}

// Warmer issues fire-and-forget fetches for route templates, deduplicating
// already-warmed URLs with a Bloom filter backed by an exact set.
type Warmer struct {
	mu      sync.Mutex
	filter  *bloom.BloomFilter
	exact   map[string]struct{}
	limiter *rate.Limiter
	client  Fetcher
	log     *logger.Logger
	metrics *metrics.Collector
	wg      sync.WaitGroup
}

// New creates a warmer.
func New(client Fetcher, cfg Config) *Warmer {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.EstimatedURLs < 100 {
		cfg.EstimatedURLs = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Warmer{
		filter:  bloom.NewWithEstimates(uint(cfg.EstimatedURLs), 0.001),
		exact:   make(map[string]struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		client:  client,
		log:     cfg.Logger.WithComponent("prefetch"),
		metrics: cfg.Metrics,
	}
}

// Warm fires a background fetch for a template URL unless it was already
// warmed or the rate limit is exhausted. Errors are ignored; the fetch
// exists only to populate the network cache.
func (w *Warmer) Warm(ctx context.Context, templateURL string) {
	if !w.markNew(templateURL) {
		w.metrics.RecordPrefetch(false)
		return
	}
	if !w.limiter.Allow() {
		w.metrics.RecordPrefetch(false)
		w.log.WithURL(templateURL).Debug("Prefetch rate limited")
		return
	}

	w.metrics.RecordPrefetch(true)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.client.Warm(ctx, templateURL); err != nil {
			// Prefetch races harmlessly with real navigation fetches;
			// failures here are expected and discarded.
			w.log.WithURL(templateURL).WithError(err).Debug("Prefetch failed")
		}
	}()
}

// markNew records a URL, returning false if it was already warmed.
func (w *Warmer) markNew(url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.filter.TestString(url) {
		// Confirm against the exact set: the filter can false-positive.
		if _, seen := w.exact[url]; seen {
			return false
		}
	}
	w.filter.AddString(url)
	w.exact[url] = struct{}{}
	return true
}

// Warmed returns the number of distinct URLs warmed so far.
func (w *Warmer) Warmed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.exact)
}

// Flush waits for in-flight warm-ups to settle.
func (w *Warmer) Flush() {
	w.wg.Wait()
}
