// Package metrics provides counters for the navigation engine.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector collects and aggregates engine metrics.
type Collector struct {
	navigations       atomic.Int64
	notFoundRenders   atomic.Int64
	superseded        atomic.Int64
	fragmentsResolved atomic.Int64
	fragmentsFailed   atomic.Int64
	scriptsLoaded     atomic.Int64
	scriptsFailed     atomic.Int64
	prefetchWarmed    atomic.Int64
	prefetchSkipped   atomic.Int64

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordNavigation records a navigation transition.
func (c *Collector) RecordNavigation() {
	c.navigations.Add(1)
}

// RecordNotFound records a not-found render (404 entry or literal fallback).
func (c *Collector) RecordNotFound() {
	c.notFoundRenders.Add(1)
}

// RecordSuperseded records a transition abandoned because a newer one began.
func (c *Collector) RecordSuperseded() {
	c.superseded.Add(1)
}

// RecordFragment records a fragment resolution attempt.
func (c *Collector) RecordFragment(ok bool) {
	if ok {
		c.fragmentsResolved.Add(1)
	} else {
		c.fragmentsFailed.Add(1)
	}
}

// RecordScript records an external script load attempt.
func (c *Collector) RecordScript(ok bool) {
	if ok {
		c.scriptsLoaded.Add(1)
	} else {
		c.scriptsFailed.Add(1)
	}
}

// RecordPrefetch records a prefetch attempt; skipped means deduplicated or
// rate limited.
func (c *Collector) RecordPrefetch(warmed bool) {
	if warmed {
		c.prefetchWarmed.Add(1)
	} else {
		c.prefetchSkipped.Add(1)
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Navigations       int64         `json:"navigations"`
	NotFoundRenders   int64         `json:"not_found_renders"`
	Superseded        int64         `json:"superseded"`
	FragmentsResolved int64         `json:"fragments_resolved"`
	FragmentsFailed   int64         `json:"fragments_failed"`
	ScriptsLoaded     int64         `json:"scripts_loaded"`
	ScriptsFailed     int64         `json:"scripts_failed"`
	PrefetchWarmed    int64         `json:"prefetch_warmed"`
	PrefetchSkipped   int64         `json:"prefetch_skipped"`
	Uptime            time.Duration `json:"uptime"`
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Navigations:       c.navigations.Load(),
		NotFoundRenders:   c.notFoundRenders.Load(),
		Superseded:        c.superseded.Load(),
		FragmentsResolved: c.fragmentsResolved.Load(),
		FragmentsFailed:   c.fragmentsFailed.Load(),
		ScriptsLoaded:     c.scriptsLoaded.Load(),
		ScriptsFailed:     c.scriptsFailed.Load(),
		PrefetchWarmed:    c.prefetchWarmed.Load(),
		PrefetchSkipped:   c.prefetchSkipped.Load(),
		Uptime:            time.Since(c.startTime),
	}
}
