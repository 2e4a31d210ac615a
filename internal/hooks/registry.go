// Package hooks provides the lifecycle registry: per route key, at most one
// mount and one unmount callback, registered by the active page itself.
package hooks

import (
	"context"
	"sync"
)

// Hook is a page lifecycle callback.
type Hook func(ctx context.Context) error

type entry struct {
	mount   Hook
	unmount Hook
}

// Registry maps route keys to lifecycle hooks. It is owned by the engine
// and passed through transitions; it is never package-global state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// SetMount registers the mount hook for a key. A later registration for the
// same key replaces the earlier one; the replaced hook is never invoked.
func (r *Registry) SetMount(key string, fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[key]
	e.mount = fn
	r.entries[key] = e
}

// SetUnmount registers the unmount hook for a key, replacing any earlier one.
func (r *Registry) SetUnmount(key string, fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[key]
	e.unmount = fn
	r.entries[key] = e
}

// Mount returns the mount hook registered for a key. Consulting a hook does
// not erase it; only a later SetMount for the same key replaces it.
func (r *Registry) Mount(key string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok || e.mount == nil {
		return nil, false
	}
	return e.mount, true
}

// Unmount returns the unmount hook registered for a key without erasing it.
func (r *Registry) Unmount(key string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok || e.unmount == nil {
		return nil, false
	}
	return e.unmount, true
}

// Len returns the number of keys with at least one hook registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
