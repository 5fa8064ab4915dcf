package statecache

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps device ids to their caches. Caches are created on first
// Acquire and torn down by Remove.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*Cache)}
}

// Acquire returns the cache for id, creating it if needed.
func (r *Registry) Acquire(id string) *Cache {
	r.mu.RLock()
	c, ok := r.caches[id]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[id]; ok {
		return c
	}
	c = New(id)
	r.caches[id] = c
	return c
}

// Lookup returns the cache for id without creating one.
func (r *Registry) Lookup(id string) (*Cache, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[id]
	return c, ok
}

// Find is Lookup for callers that want an error.
func (r *Registry) Find(id string) (*Cache, error) {
	c, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Remove closes and forgets the cache for id. A later Acquire creates a
// fresh cache.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.caches[id]
	delete(r.caches, id)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
}

// IDs lists the registered device ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.caches))
}
