// Package models caches the provider's model listing.
package models

import (
	"context"
	"sync"

	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// Loader fetches the model listing from the provider.
type Loader func(ctx context.Context) ([]provider.Model, error)

// Cache memoizes one model listing until Invalidate is called. There is no
// expiry. Concurrent misses may each call the loader; the last result to
// arrive is kept.
type Cache struct {
	mu     sync.RWMutex
	models []provider.Model
	loaded bool

	// generation is bumped by Invalidate so a load that started before
	// the invalidation does not repopulate the cache.
	generation uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached listing, calling load on a miss. The bool reports
// whether the result came from the cache. Failed loads are not cached.
func (c *Cache) Get(ctx context.Context, load Loader) ([]provider.Model, bool, error) {
	c.mu.RLock()
	if c.loaded {
		models := c.models
		c.mu.RUnlock()
		return models, true, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	debug.Log("models", "cache miss, loading model listing")
	models, err := load(ctx)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.models = models
		c.loaded = true
	}
	c.mu.Unlock()

	debug.Log("models", "model listing loaded", "count", len(models))
	return models, false, nil
}

// Invalidate drops the cached listing.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.models = nil
	c.loaded = false
	c.generation++
	c.mu.Unlock()
	debug.Log("models", "cache invalidated")
}

// Cached reports whether a listing is currently held.
func (c *Cache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
