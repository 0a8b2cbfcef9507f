// Package policycache caches the active policy version per slug for a short TTL.
package policycache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rigshare/service-booking/internal/domain/policy"
)

// Loader fetches the active policy version from the source of truth.
type Loader interface {
	FindActive(ctx context.Context, slug string) (*policy.Version, error)
}

type entry struct {
	version   *policy.Version
	expiresAt time.Time
}

// Cache is safe for concurrent use. Concurrent misses for one slug share a
// single load.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache. A non-positive ttl disables caching.
func New(loader Loader, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached active version for slug, loading it on a miss or
// after expiry. Load errors are not cached.
func (c *Cache) Get(ctx context.Context, slug string) (*policy.Version, error) {
	if v, ok := c.lookup(slug); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(slug, func() (interface{}, error) {
		if v, ok := c.lookup(slug); ok {
			return v, nil
		}
		v, err := c.loader.FindActive(ctx, slug)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[slug] = entry{version: v, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*policy.Version), nil
}

func (c *Cache) lookup(slug string) (*policy.Version, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[slug]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.version, true
}

// Invalidate drops the entry for slug. Call after publishing a new version.
func (c *Cache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.mu.Unlock()
	c.group.Forget(slug)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
