// Package cache memoizes read-command results with per-entry TTLs.
//
// The cache exists so that concurrent readers do not hammer the external
// application with identical script calls. It is deliberately simple:
// unbounded in entry count (bounded in practice by TTL at the expected
// key cardinality), no LRU, and no global lock held while a value is
// being computed.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// entry is one cached value. Entries are immutable after insertion;
// replacement swaps the whole pointer.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// expired reports whether the entry's age has reached its ttl.
// An entry is never served once age >= ttl.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Cache is a thread-safe TTL memoization map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// now is the clock; tests override it to step time directly.
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache's clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for key if its age is below ttl,
// otherwise calls compute, stores the result, and returns it. The
// boolean reports a cache hit.
//
// Failed computes are never stored. The cache lock is not held during
// compute, so concurrent misses on the same key each compute; the last
// writer wins the slot. That duplication is acceptable for reads - the
// expensive property to protect is mutation serialization, which lives
// in the operation queue, not here.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	c.Set(key, v, ttl)
	return v, false, nil
}

// Get returns the live value for key, if any.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given ttl, replacing any previous
// entry. A non-positive ttl stores nothing: the entry would be born
// expired.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = &entry{value: value, insertedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
}

// InvalidatePrefix removes every entry whose key starts with any of the
// given prefixes. The operation queue calls this right after a mutation
// succeeds, using the mutation kind's static prefix mapping.
func (c *Cache) InvalidatePrefix(prefixes ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				delete(c.entries, k)
				removed++
				break
			}
		}
	}
	return removed
}

// InvalidateFunc removes every entry whose key satisfies pred.
func (c *Cache) InvalidateFunc(pred func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if pred(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Sweep drops expired entries. Expired entries are already unservable;
// sweeping just reclaims their memory. Called periodically by the
// bridge's janitor.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently stored, including expired
// entries not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
