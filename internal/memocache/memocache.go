// Package memocache is a small bounded TTL cache for memoizing expensive
// lookups between polls. It is explicitly scoped: callers construct a cache
// and pass it to whatever needs it; there is no process-wide instance.
package memocache

import (
	"sync"
	"time"
)

// Cache memoizes values by string key. Entries expire after the TTL and the
// cache never holds more than its configured capacity; the stalest entry is
// evicted to make room. The zero value is not usable; use New.
type Cache[V any] struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New builds a cache. A nil clock uses time.Now; capacity below 1 is
// treated as 1.
func New[V any](ttl time.Duration, capacity int, clock func() time.Time) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		ttl:      ttl,
		capacity: capacity,
		now:      clock,
		entries:  make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value, evicting the stalest entry when at capacity.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictStalestLocked()
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Compute errors are not cached.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

// Invalidate drops one key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops everything.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

func (c *Cache[V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

func (c *Cache[V]) evictStalestLocked() {
	var (
		stalest string
		oldest  time.Time
		first   = true
	)
	for key, e := range c.entries {
		if first || e.storedAt.Before(oldest) {
			stalest = key
			oldest = e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, stalest)
	}
}
