package cache

import (
	"sync"
	"time"
)

// entry pairs a cached value with its absolute expiry instant.
// Entries are replaced wholesale, never mutated in place.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an in-memory cache whose entries become logically absent once
// their expiry instant passes. Expiry is lazy: reads do not evict, a
// later Put simply overwrites. Safe for concurrent use.
//
// The cache never talks to the vault itself; callers populate it after a
// successful upstream fetch.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates an empty cache.
func New[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injected clock. Tests use this to
// advance time without sleeping.
func NewWithClock[K comparable, V any](now func() time.Time) *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		now:     now,
	}
}

// Get returns the value for key if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, unconditionally overwriting any previous
// entry and restarting the TTL from now.
func (c *TTL[K, V]) Put(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Invalidate removes the entry for key, if any.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
