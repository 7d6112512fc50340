package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value      T
	expiration time.Time
}

// TTL is a thread-safe in-memory cache with a single expiry for all entries.
// It backs resolved secrets (API key, signer key) and the per-filter order pagers.
type TTL[T any] struct {
	mu   sync.RWMutex
	data map[string]entry[T]
	ttl  time.Duration
	now  func() time.Time
}

// NewTTL creates a cache whose entries live for ttl after their last Put.
func NewTTL[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		data: make(map[string]entry[T]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns a cached value if present and not expired.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().After(item.expiration) {
		c.mu.Lock()
		// re-check: a concurrent Put may have refreshed it
		if cur, ok := c.data[key]; ok && c.now().After(cur.expiration) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return item.value, true
}

// GetOrCreate returns the live value for key or stores the result of create.
func (c *TTL[T]) GetOrCreate(key string, create func() T) T {
	if v, ok := c.Get(key); ok {
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.data[key]; ok && !c.now().After(item.expiration) {
		return item.value
	}
	v := create()
	c.data[key] = entry[T]{value: v, expiration: c.now().Add(c.ttl)}
	return v
}

// Put inserts or overwrites a cache entry with TTL.
func (c *TTL[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[T]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// Bust deletes a single entry from the cache (e.g., on secret rotation).
func (c *TTL[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Each calls fn for every live entry. fn must not call back into the cache.
func (c *TTL[T]) Each(fn func(key string, value T)) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.data {
		if !now.After(v.expiration) {
			fn(k, v.value)
		}
	}
}

// Len reports the number of stored entries, expired ones included until cleanup.
func (c *TTL[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// StartCleaner periodically removes expired cache entries.
func (c *TTL[T]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (c *TTL[T]) cleanupExpired() {
	now := c.now()
	c.mu.Lock()
	for k, v := range c.data {
		if now.After(v.expiration) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}
