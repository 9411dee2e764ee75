// ABOUTME: In-memory TTL cache for expensive index queries such as popular tag counts.
// ABOUTME: Errors are never cached; expired entries are recomputed on the next lookup.
package timeline

import (
	"context"
	"sync"
	"time"
)

// FillFunc computes the value for a cache miss.
type FillFunc[V any] func(ctx context.Context) (V, error)

type cacheEntry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache keeps values for ttl after they were computed.
type Cache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[K]*cacheEntry[V]
	mu      sync.RWMutex
}

// NewCache creates a Cache whose entries expire after ttl.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]*cacheEntry[V]),
	}
}

// Get returns the cached value for key or computes it with fill.
func (c *Cache[K, V]) Get(ctx context.Context, key K, fill FillFunc[V]) (V, error) {
	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.createdAt) < c.ttl {
		v := entry.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err := fill(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry[V]{value: v, createdAt: c.now()}
	c.mu.Unlock()
	return v, nil
}

// Len returns the number of entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*cacheEntry[V])
}
