package cache

import (
	"context"
	"sync"
	"time"
)

// Cache memoizes serialized aggregation results for a bounded TTL, to
// absorb repeated identical queries. Keys are deterministic filter-spec
// serializations, so two logically identical filters always hit the same
// entry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type entry struct {
	value      []byte
	insertedAt time.Time
}

// MemoryCache is the process-local implementation. Expiry is checked on
// read (lazy eviction); there is no background sweep. Get/Set/evict are
// atomic per key.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache constructs a cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value, evicting and missing when the entry has
// outlived the TTL.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && c.now().Sub(cur.insertedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores the value with the current insertion time.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, insertedAt: c.now()}
	c.mu.Unlock()
}
