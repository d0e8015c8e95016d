// Package cache provides the two caching layers in front of external
// APIs: a bounded in-memory TTL cache for exchange responses and a
// Redis-backed response cache with graceful degradation.
package cache

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of entries held at once.
	DefaultCapacity = 100
	// evictBatch is how many least-recently-used entries go when the
	// cache is still full after dropping expired ones.
	evictBatch = 20
)

type entry struct {
	value      interface{}
	expiresAt  time.Time
	accessedAt time.Time
}

// TTLCache is a thread-safe, capacity-bounded cache with per-cache TTL.
// Eviction removes expired entries first, then the least recently
// accessed batch.
type TTLCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewTTLCache creates a cache with the given TTL and DefaultCapacity.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
}

// Get returns the cached value for key, or false if absent or expired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	e.accessedAt = c.now()
	return e.value, true
}

// Set stores a value under key, evicting if the cache is at capacity.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	now := c.now()
	c.entries[key] = &entry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
}

// Delete removes a key if present.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the current number of entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries, then the least recently accessed
// batch if the cache is still full. Caller holds the lock.
func (c *TTLCache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.capacity {
		return
	}

	type keyed struct {
		key        string
		accessedAt time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, accessedAt: e.accessedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].accessedAt.Before(all[j].accessedAt)
	})

	n := evictBatch
	if n > len(all) {
		n = len(all)
	}
	for _, ke := range all[:n] {
		delete(c.entries, ke.key)
	}
}
