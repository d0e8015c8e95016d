package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(ttl time.Duration) (*TTLCache, *time.Time) {
	c := NewTTLCache(ttl)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestTTLCacheGetSet(t *testing.T) {
	c, _ := newTestCache(30 * time.Second)

	c.Set("price", 0.25)
	got, ok := c.Get("price")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.(float64) != 0.25 {
		t.Errorf("Get() = %v, want 0.25", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c, now := newTestCache(30 * time.Second)

	c.Set("state", "cached")
	*now = now.Add(31 * time.Second)

	if _, ok := c.Get("state"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, len = %d", c.Len())
	}
}

func TestTTLCacheOverwrite(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("k", 1)
	c.Set("k", 2)
	got, _ := c.Get("k")
	if got.(int) != 2 {
		t.Errorf("Get() = %v, want 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestTTLCacheEvictsExpiredFirst(t *testing.T) {
	c, now := newTestCache(30 * time.Second)

	for i := 0; i < DefaultCapacity; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i)
	}
	// All existing entries expire; the new insert should only displace those.
	*now = now.Add(31 * time.Second)

	c.Set("fresh", "v")
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after expired eviction", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry missing after eviction")
	}
}

func TestTTLCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, now := newTestCache(time.Hour)

	for i := 0; i < DefaultCapacity; i++ {
		c.Set(fmt.Sprintf("k-%d", i), i)
		*now = now.Add(time.Millisecond)
	}

	// Touch the first batch so they become the most recently used.
	for i := 0; i < evictBatch; i++ {
		c.Get(fmt.Sprintf("k-%d", i))
		*now = now.Add(time.Millisecond)
	}

	c.Set("overflow", "v")

	if c.Len() != DefaultCapacity-evictBatch+1 {
		t.Errorf("Len() = %d, want %d", c.Len(), DefaultCapacity-evictBatch+1)
	}
	for i := 0; i < evictBatch; i++ {
		if _, ok := c.Get(fmt.Sprintf("k-%d", i)); !ok {
			t.Errorf("recently used k-%d was evicted", i)
		}
	}
	// The oldest untouched entries should be gone.
	if _, ok := c.Get(fmt.Sprintf("k-%d", evictBatch)); ok {
		t.Errorf("least recently used k-%d survived eviction", evictBatch)
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted key still present")
	}
}
