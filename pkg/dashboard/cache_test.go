package dashboard

import (
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	cache := NewCache(100, 1*time.Minute)

	// Test cache miss
	key := NewCacheKey("alice", "", DefaultOptions())

	_, ok := cache.Get(key)
	if ok {
		t.Error("Expected cache miss, got hit")
	}

	// Test cache put and get
	views := []MetricView{{Name: MetricCadence, LatestText: "110 步/分"}}
	cache.Put(key, views)

	cached, ok := cache.Get(key)
	if !ok {
		t.Fatal("Expected cache hit, got miss")
	}

	if len(cached) != 1 {
		t.Errorf("Expected 1 view, got %d", len(cached))
	}

	if cached[0].LatestText != "110 步/分" {
		t.Errorf("Expected latest text 110 步/分, got %s", cached[0].LatestText)
	}
}

func TestCacheKeyDistinguishesOptions(t *testing.T) {
	cache := NewCache(100, 1*time.Minute)

	opts := DefaultOptions()
	cache.Put(NewCacheKey("alice", "", opts), []MetricView{{Name: "a"}})

	other := opts
	other.Window = 5
	if _, ok := cache.Get(NewCacheKey("alice", "", other)); ok {
		t.Error("Expected miss for a different window")
	}

	if _, ok := cache.Get(NewCacheKey("alice", MetricCadence, opts)); ok {
		t.Error("Expected miss for a single metric key")
	}

	if _, ok := cache.Get(NewCacheKey("bob", "", opts)); ok {
		t.Error("Expected miss for another subject")
	}

	later := NewCacheKey("alice", "", opts)
	later.Revision = 1
	if _, ok := cache.Get(later); ok {
		t.Error("Expected miss for a later store revision")
	}
}

func TestCacheTTL(t *testing.T) {
	// Short TTL for testing
	cache := NewCache(100, 100*time.Millisecond)

	key := NewCacheKey("alice", "", DefaultOptions())
	cache.Put(key, []MetricView{})

	// Should be in cache
	_, ok := cache.Get(key)
	if !ok {
		t.Error("Expected cache hit")
	}

	// Wait for TTL to expire
	time.Sleep(150 * time.Millisecond)

	// Should be expired
	_, ok = cache.Get(key)
	if ok {
		t.Error("Expected cache miss after TTL expiration")
	}
}

func TestCacheLRU(t *testing.T) {
	// Small cache
	cache := NewCache(2, 1*time.Minute)

	key1 := NewCacheKey("s1", "", DefaultOptions())
	key2 := NewCacheKey("s2", "", DefaultOptions())
	key3 := NewCacheKey("s3", "", DefaultOptions())

	cache.Put(key1, []MetricView{})
	cache.Put(key2, []MetricView{})

	// Access key1 to make it most recently used
	cache.Get(key1)

	// Add key3, should evict key2
	cache.Put(key3, []MetricView{})

	if _, ok := cache.Get(key1); !ok {
		t.Error("Expected key1 to be in cache")
	}

	if _, ok := cache.Get(key2); ok {
		t.Error("Expected key2 to be evicted")
	}

	if _, ok := cache.Get(key3); !ok {
		t.Error("Expected key3 to be in cache")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(100, 1*time.Minute)

	opts := DefaultOptions()
	cache.Put(NewCacheKey("alice", "", opts), []MetricView{})
	cache.Put(NewCacheKey("alice", MetricCadence, opts), []MetricView{})
	cache.Put(NewCacheKey("bob", "", opts), []MetricView{})

	if dropped := cache.Invalidate("alice"); dropped != 2 {
		t.Errorf("Expected 2 entries dropped, got %d", dropped)
	}

	if cache.Size() != 1 {
		t.Errorf("Expected 1 entry left, got %d", cache.Size())
	}

	if _, ok := cache.Get(NewCacheKey("bob", "", opts)); !ok {
		t.Error("Expected other subjects to survive invalidation")
	}
}

func TestCacheStats(t *testing.T) {
	cache := NewCache(10, 1*time.Minute)

	key := NewCacheKey("alice", "", DefaultOptions())
	cache.Get(key)
	cache.Put(key, []MetricView{})
	cache.Get(key)

	stats := cache.Stats()
	if stats.Size != 1 || stats.Capacity != 10 {
		t.Errorf("Unexpected size/capacity: %+v", stats)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats)
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Expected empty cache after clear, got %d", cache.Size())
	}
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCache(0, 1*time.Minute)

	key := NewCacheKey("alice", "", DefaultOptions())
	cache.Put(key, []MetricView{})

	if _, ok := cache.Get(key); ok {
		t.Error("Expected zero capacity to disable caching")
	}
}
