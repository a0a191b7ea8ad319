package dashboard

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// CacheKey identifies one derived dashboard. Revision is the store revision
// the views were built from, so entries from before a write are never served.
type CacheKey struct {
	Subject  string       `json:"subject"`
	Metric   string       `json:"metric"`
	Revision uint64       `json:"revision"`
	Window   int          `json:"window"`
	Canvas   types.Canvas `json:"canvas"`
	WithArea bool         `json:"withArea"`
}

// NewCacheKey builds a key for a whole dashboard (metric empty) or one metric
func NewCacheKey(subject, metric string, opts Options) CacheKey {
	return CacheKey{
		Subject:  subject,
		Metric:   metric,
		Window:   opts.Window,
		Canvas:   opts.Canvas,
		WithArea: opts.WithArea,
	}
}

// Cache is an LRU cache of derived views with a TTL.
// Entries are dropped per subject whenever that subject's records change.
type Cache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lru      *list.List
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	key       string
	subject   string
	views     []MetricView
	timestamp time.Time
	element   *list.Element
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Expired  int    `json:"expired"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// NewCache creates a new view cache
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves cached views
func (c *Cache) Get(key CacheKey) ([]MetricView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := generateKey(key)
	entry, exists := c.entries[k]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl {
		c.removeLocked(k)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(entry.element)
	c.hits++
	return entry.views, true
}

// Put stores views in the cache
func (c *Cache) Put(key CacheKey, views []MetricView) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := generateKey(key)
	if entry, exists := c.entries[k]; exists {
		entry.views = views
		entry.timestamp = time.Now()
		c.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       k,
		subject:   key.Subject,
		views:     views,
		timestamp: time.Now(),
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[k] = entry

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// Invalidate drops every entry of a subject and returns how many were dropped
func (c *Cache) Invalidate(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for k, entry := range c.entries {
		if entry.subject == subject {
			c.removeLocked(k)
			dropped++
		}
	}
	return dropped
}

// removeLocked removes an entry from the cache (must hold lock)
func (c *Cache) removeLocked(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lru.Remove(entry.element)
		delete(c.entries, key)
	}
}

// Clear clears all cache entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lru = list.New()
}

// Size returns the current cache size
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for _, entry := range c.entries {
		if time.Since(entry.timestamp) > c.ttl {
			expired++
		}
	}

	return CacheStats{
		Size:     len(c.entries),
		Capacity: c.capacity,
		Expired:  expired,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

// generateKey hashes the key fields into a fixed-size map key
func generateKey(key CacheKey) string {
	data, _ := json.Marshal(key)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
