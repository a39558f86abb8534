package cache

import (
	"context"
	"sync"
	"time"

	"github.com/draftlens/backend/internal/domain"
)

// defaultCleanupInterval is how often expired hints are swept
const defaultCleanupInterval = 10 * time.Minute

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      []byte
	Expiration time.Time
	StoredAt   time.Time
}

// MemoryConfig holds configuration for the in-memory cache
type MemoryConfig struct {
	MaxEntries      int
	CleanupInterval time.Duration
}

// MemoryCache is a thread-safe in-memory cache with TTL support and a size
// bound. When full, the oldest entry is evicted.
type MemoryCache struct {
	data       map[string]cacheItem
	maxEntries int
	mutex      sync.RWMutex
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a new in-memory cache. MaxEntries <= 0 means unbounded.
func NewMemoryCache(config MemoryConfig) *MemoryCache {
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	cache := &MemoryCache{
		data:       make(map[string]cacheItem),
		maxEntries: config.MaxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go cache.cleanupExpired(interval)

	return cache
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || c.now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	// Callers may mutate the returned slice
	return append([]byte(nil), item.Value...), nil
}

// Set stores a copy of value with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictOldest(now)
	}

	c.data[key] = cacheItem{
		Value:      append([]byte(nil), value...),
		Expiration: now.Add(ttl),
		StoredAt:   now,
	}

	return nil
}

// evictOldest drops expired entries, or the oldest one if none expired.
// Caller holds the write lock.
func (c *MemoryCache) evictOldest(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
		expired   bool
	)
	for key, item := range c.data {
		if now.After(item.Expiration) {
			delete(c.data, key)
			expired = true
			continue
		}
		if oldestKey == "" || item.StoredAt.Before(oldestAt) {
			oldestKey, oldestAt = key, item.StoredAt
		}
	}
	if !expired && oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := c.now()
			for key, item := range c.data {
				if now.After(item.Expiration) {
					delete(c.data, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}
