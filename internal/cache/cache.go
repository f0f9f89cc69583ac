// Package cache provides a small in-memory cache with expiring entries.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	expiration time.Time
}

// Cache maps keys to values that expire after a TTL. When full, the entry
// closest to expiry is evicted.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]*entry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a cache holding up to maxSize entries, each kept for ttl.
// Close stops its cleanup goroutine.
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:   make(map[string]*entry[V]),
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup(max(ttl, time.Second))
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || c.now().After(e.expiration) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &entry[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V])
}

// Stats counts the entries, split into valid and expired.
func (c *Cache[V]) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	valid, expired := 0, 0
	now := c.now()
	for _, e := range c.items {
		if now.After(e.expiration) {
			expired++
		} else {
			valid++
		}
	}
	return map[string]int{
		"total":    len(c.items),
		"valid":    valid,
		"expired":  expired,
		"max_size": c.maxSize,
	}
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.items {
		if oldestKey == "" || e.expiration.Before(oldest) {
			oldestKey, oldest = key, e.expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.items {
		if now.After(e.expiration) {
			delete(c.items, key)
		}
	}
}

func (c *Cache[V]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}
