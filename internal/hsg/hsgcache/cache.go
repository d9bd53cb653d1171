// Package hsgcache implements a bounded LRU+TTL cache used for both the
// hybrid-query result cache and the per-tenant learned-classifier cache
// (spec.md §4.3, §5). Loosely grounded on the CacheConfig/CacheEntry/
// CacheStats shape seen in the pack's semantic-caching reference file,
// narrowed down to a plain LRU-with-expiry since the HSG spec needs simple
// bounded memoization rather than similarity-based cache lookups.
package hsgcache

import (
	"container/list"
	"sync"
	"time"
)

// Stats reports cumulative cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expiries  int64
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Cache is a fixed-capacity, TTL-expiring, least-recently-used cache. Safe
// for concurrent use.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	clock    func() time.Time
	ll       *list.List
	items    map[string]*list.Element
	stats    Stats
}

// New builds a Cache bounded to maxSize entries, each expiring ttl after
// insertion. clock defaults to time.Now if nil.
func New(maxSize int, ttl time.Duration, clock func() time.Time) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		clock:   clock,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}
}

// Get returns the cached value for key, or (nil, false) on miss or expiry.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.ttl > 0 && c.clock().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Expiries++
		c.stats.Misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set inserts or updates key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
	if c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		if oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the current number of entries (including expired ones that
// haven't been lazily evicted yet).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Snapshot returns a copy of cumulative stats.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	e := el.Value.(*entry)
	delete(c.items, e.key)
}
