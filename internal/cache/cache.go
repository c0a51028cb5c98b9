// Package cache provides the cache port used by the generator and translator,
// plus a bounded in-memory LRU implementation with per-entry TTL.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is the port through which callers store computed values.
// Implementations must be safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value for key and true if it is present and unexpired.
	Get(key string) (V, bool)
	// Set stores value under key. A ttl of 0 means the entry never expires.
	Set(key string, value V, ttl time.Duration)
	// Evict removes key if present.
	Evict(key string)
	// Len returns the number of stored entries, expired ones included.
	Len() int
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// MemoryCache is an LRU cache bounded by entry count. Expired entries are
// dropped lazily on access or by Sweep.
type MemoryCache[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry[V]
	lru      *list.List
	now      func() time.Time
}

// NewMemoryCache returns a cache holding at most capacity entries.
func NewMemoryCache[V any](capacity int) *MemoryCache[V] {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryCache[V]{
		capacity: capacity,
		items:    make(map[string]*entry[V]),
		lru:      list.New(),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *MemoryCache[V]) WithClock(now func() time.Time) *MemoryCache[V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.remove(e)
		return zero, false
	}
	c.lru.MoveToFront(e.element)
	return e.value, true
}

func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(e.element)
		return
	}

	for len(c.items) >= c.capacity {
		c.evictOldest()
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	e.element = c.lru.PushFront(e)
	c.items[key] = e
}

func (c *MemoryCache[V]) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.remove(e)
	}
}

func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *MemoryCache[V]) Capacity() int {
	return c.capacity
}

// Sweep removes every expired entry and returns how many were removed.
func (c *MemoryCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, e := range c.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

// StartSweeper calls Sweep every interval until ctx is done. A non-positive
// interval starts nothing; expired entries are then dropped lazily by Get.
func (c *MemoryCache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

// must hold c.mu
func (c *MemoryCache[V]) evictOldest() {
	if back := c.lru.Back(); back != nil {
		c.remove(back.Value.(*entry[V]))
	}
}

// must hold c.mu
func (c *MemoryCache[V]) remove(e *entry[V]) {
	delete(c.items, e.key)
	c.lru.Remove(e.element)
}
