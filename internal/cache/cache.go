// Package cache is a small in-memory TTL cache with first-in first-out
// eviction, used to memoize analyses of recent conversations.
package cache

import (
	"container/list"
	"sync"
	"time"

	"fapassist/internal/textproc"
)

// Defaults used when New receives non-positive values.
const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 1000
)

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Cache maps keys to values for at most ttl. When full, the entry inserted
// first is evicted regardless of how often it was read.
type Cache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	order    *list.List
	items    map[string]*list.Element
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns an empty cache.
func New[V any](ttl time.Duration, capacity int, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		ttl:      ttl,
		capacity: capacity,
		now:      o.now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Key builds the cache key of a question asked after history.
func Key(question, history string) string {
	return textproc.Normalize(question) + "|" + textproc.Normalize(history)
}

// Get returns the value for key if it is present and younger than the TTL.
// Expired entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. An existing key is overwritten, re-stamped and
// moved to the back of the eviction queue.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = now
		c.order.MoveToBack(el)
		return
	}
	for c.order.Len() >= c.capacity {
		front := c.order.Front()
		c.order.Remove(front)
		delete(c.items, front.Value.(*entry[V]).key)
	}
	c.items[key] = c.order.PushBack(&entry[V]{key: key, value: value, storedAt: now})
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}
