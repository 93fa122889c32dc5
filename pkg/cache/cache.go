// Package cache provides a bounded, expiring key/value store shared across
// conversation turns to memoize idempotent external lookups.
package cache

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Defaults used when New is given a non-positive capacity or TTL.
const (
	DefaultCapacity = 100
	DefaultTTL      = time.Hour
)

// Cache is an LRU cache with per-entry expiry. All operations are
// serialized by one mutex, so a Cache is safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List // front is most recently used
	items    map[string]*list.Element
	onLookup func(hit bool)
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now      func() time.Time
	onLookup func(hit bool)
}

// WithClock overrides the time source. Used by tests to advance past TTL.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLookupHook registers a callback invoked after every Get with whether
// it was a hit. The callback runs outside the cache lock.
func WithLookupHook(fn func(hit bool)) Option {
	return func(o *options) {
		o.onLookup = fn
	}
}

// New creates a cache holding at most capacity live entries, each valid for ttl.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		onLookup: o.onLookup,
	}
}

// Get returns the value stored under key. An entry older than the TTL is
// removed and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.get(key)
	if c.onLookup != nil {
		c.onLookup(ok)
	}
	return v, ok
}

func (c *Cache[V]) get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().Sub(e.storedAt) > c.ttl {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set inserts or overwrites key and marks it most recently used. If the
// cache is over capacity afterwards, the least recently used entry is evicted.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = now
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, storedAt: now})
	if c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of stored entries, including expired entries that
// have not been touched since expiring.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the stored keys from most to least recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// caller holds c.mu
func (c *Cache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}

// Key derives a cache key from a query: whitespace is collapsed and case
// folded before hashing, so equivalent queries share a key.
func Key(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}
