// Package cache provides the response cache shared by all tool calls: a
// TTL plus capacity-bounded key/value store with least-recently-used
// eviction. Most LLM sessions re-query the same handful of objects, so
// caching keeps the engine from amplifying load on the public registries.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key        string
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// Cache is safe for concurrent use; a single mutex serializes access
// (this is not a throughput-critical path). Expiry is checked lazily on
// Get; capacity eviction runs on Put. A Get bumps recency.
type Cache struct {
	mu       sync.Mutex
	maxItems int
	ll       *list.List // front = most recently used
	items    map[string]*list.Element

	// now is swappable for expiry tests.
	now func() time.Time
}

// New returns a Cache bounded to maxItems entries. maxItems < 1 is
// treated as 1.
func New(maxItems int) *Cache {
	if maxItems < 1 {
		maxItems = 1
	}
	return &Cache{
		maxItems: maxItems,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached value for key, if present and unexpired.
// Expired entries are removed and treated as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > e.ttl {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Put stores value under key with the given ttl, evicting the
// least-recently-used entry when the cache would exceed capacity.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = c.now()
		e.ttl = ttl
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, value: value, insertedAt: c.now(), ttl: ttl})
	c.items[key] = el

	for c.ll.Len() > c.maxItems {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Len returns the current number of entries, including any not yet
// lazily expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
