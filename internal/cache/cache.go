// Package cache provides a concurrency-safe, size-bounded result cache with
// optional TTL expiry and explicit invalidation.
//
// Two instances back the retrieval core: the conversation history cache
// (no TTL, invalidated on append) and the knowledge search cache (1 h TTL,
// no write invalidation — the corpus is slow-changing).
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache maps string keys to values of type V. It evicts least-recently-used
// entries once the size bound is reached and, when a TTL is configured,
// treats entries older than the TTL as absent.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration // 0 = entries never expire by age
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	hits   uint64
	misses uint64

	// now is overridable in tests to exercise TTL expiry without sleeping.
	now func() time.Time
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// New creates a cache holding at most maxSize entries. A ttl of 0 disables
// age-based expiry. maxSize must be positive.
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	ent := el.Value.(*entry[V])
	if c.ttl > 0 && c.now().Sub(ent.storedAt) >= c.ttl {
		c.removeLocked(el)
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Set stores value under key, replacing any existing entry and evicting the
// least-recently-used entry if the cache is full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, storedAt: c.now()})
	c.entries[key] = el
}

// Delete removes the entry for key, if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Used by the history cache: all cached views of a thread share the thread
// id as key prefix, so one append invalidates them all.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(el)
		}
	}
}

// Purge removes all entries. Counters are preserved.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the current number of entries, including any not yet expired.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cumulative hit/miss counters.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// removeLocked unlinks an element; callers must hold c.mu.
func (c *Cache[V]) removeLocked(el *list.Element) {
	ent := el.Value.(*entry[V])
	delete(c.entries, ent.key)
	c.order.Remove(el)
}
