// Package cache provides the in-memory LRU store for static-asset responses.
//
// Entries expire after a fixed freshness window and are evicted lazily on Get
// or when capacity is exceeded on Set. All methods are safe for concurrent use.
package cache

import (
	"net/http"
	"sync"
	"time"
)

// Entry is a cached upstream response.
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// LRU is a fixed-capacity cache with per-entry TTL, keyed by request URL.
type LRU struct {
	mu        sync.Mutex
	data      map[string]*node
	head      *node // most recently used
	tail      *node // least recently used
	capacity  int
	maxBody   int
	ttl       time.Duration
	evictions int64

	now func() time.Time // injectable clock
}

type node struct {
	key   string
	entry Entry
	prev  *node
	next  *node
}

// New creates an LRU holding at most capacity entries, each fresh for ttl.
// Bodies larger than maxBodyBytes are never stored.
func New(capacity, maxBodyBytes int, ttl time.Duration) *LRU {
	return &LRU{
		data:     make(map[string]*node),
		capacity: capacity,
		maxBody:  maxBodyBytes,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the entry for key if present and still within the freshness
// window. Stale entries are removed on access.
func (c *LRU) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.data[key]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(n.entry.StoredAt) >= c.ttl {
		c.detach(n)
		delete(c.data, key)
		return Entry{}, false
	}

	c.moveToFront(n)
	return n.entry, true
}

// Set stores an entry under key, evicting the least recently used entry when
// capacity is exceeded. Oversized bodies are dropped silently.
func (c *LRU) Set(key string, e Entry) {
	if c.capacity <= 0 {
		return
	}
	if c.maxBody > 0 && len(e.Body) > c.maxBody {
		return
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		n.entry = e
		c.moveToFront(n)
		return
	}

	n := &node{key: key, entry: e, next: c.head}
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.data[key] = n

	if len(c.data) > c.capacity {
		lru := c.tail
		c.detach(lru)
		delete(c.data, lru.key)
		c.evictions++
	}
}

// TTL returns the freshness window applied to every entry.
func (c *LRU) TTL() time.Duration {
	return c.ttl
}

// Len returns the number of entries currently stored, stale ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Evictions returns the number of capacity evictions since creation.
func (c *LRU) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

func (c *LRU) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.detach(n)
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU) detach(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
