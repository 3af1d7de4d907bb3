// Package lru provides a generic least-recently-used cache.
//
// The cache is not thread-safe; every user in stage owns its cache from
// the frame goroutine.
package lru

// entry is a node in the doubly-linked recency list.
// The head is the most recently used, the tail the least recently used.
type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

// Cache maps keys to values and evicts the least recently used entry when
// a capacity is set and exceeded.
type Cache[K comparable, V any] struct {
	entries  map[K]*entry[K, V]
	head     *entry[K, V]
	tail     *entry[K, V]
	capacity int

	// OnEvict, when set, is called for entries removed by capacity
	// eviction or EvictOldest. It is not called by Remove or Clear.
	OnEvict func(K, V)
}

// New creates a cache holding at most capacity entries.
// A capacity of 0 means unlimited.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]*entry[K, V]),
		capacity: capacity,
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key as the most recently used entry, evicting
// the least recently used entry if the capacity is exceeded.
func (c *Cache[K, V]) Put(key K, value V) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}
	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if c.capacity > 0 && len(c.entries) > c.capacity {
		old := c.tail
		c.unlink(old)
		delete(c.entries, old.key)
		if c.OnEvict != nil {
			c.OnEvict(old.key, old.value)
		}
	}
}

// Remove deletes key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.entries, key)
	return true
}

// EvictOldest removes the least recently used entry for which keep
// returns false and reports whether one was found. A nil keep evicts the
// oldest entry unconditionally.
func (c *Cache[K, V]) EvictOldest(keep func(K, V) bool) (K, V, bool) {
	for e := c.tail; e != nil; e = e.prev {
		if keep != nil && keep(e.key, e.value) {
			continue
		}
		c.unlink(e)
		delete(c.entries, e.key)
		if c.OnEvict != nil {
			c.OnEvict(e.key, e.value)
		}
		return e.key, e.value, true
	}
	var zk K
	var zv V
	return zk, zv, false
}

// Range calls fn for each entry from least to most recently used until fn
// returns false.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	for e := c.tail; e != nil; e = e.prev {
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	clear(c.entries)
	c.head = nil
	c.tail = nil
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

// unlink removes e from the list and clears its pointers.
func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
