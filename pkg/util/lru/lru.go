// Package lru implements the bounded least-recently-used cache backing
// the per-connection statement cache and the in-memory describe cache.
package lru

import "container/list"

// EvictFunc is called for every entry removed to make room, and for every
// entry dropped by Clear. It is not called for Remove.
type EvictFunc func(key string, value interface{})

type Cache struct {
	capacity int
	onEvict  EvictFunc
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key   string
	value interface{}
}

// New creates a cache holding at most capacity entries. capacity <= 0
// means the cache stores nothing and every Put evicts immediately.
func New(capacity int, onEvict EvictFunc) *Cache {
	return &Cache{
		capacity: capacity,
		onEvict:  onEvict,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached value and promotes the entry to most recent.
func (c *Cache) Get(key string) (interface{}, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

// Put inserts or replaces the entry for key, evicting the least recently
// used entry when over capacity.
func (c *Cache) Put(key string, value interface{}) {
	if c.capacity <= 0 {
		if c.onEvict != nil {
			c.onEvict(key, value)
		}
		return
	}
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*lruEntry).value = value
		return
	}
	c.items[key] = c.ll.PushFront(&lruEntry{key: key, value: value})
	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Remove drops the entry without invoking the eviction callback.
func (c *Cache) Remove(key string) (interface{}, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	c.ll.Remove(el)
	delete(c.items, key)
	return entry.value, true
}

// Clear evicts every entry, invoking the eviction callback for each.
func (c *Cache) Clear() {
	for c.ll.Len() > 0 {
		c.evictOldest()
	}
}

func (c *Cache) Len() int {
	return c.ll.Len()
}

func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*lruEntry)
	c.ll.Remove(el)
	delete(c.items, entry.key)
	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
