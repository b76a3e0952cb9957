package describe

import (
	"github.com/wireql/wireql/pkg/util/lru"
)

// Cache is the bounded in-memory describe cache, keyed by query text
// hash.
type Cache struct {
	cache *lru.Cache
}

func NewCache(capacity int) *Cache {
	return &Cache{cache: lru.New(capacity, nil)}
}

func (c *Cache) Get(query string) (Result, bool) {
	v, ok := c.cache.Get(QueryHash(query))
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

func (c *Cache) Put(query string, r Result) {
	c.cache.Put(QueryHash(query), r)
}

func (c *Cache) Len() int { return c.cache.Len() }
