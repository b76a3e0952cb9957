package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New(2, nil)
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := New(2, func(key string, _ interface{}) {
		evicted = append(evicted, key)
	})
	c.Put("a", 1)
	c.Put("b", 2)

	// Touch "a" so "b" is now the oldest.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", 3)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestCache_PutReplacesInPlace(t *testing.T) {
	var evictions int
	c := New(1, func(string, interface{}) { evictions++ })
	c.Put("a", 1)
	c.Put("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Zero(t, evictions)
}

func TestCache_ZeroCapacityEvictsImmediately(t *testing.T) {
	var evicted []string
	c := New(0, func(key string, _ interface{}) {
		evicted = append(evicted, key)
	})
	c.Put("a", 1)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Zero(t, c.Len())
}

func TestCache_RemoveSkipsCallback(t *testing.T) {
	var evictions int
	c := New(2, func(string, interface{}) { evictions++ })
	c.Put("a", 1)

	v, ok := c.Remove("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Zero(t, evictions)
	assert.Zero(t, c.Len())

	_, ok = c.Remove("a")
	assert.False(t, ok)
}

func TestCache_ClearEvictsAll(t *testing.T) {
	var evicted []string
	c := New(3, func(key string, _ interface{}) {
		evicted = append(evicted, key)
	})
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	assert.Len(t, evicted, 2)
	assert.Zero(t, c.Len())
}
