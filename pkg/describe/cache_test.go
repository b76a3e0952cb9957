package describe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Bounded(t *testing.T) {
	c := NewCache(2)
	c.Put("SELECT 1", sampleResult())
	c.Put("SELECT 2", sampleResult())
	c.Put("SELECT 3", Result{})
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("SELECT 1")
	assert.False(t, ok, "oldest entry evicted")

	got, ok := c.Get("SELECT 2")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)
}

func TestCache_KeyedByExactText(t *testing.T) {
	c := NewCache(4)
	c.Put("SELECT 1", sampleResult())

	_, ok := c.Get("select 1")
	assert.False(t, ok)
}
