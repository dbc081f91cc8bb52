package overlay

import (
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecam/stagecam/internal/render"
)

func key(i int) render.LayoutKey {
	return render.LayoutKey(fmt.Sprintf("key-%d", i))
}

func tinyImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 2, 2))
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(3)
	for i := 0; i < 4; i++ {
		c.Add(key(i), tinyImage())
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get(key(0))
	assert.False(t, ok, "oldest entry must be evicted at capacity")
	for i := 1; i < 4; i++ {
		_, ok := c.Get(key(i))
		assert.True(t, ok)
	}
}

func TestLRUCacheGetPromotes(t *testing.T) {
	c := newLRUCache(2)
	c.Add(key(0), tinyImage())
	c.Add(key(1), tinyImage())

	// Touch key 0 so key 1 becomes the eviction candidate.
	_, ok := c.Get(key(0))
	require.True(t, ok)

	c.Add(key(2), tinyImage())

	_, ok = c.Get(key(0))
	assert.True(t, ok, "recently used entry survived")
	_, ok = c.Get(key(1))
	assert.False(t, ok, "least recently used entry evicted")
}

func TestLRUCacheAddReplacesExisting(t *testing.T) {
	c := newLRUCache(2)
	first := tinyImage()
	second := tinyImage()

	c.Add(key(0), first)
	c.Add(key(0), second)

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get(key(0))
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestLRUCacheClear(t *testing.T) {
	c := newLRUCache(3)
	c.Add(key(0), tinyImage())
	c.Add(key(1), tinyImage())

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(key(0))
	assert.False(t, ok)
}

func TestLRUCacheMinimumCapacity(t *testing.T) {
	c := newLRUCache(0)
	c.Add(key(0), tinyImage())
	c.Add(key(1), tinyImage())
	assert.Equal(t, 1, c.Len())
}
