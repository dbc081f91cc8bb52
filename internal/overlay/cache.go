package overlay

import (
	"container/list"
	"image"

	"github.com/stagecam/stagecam/internal/render"
)

// DefaultCacheCapacity bounds the rendered-overlay cache. Overlays are large
// (frame-sized RGBA), so the cache stays deliberately small.
const DefaultCacheCapacity = 6

type cacheEntry struct {
	key render.LayoutKey
	img *image.RGBA
}

// lruCache is a bounded least-recently-used cache of rendered overlays keyed
// by LayoutKey. It is not safe for concurrent use; the Compositor guards it.
type lruCache struct {
	capacity int
	order    *list.List // front = most recently used
	items    map[render.LayoutKey]*list.Element
}

func newLRUCache(capacity int) *lruCache {
	if capacity < 1 {
		capacity = 1
	}
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[render.LayoutKey]*list.Element, capacity),
	}
}

// Get returns the cached overlay for key, promoting it to most recently used.
func (c *lruCache) Get(key render.LayoutKey) (*image.RGBA, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).img, true
}

// Add inserts an overlay, evicting the least-recently-used entry when full.
func (c *lruCache) Add(key render.LayoutKey, img *image.RGBA) {
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).img = img
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, img: img})
}

// Len reports the number of cached overlays.
func (c *lruCache) Len() int {
	return c.order.Len()
}

// Clear drops every cached overlay.
func (c *lruCache) Clear() {
	c.order.Init()
	c.items = make(map[render.LayoutKey]*list.Element, c.capacity)
}
