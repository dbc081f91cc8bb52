package overlay

import (
	"image"
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/render"
)

// powerSaverRenderCadence draws the overlay on 1 of every N ticks while in
// power-saver mode; skipped ticks reuse the previous overlay layer. The base
// frame is never skipped.
const powerSaverRenderCadence = 3

// Compositor produces the final frame for a tick: it derives (or reuses) the
// overlay for the current render input, manages crossfades between overlay
// versions, and alpha-composites the overlay onto the raw or placeholder
// frame.
type Compositor struct {
	renderer *render.Renderer
	perf     *governor.State

	mu           sync.Mutex
	cache        *lruCache
	lastKey      render.LayoutKey
	lastOverlay  *image.RGBA
	fade         *crossfade
	fadeDuration time.Duration
	forceFade    bool
	tick         uint64
}

// Option tweaks compositor construction.
type Option func(*Compositor)

// WithCacheCapacity overrides the overlay cache capacity.
func WithCacheCapacity(n int) Option {
	return func(c *Compositor) { c.cache = newLRUCache(n) }
}

// WithCrossfadeDuration overrides the overlay transition duration.
func WithCrossfadeDuration(d time.Duration) Option {
	return func(c *Compositor) { c.fadeDuration = d }
}

// NewCompositor builds a compositor over a renderer and shared performance
// state.
func NewCompositor(renderer *render.Renderer, perf *governor.State, opts ...Option) *Compositor {
	c := &Compositor{
		renderer:     renderer,
		perf:         perf,
		cache:        newLRUCache(DefaultCacheCapacity),
		fadeDuration: DefaultCrossfadeDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns the composited frame for one tick. base must be the raw
// camera frame or a placeholder; it is not modified. now is the tick's
// presentation time and drives crossfade progress.
func (c *Compositor) Compose(base *image.RGBA, in render.Input, now time.Time) (*image.RGBA, error) {
	bounds := base.Bounds()
	overlay, err := c.overlayForTick(in, bounds.Dx(), bounds.Dy(), now)
	if err != nil {
		return nil, err
	}
	if overlay == nil {
		// Zero drawable placements: the frame passes through untouched.
		return base, nil
	}

	out := image.NewRGBA(base.Bounds())
	copy(out.Pix, base.Pix)
	render.AlphaOver(out, overlay)
	return out, nil
}

// overlayForTick resolves the overlay layer for this tick, consulting the
// fast path, the LRU cache, the power-saver skip cadence, and any active
// crossfade.
func (c *Compositor) overlayForTick(in render.Input, width, height int, now time.Time) (*image.RGBA, error) {
	key := in.Key()

	c.mu.Lock()
	c.tick++

	// Power-saver mode re-derives the overlay only on a fixed cadence and
	// reuses the previous overlay layer otherwise.
	if c.perf != nil && c.perf.Mode() == governor.ModePowerSaver &&
		c.lastOverlay != nil && c.tick%powerSaverRenderCadence != 0 {
		overlay := c.blendLocked(c.lastOverlay, now)
		c.mu.Unlock()
		return overlay, nil
	}

	// Fast path: unchanged key with a previously derived overlay.
	if key == c.lastKey && c.lastOverlay != nil {
		overlay := c.blendLocked(c.lastOverlay, now)
		c.mu.Unlock()
		return overlay, nil
	}

	cached, hit := c.cache.Get(key)
	prevOverlay := c.lastOverlay
	prevKey := c.lastKey
	c.mu.Unlock()

	overlay := cached
	if !hit {
		// Render outside the lock: rasterization is the expensive part and
		// must not block concurrent cache clears or fetch-driven reads.
		rendered, err := c.renderer.Render(in, width, height)
		if err != nil {
			return nil, err
		}
		if rendered == nil {
			// No cache entry for empty presets.
			c.mu.Lock()
			c.lastKey = key
			c.lastOverlay = nil
			c.fade = nil
			c.mu.Unlock()
			return nil, nil
		}
		overlay = rendered
	}

	c.mu.Lock()
	if !hit {
		c.cache.Add(key, overlay)
	}
	forceFade := c.forceFade
	c.forceFade = false
	if prevOverlay != nil {
		changed := prevKey != "" && (key != prevKey || !overlay.Bounds().Eq(prevOverlay.Bounds()))
		if changed || forceFade {
			c.fade = &crossfade{previous: prevOverlay, start: now, duration: c.fadeDuration}
			logger.WithComponent("compositor").Debug().
				Str("preset", in.PresetID).
				Msg("Overlay changed, starting crossfade")
		}
	}
	c.lastKey = key
	c.lastOverlay = overlay
	blended := c.blendLocked(overlay, now)
	c.mu.Unlock()

	return blended, nil
}

// blendLocked applies the active crossfade to the current overlay, clearing
// the fade once its duration has elapsed. Caller holds c.mu.
func (c *Compositor) blendLocked(current *image.RGBA, now time.Time) *image.RGBA {
	if c.fade == nil {
		return current
	}
	t := c.fade.progress(now)
	if t >= 1 {
		c.fade = nil
		return current
	}
	return render.BlendProportional(c.fade.previous, current, t)
}

// SignalAspectChange forces a crossfade on the next tick even if the layout
// key itself is unchanged, by dropping the remembered key.
func (c *Compositor) SignalAspectChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKey = ""
	c.forceFade = true
}

// ClearCache empties the overlay cache. The governor calls this when
// degrading modes; stale frame-sized overlays are the largest idle
// allocation in the process.
func (c *Compositor) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}

// CacheLen reports the current number of cached overlays.
func (c *Compositor) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
