package overlay

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/render"
)

func testRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	lib, err := render.NewLibrary(
		render.Preset{
			ID: "bar",
			Placements: []render.Placement{
				{Kind: render.PrimitiveRect, X: 0, Y: 0.8, W: 1, H: 0.2, Opacity: 1,
					Source: render.ColorFixed, Color: color.RGBA{0, 0, 0, 200}},
			},
		},
		render.Preset{
			ID: "badge",
			Placements: []render.Placement{
				{Kind: render.PrimitiveRect, X: 0, Y: 0, W: 0.2, H: 0.2, Opacity: 1,
					Source: render.ColorFixed, Color: color.RGBA{255, 0, 0, 255}},
			},
		},
		render.Preset{ID: "empty"},
	)
	require.NoError(t, err)
	return render.NewRenderer(lib)
}

func baseFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := range img.Pix {
		img.Pix[i] = 0x40
	}
	return img
}

func TestComposeFastPathReusesOverlay(t *testing.T) {
	renderer := testRenderer(t)
	c := NewCompositor(renderer, governor.NewState())
	in := render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "Ada"}}
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := c.Compose(baseFrame(), in, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(1), renderer.RenderCount(),
		"unchanged input must not re-rasterize")
}

func TestComposeEmptyPresetPassesBaseThrough(t *testing.T) {
	c := NewCompositor(testRenderer(t), governor.NewState())
	base := baseFrame()

	out, err := c.Compose(base, render.Input{PresetID: "empty"}, time.Now())
	require.NoError(t, err)
	assert.Same(t, base, out, "no drawable placements leaves the frame untouched")
	assert.Equal(t, 0, c.CacheLen(), "empty overlays are not cached")
}

func TestComposeDoesNotModifyBase(t *testing.T) {
	c := NewCompositor(testRenderer(t), governor.NewState())
	base := baseFrame()
	before := make([]byte, len(base.Pix))
	copy(before, base.Pix)

	out, err := c.Compose(base, render.Input{PresetID: "bar"}, time.Now())
	require.NoError(t, err)
	assert.NotSame(t, base, out)
	assert.Equal(t, before, base.Pix, "compositing must not write into the raw frame")
}

func TestComposeCacheHitAfterKeyChange(t *testing.T) {
	renderer := testRenderer(t)
	c := NewCompositor(renderer, governor.NewState())
	now := time.Now()

	a := render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "Ada"}}
	b := render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "Grace"}}

	_, err := c.Compose(baseFrame(), a, now)
	require.NoError(t, err)
	_, err = c.Compose(baseFrame(), b, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, uint64(2), renderer.RenderCount())

	// Returning to the first input hits the LRU cache, not the renderer.
	_, err = c.Compose(baseFrame(), a, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), renderer.RenderCount())
	assert.Equal(t, 2, c.CacheLen())
}

func TestComposeCrossfadeBlendsOverlays(t *testing.T) {
	renderer := testRenderer(t)
	c := NewCompositor(renderer, governor.NewState(), WithCrossfadeDuration(200*time.Millisecond))
	now := time.Now()

	// Establish the "bar" overlay (bottom strip), then switch to "badge"
	// (top-left block). Mid-fade, the badge region is only partially red.
	barFrame, err := c.Compose(baseFrame(), render.Input{PresetID: "bar"}, now)
	require.NoError(t, err)

	start, err := c.Compose(baseFrame(), render.Input{PresetID: "badge"}, now.Add(100*time.Millisecond))
	require.NoError(t, err)

	// At elapsed zero the fade shows the outgoing overlay exactly: the frame
	// matches the pre-switch composite pixel for pixel.
	assert.Equal(t, barFrame.Pix, start.Pix,
		"fade start equals the previous overlay composited")

	mid, err := c.Compose(baseFrame(), render.Input{PresetID: "badge"}, now.Add(200*time.Millisecond))
	require.NoError(t, err)

	done, err := c.Compose(baseFrame(), render.Input{PresetID: "badge"}, now.Add(time.Second))
	require.NoError(t, err)

	midPx := mid.RGBAAt(2, 2)
	donePx := done.RGBAAt(2, 2)
	assert.Less(t, midPx.R, donePx.R, "mid-fade badge is dimmer than the settled overlay")
	assert.Equal(t, uint8(255), donePx.R, "fade settles on the new overlay")
}

func TestComposePowerSaverSkipsRenders(t *testing.T) {
	renderer := testRenderer(t)
	perf := governor.NewState()
	c := NewCompositor(renderer, perf)
	now := time.Now()

	// First tick renders normally and seeds lastOverlay.
	_, err := c.Compose(baseFrame(), render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "a"}}, now)
	require.NoError(t, err)
	require.Equal(t, uint64(1), renderer.RenderCount())

	perf.SetMode(governor.ModePowerSaver)

	// Tick 2 is off-cadence: the changed input is ignored and the previous
	// overlay reused.
	_, err = c.Compose(baseFrame(), render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "b"}}, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), renderer.RenderCount())

	// Tick 3 is on-cadence and re-derives.
	_, err = c.Compose(baseFrame(), render.Input{PresetID: "bar", Tokens: render.Tokens{DisplayName: "c"}}, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), renderer.RenderCount())
}

func TestSignalAspectChangeForcesRederive(t *testing.T) {
	renderer := testRenderer(t)
	c := NewCompositor(renderer, governor.NewState())
	in := render.Input{PresetID: "bar"}
	now := time.Now()

	_, err := c.Compose(baseFrame(), in, now)
	require.NoError(t, err)

	c.SignalAspectChange()

	// Same key, but the fast path is disarmed; the cache still answers, so
	// no extra rasterization happens.
	_, err = c.Compose(baseFrame(), in, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), renderer.RenderCount())
}

func TestClearCache(t *testing.T) {
	renderer := testRenderer(t)
	c := NewCompositor(renderer, governor.NewState())

	_, err := c.Compose(baseFrame(), render.Input{PresetID: "bar"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, c.CacheLen())

	c.ClearCache()
	assert.Equal(t, 0, c.CacheLen())
}

func TestCrossfadeProgress(t *testing.T) {
	start := time.Now()
	f := &crossfade{start: start, duration: 200 * time.Millisecond}

	assert.Equal(t, 0.0, f.progress(start))
	assert.InDelta(t, 0.5, f.progress(start.Add(100*time.Millisecond)), 1e-9)
	assert.Equal(t, 1.0, f.progress(start.Add(250*time.Millisecond)))
	assert.Equal(t, 0.0, f.progress(start.Add(-time.Second)), "clock skew clamps to the fade start")

	instant := &crossfade{start: start, duration: 0}
	assert.Equal(t, 1.0, instant.progress(start))
}
