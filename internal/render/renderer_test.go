package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLibrary(t *testing.T, presets ...Preset) *Library {
	t.Helper()
	lib, err := NewLibrary(presets...)
	require.NoError(t, err)
	return lib
}

func TestLibraryRejectsDuplicateIDs(t *testing.T) {
	_, err := NewLibrary(Preset{ID: "a"}, Preset{ID: "a"})
	assert.Error(t, err)
}

func TestRenderUnknownPreset(t *testing.T) {
	r := NewRenderer(testLibrary(t))

	img, err := r.Render(Input{PresetID: "missing"}, 64, 36)
	assert.Error(t, err)
	assert.Nil(t, img)
}

func TestRenderEmptyPresetYieldsNoOverlay(t *testing.T) {
	r := NewRenderer(testLibrary(t, Preset{ID: "empty"}))

	img, err := r.Render(Input{PresetID: "empty"}, 64, 36)
	require.NoError(t, err)
	assert.Nil(t, img, "a preset with zero placements produces no overlay")
	assert.Zero(t, r.RenderCount())
}

func TestRenderSkipsTextWithAbsentToken(t *testing.T) {
	preset := Preset{
		ID: "text-only",
		Placements: []Placement{
			{Kind: PrimitiveText, X: 0.1, Y: 0.1, Opacity: 1,
				Source: ColorFixed, Color: color.RGBA{255, 255, 255, 255},
				Token: TokenTagline, TextSize: 1},
		},
	}
	r := NewRenderer(testLibrary(t, preset))

	// No tagline set: the single text placement is omitted, leaving nothing
	// drawable.
	img, err := r.Render(Input{PresetID: "text-only"}, 64, 36)
	require.NoError(t, err)
	assert.Nil(t, img)

	img, err = r.Render(Input{PresetID: "text-only", Tokens: Tokens{Tagline: "Host"}}, 64, 36)
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestRenderSkipsInvisibleOpacity(t *testing.T) {
	preset := Preset{
		ID: "invisible",
		Placements: []Placement{
			{Kind: PrimitiveRect, X: 0, Y: 0, W: 1, H: 1, Opacity: 0.001,
				Source: ColorFixed, Color: color.RGBA{255, 0, 0, 255}},
		},
	}
	r := NewRenderer(testLibrary(t, preset))

	img, err := r.Render(Input{PresetID: "invisible"}, 64, 36)
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestRenderCountTracksRasterizations(t *testing.T) {
	preset := Preset{
		ID: "bar",
		Placements: []Placement{
			{Kind: PrimitiveRect, X: 0, Y: 0.8, W: 1, H: 0.2, Opacity: 1,
				Source: ColorFixed, Color: color.RGBA{0, 0, 0, 200}},
		},
	}
	r := NewRenderer(testLibrary(t, preset))
	in := Input{PresetID: "bar"}

	_, err := r.Render(in, 64, 36)
	require.NoError(t, err)
	_, err = r.Render(in, 64, 36)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), r.RenderCount(), "each Render call rasterizes; caching is the compositor's job")
}

func TestRenderAccentSource(t *testing.T) {
	preset := Preset{
		ID: "accent",
		Placements: []Placement{
			{Kind: PrimitiveRect, X: 0, Y: 0, W: 1, H: 1, Opacity: 1, Source: ColorAccent},
		},
	}
	r := NewRenderer(testLibrary(t, preset))

	img, err := r.Render(Input{
		PresetID: "accent",
		Tokens:   Tokens{AccentColorHex: "#ff0000"},
	}, 8, 8)
	require.NoError(t, err)
	require.NotNil(t, img)

	c := img.RGBAAt(4, 4)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(0), c.G)
	assert.Equal(t, uint8(0), c.B)
}

func TestRenderZOrder(t *testing.T) {
	// Two full-frame opaque rects; the higher z-order must win.
	preset := Preset{
		ID: "stacked",
		Placements: []Placement{
			{Kind: PrimitiveRect, X: 0, Y: 0, W: 1, H: 1, ZOrder: 5, Opacity: 1,
				Source: ColorFixed, Color: color.RGBA{0, 255, 0, 255}},
			{Kind: PrimitiveRect, X: 0, Y: 0, W: 1, H: 1, ZOrder: 1, Opacity: 1,
				Source: ColorFixed, Color: color.RGBA{255, 0, 0, 255}},
		},
	}
	r := NewRenderer(testLibrary(t, preset))

	img, err := r.Render(Input{PresetID: "stacked"}, 8, 8)
	require.NoError(t, err)
	require.NotNil(t, img)

	c := img.RGBAAt(4, 4)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.G)
}

func TestBuiltinPresetsLoad(t *testing.T) {
	lib := testLibrary(t, BuiltinPresets()...)

	for _, id := range []string{"lower-third", "nameplate-card"} {
		preset, ok := lib.Get(id)
		assert.True(t, ok, "builtin preset %q missing", id)
		assert.NotEmpty(t, preset.Placements)
	}
}
