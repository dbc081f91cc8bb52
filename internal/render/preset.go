package render

import (
	"fmt"
	"image"
	"image/color"
)

// PrimitiveKind identifies what a placement draws.
type PrimitiveKind string

const (
	PrimitiveRect     PrimitiveKind = "rect"
	PrimitiveGradient PrimitiveKind = "gradient"
	PrimitiveText     PrimitiveKind = "text"
	PrimitiveImage    PrimitiveKind = "image"
)

// ColorSource selects where a placement takes its color from.
type ColorSource string

const (
	ColorFixed  ColorSource = "fixed"  // use Placement.Color
	ColorAccent ColorSource = "accent" // use the accent token
)

// Placement positions one primitive inside a preset. Coordinates and sizes
// are fractions of the frame so the same preset scales across aspects.
type Placement struct {
	Kind    PrimitiveKind
	X, Y    float64 // top-left, fraction of frame width/height
	W, H    float64 // size, fraction of frame width/height
	ZOrder  int
	Opacity float64

	// Color fields; Color2 is the bottom color of a vertical gradient.
	Source ColorSource
	Color  color.RGBA
	Color2 color.RGBA

	// Token names the token a text primitive renders. A text placement with
	// an absent or empty token is omitted from the overlay entirely.
	Token    string
	TextSize int // basicfont scale multiplier, 1 = 7x13

	// Img is the pre-decoded bitmap of an image primitive. Presets decode
	// their images at build time; the render path never touches disk.
	Img image.Image
}

// Preset is an ordered set of placements describing one overlay look.
type Preset struct {
	ID         string
	Name       string
	Placements []Placement
}

// Library is an immutable preset registry resolved by ID.
type Library struct {
	presets map[string]Preset
}

// NewLibrary builds a library from presets, rejecting duplicate IDs.
func NewLibrary(presets ...Preset) (*Library, error) {
	m := make(map[string]Preset, len(presets))
	for _, p := range presets {
		if _, dup := m[p.ID]; dup {
			return nil, fmt.Errorf("duplicate preset ID %q", p.ID)
		}
		m[p.ID] = p
	}
	return &Library{presets: m}, nil
}

// Get resolves a preset by ID.
func (l *Library) Get(id string) (Preset, bool) {
	p, ok := l.presets[id]
	return p, ok
}

// IDs returns the registered preset IDs.
func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.presets))
	for id := range l.presets {
		ids = append(ids, id)
	}
	return ids
}

// BuiltinPresets returns the presets shipped with the daemon: a lower-third
// name bar and a fuller nameplate card with ambient info.
func BuiltinPresets() []Preset {
	translucentBlack := color.RGBA{0, 0, 0, 200}
	fadedBlack := color.RGBA{0, 0, 0, 0}
	white := color.RGBA{255, 255, 255, 255}
	softGray := color.RGBA{210, 210, 215, 255}

	lowerThird := Preset{
		ID:   "lower-third",
		Name: "Lower Third",
		Placements: []Placement{
			{Kind: PrimitiveGradient, X: 0, Y: 0.80, W: 1, H: 0.20, ZOrder: 0, Opacity: 1,
				Source: ColorFixed, Color: fadedBlack, Color2: translucentBlack},
			{Kind: PrimitiveRect, X: 0.035, Y: 0.845, W: 0.004, H: 0.105, ZOrder: 1, Opacity: 1,
				Source: ColorAccent},
			{Kind: PrimitiveText, X: 0.05, Y: 0.85, W: 0.5, H: 0.05, ZOrder: 2, Opacity: 1,
				Source: ColorFixed, Color: white, Token: TokenDisplayName, TextSize: 3},
			{Kind: PrimitiveText, X: 0.05, Y: 0.905, W: 0.5, H: 0.04, ZOrder: 2, Opacity: 0.9,
				Source: ColorFixed, Color: softGray, Token: TokenTagline, TextSize: 2},
		},
	}

	nameplate := Preset{
		ID:   "nameplate-card",
		Name: "Nameplate Card",
		Placements: []Placement{
			{Kind: PrimitiveRect, X: 0.025, Y: 0.76, W: 0.36, H: 0.19, ZOrder: 0, Opacity: 0.85,
				Source: ColorFixed, Color: color.RGBA{18, 18, 24, 255}},
			{Kind: PrimitiveRect, X: 0.025, Y: 0.76, W: 0.36, H: 0.012, ZOrder: 1, Opacity: 1,
				Source: ColorAccent},
			{Kind: PrimitiveText, X: 0.045, Y: 0.795, W: 0.32, H: 0.05, ZOrder: 2, Opacity: 1,
				Source: ColorFixed, Color: white, Token: TokenDisplayName, TextSize: 3},
			{Kind: PrimitiveText, X: 0.045, Y: 0.85, W: 0.32, H: 0.035, ZOrder: 2, Opacity: 0.9,
				Source: ColorFixed, Color: softGray, Token: TokenTagline, TextSize: 2},
			{Kind: PrimitiveText, X: 0.045, Y: 0.895, W: 0.16, H: 0.03, ZOrder: 2, Opacity: 0.8,
				Source: ColorFixed, Color: softGray, Token: TokenCity, TextSize: 1},
			{Kind: PrimitiveText, X: 0.21, Y: 0.895, W: 0.08, H: 0.03, ZOrder: 2, Opacity: 0.8,
				Source: ColorFixed, Color: softGray, Token: TokenLocalTime, TextSize: 1},
			{Kind: PrimitiveText, X: 0.30, Y: 0.895, W: 0.08, H: 0.03, ZOrder: 2, Opacity: 0.8,
				Source: ColorFixed, Color: softGray, Token: TokenWeatherText, TextSize: 1},
		},
	}

	return []Preset{lowerThird, nameplate}
}
