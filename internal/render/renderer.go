package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"sync/atomic"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/stagecam/stagecam/internal/logger"
)

// MinOpacity is the threshold below which a placement is not drawn at all.
const MinOpacity = 0.01

// Renderer rasterizes a preset's placement list into a transparent overlay
// surface sized to the frame. It is stateless apart from a render counter
// used by diagnostics and tests.
type Renderer struct {
	lib     *Library
	renders atomic.Uint64
}

// NewRenderer creates a renderer over a preset library.
func NewRenderer(lib *Library) *Renderer {
	return &Renderer{lib: lib}
}

// RenderCount reports how many full overlay rasterizations have happened.
// Cache hits do not increment it.
func (r *Renderer) RenderCount() uint64 {
	return r.renders.Load()
}

// Render draws the overlay described by in at the given frame size.
// A preset with zero drawable placements yields a nil image and no error;
// the caller must leave the base frame unmodified in that case.
func (r *Renderer) Render(in Input, width, height int) (*image.RGBA, error) {
	preset, ok := r.lib.Get(in.PresetID)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", in.PresetID)
	}
	if len(preset.Placements) == 0 {
		return nil, nil
	}

	placements := make([]Placement, len(preset.Placements))
	copy(placements, preset.Placements)
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].ZOrder < placements[j].ZOrder
	})

	surface := image.NewRGBA(image.Rect(0, 0, width, height))
	drawn := 0

	for _, p := range placements {
		if p.Opacity < MinOpacity {
			continue
		}
		if p.Kind == PrimitiveText && in.Tokens.Get(p.Token) == "" {
			// A text primitive whose token is absent is omitted, never
			// rendered empty.
			continue
		}

		px := int(p.X * float64(width))
		py := int(p.Y * float64(height))
		pw := int(p.W * float64(width))
		ph := int(p.H * float64(height))

		c := p.Color
		if p.Source == ColorAccent {
			c = in.Tokens.AccentColor()
		}

		switch p.Kind {
		case PrimitiveRect:
			drawRect(surface, px, py, pw, ph, c, p.Opacity)
		case PrimitiveGradient:
			c2 := p.Color2
			drawGradient(surface, px, py, pw, ph, c, c2, p.Opacity)
		case PrimitiveText:
			drawText(surface, px, py, in.Tokens.Get(p.Token), c, p.TextSize, p.Opacity)
		case PrimitiveImage:
			if p.Img != nil {
				BlendImage(surface, p.Img, px, py, p.Opacity)
			}
		default:
			logger.WithComponent("render").Warn().
				Str("kind", string(p.Kind)).
				Str("preset", preset.ID).
				Msg("Skipping placement with unknown primitive kind")
			continue
		}
		drawn++
	}

	if drawn == 0 {
		return nil, nil
	}

	r.renders.Add(1)
	return surface, nil
}

// DrawLabel draws a single line of text, for callers outside the placement
// pipeline (placeholder frames, diagnostics overlays).
func DrawLabel(dst *image.RGBA, x, y int, text string, c color.RGBA, size int, opacity float64) {
	drawText(dst, x, y, text, c, size, opacity)
}

func drawRect(dst *image.RGBA, x, y, w, h int, c color.RGBA, opacity float64) {
	if w <= 0 || h <= 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(tmp, tmp.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	BlendImage(dst, tmp, x, y, opacity)
}

func drawGradient(dst *image.RGBA, x, y, w, h int, top, bottom color.RGBA, opacity float64) {
	if w <= 0 || h <= 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		t := float64(row) / float64(h)
		rowColor := color.RGBA{
			R: uint8(float64(top.R)*(1-t) + float64(bottom.R)*t),
			G: uint8(float64(top.G)*(1-t) + float64(bottom.G)*t),
			B: uint8(float64(top.B)*(1-t) + float64(bottom.B)*t),
			A: uint8(float64(top.A)*(1-t) + float64(bottom.A)*t),
		}
		for col := 0; col < w; col++ {
			tmp.SetRGBA(col, row, rowColor)
		}
	}
	BlendImage(dst, tmp, x, y, opacity)
}

func drawText(dst *image.RGBA, x, y int, text string, c color.RGBA, size int, opacity float64) {
	if text == "" {
		return
	}
	if size < 1 {
		size = 1
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	textWidthPx := int(d.MeasureString(text) >> 6)
	if textWidthPx <= 0 {
		return
	}

	// Rasterize at native basicfont size, then scale up for larger sizes.
	lineHeight := face.Metrics().Height.Ceil()
	textImg := image.NewRGBA(image.Rect(0, 0, textWidthPx, lineHeight))
	drawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Metrics().Ascent.Ceil())},
	}
	drawer.DrawString(text)

	if size == 1 {
		BlendImage(dst, textImg, x, y, opacity)
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, textWidthPx*size, lineHeight*size))
	scaleNearest(scaled, scaled.Bounds(), textImg)
	BlendImage(dst, scaled, x, y, opacity)
}
