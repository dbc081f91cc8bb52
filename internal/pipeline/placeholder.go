package pipeline

import (
	"image"
	"image/color"

	"github.com/stagecam/stagecam/internal/render"
)

// newPlaceholder draws the synthetic frame used whenever no raw camera frame
// is available: a dark vertical gradient with a centered label. Drawn once
// per geometry and reused.
func newPlaceholder(width, height int, label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	top := color.RGBA{24, 26, 34, 255}
	bottom := color.RGBA{10, 10, 14, 255}
	for y := 0; y < height; y++ {
		t := float64(y) / float64(height)
		rowColor := color.RGBA{
			R: uint8(float64(top.R)*(1-t) + float64(bottom.R)*t),
			G: uint8(float64(top.G)*(1-t) + float64(bottom.G)*t),
			B: uint8(float64(top.B)*(1-t) + float64(bottom.B)*t),
			A: 255,
		}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, rowColor)
		}
	}

	if label != "" {
		size := 3
		labelWidth := len(label) * 7 * size
		x := (width - labelWidth) / 2
		y := height/2 - (13*size)/2
		render.DrawLabel(img, x, y, label, color.RGBA{140, 145, 160, 255}, size, 0.9)
	}

	return img
}
