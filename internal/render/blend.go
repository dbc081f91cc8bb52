package render

import (
	"image"
	"image/color"
)

// BlendImage alpha-blends src over dst at (x, y) with an extra opacity
// multiplier, clipping to dst bounds.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}

		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			srcColor := src.At(sx, sy)
			sr, sg, sb, sa := srcColor.RGBA()

			alpha := float64(sa) * opacity / 65535.0
			if alpha <= 0 {
				continue
			}

			dstColor := dst.At(dx, dy)
			dr, dg, db, da := dstColor.RGBA()

			outAlpha := alpha + float64(da)/65535.0*(1-alpha)
			if outAlpha > 0 {
				outR := uint8((float64(sr)*alpha + float64(dr)/65535.0*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				outG := uint8((float64(sg)*alpha + float64(dg)/65535.0*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				outB := uint8((float64(sb)*alpha + float64(db)/65535.0*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				outA := uint8(outAlpha * 255)

				dst.SetRGBA(dx, dy, color.RGBA{R: outR, G: outG, B: outB, A: outA})
			}
		}
	}
}

// AlphaOver composites overlay over base in place. Both images must share
// the same bounds origin; the overlay is cropped to the base's bounds.
func AlphaOver(base *image.RGBA, overlay *image.RGBA) {
	BlendImage(base, overlay, base.Bounds().Min.X, base.Bounds().Min.Y, 1.0)
}

// BlendProportional mixes two same-sized RGBA images: t=0 yields a, t=1
// yields b. Used for overlay crossfades.
func BlendProportional(a, b *image.RGBA, t float64) *image.RGBA {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}

	bounds := b.Bounds()
	out := image.NewRGBA(bounds)

	// Mix per channel; images with differing bounds fall back to pixel
	// lookups outside a's range returning transparent.
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var ac color.RGBA
			if image.Pt(x, y).In(a.Bounds()) {
				ac = a.RGBAAt(x, y)
			}
			bc := b.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(ac.R)*(1-t) + float64(bc.R)*t),
				G: uint8(float64(ac.G)*(1-t) + float64(bc.G)*t),
				B: uint8(float64(ac.B)*(1-t) + float64(bc.B)*t),
				A: uint8(float64(ac.A)*(1-t) + float64(bc.A)*t),
			})
		}
	}
	return out
}

// ScaleNearest scales src into dstRect of dst with nearest-neighbor sampling.
func ScaleNearest(dst *image.RGBA, dstRect image.Rectangle, src *image.RGBA) {
	scaleNearest(dst, dstRect, src)
}

// scaleNearest scales src into dstRect of dst with nearest-neighbor sampling.
func scaleNearest(dst *image.RGBA, dstRect image.Rectangle, src *image.RGBA) {
	srcRect := src.Bounds()
	dstWidth := dstRect.Dx()
	dstHeight := dstRect.Dy()
	srcWidth := srcRect.Dx()
	srcHeight := srcRect.Dy()
	if dstWidth <= 0 || dstHeight <= 0 || srcWidth <= 0 || srcHeight <= 0 {
		return
	}

	for dy := 0; dy < dstHeight; dy++ {
		for dx := 0; dx < dstWidth; dx++ {
			sx := srcRect.Min.X + (dx*srcWidth)/dstWidth
			sy := srcRect.Min.Y + (dy*srcHeight)/dstHeight
			dst.SetRGBA(dstRect.Min.X+dx, dstRect.Min.Y+dy, src.RGBAAt(sx, sy))
		}
	}
}
