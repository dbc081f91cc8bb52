package publish

import (
	"image"
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/capture"
)

// ColorSpaceSRGB labels the single color space frames are published in.
const ColorSpaceSRGB = "sRGB"

// ptsDenominator expresses presentation timestamps as nanoseconds over 1e9.
const ptsDenominator = int64(time.Second)

// PublishedFrame is the final composited frame plus the metadata a remote
// consumer needs: a monotonically increasing index for duplicate/gap
// detection, a rational presentation time, geometry, and the shared-memory
// handle of the backing pixels.
type PublishedFrame struct {
	Img        *image.RGBA
	Width      int
	Height     int
	Format     capture.PixelFormat
	Index      int64
	PTSNum     int64
	PTSDen     int64
	ColorSpace string
	Handle     string
}

// Holder keeps the single current published frame. Publishing atomically
// supersedes the previous frame; readers always see a consistent
// image-plus-metadata snapshot.
type Holder struct {
	mu      sync.Mutex
	current *PublishedFrame
	last    int64
}

// NewHolder returns an empty holder. The first published frame gets index 1.
func NewHolder() *Holder {
	return &Holder{}
}

// Publish stores a new current frame, assigning the next frame index, and
// returns the stored record. The previous frame is released by the swap.
func (h *Holder) Publish(img *image.RGBA, pts time.Time, handle string) *PublishedFrame {
	bounds := img.Bounds()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last++
	pf := &PublishedFrame{
		Img:        img,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     capture.PixelFormatRGBA,
		Index:      h.last,
		PTSNum:     pts.UnixNano(),
		PTSDen:     ptsDenominator,
		ColorSpace: ColorSpaceSRGB,
		Handle:     handle,
	}
	h.current = pf
	return pf
}

// Snapshot returns the current frame, or ok=false when none is published.
// The returned record is immutable after publish.
func (h *Holder) Snapshot() (*PublishedFrame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}

// Clear drops the current frame. The index sequence continues across
// clears so consumers never observe a repeated index.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
}
