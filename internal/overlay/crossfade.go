package overlay

import (
	"image"
	"time"
)

// DefaultCrossfadeDuration is how long an overlay transition blends the
// outgoing and incoming overlays.
const DefaultCrossfadeDuration = 250 * time.Millisecond

// crossfade tracks an in-flight transition from a previous overlay to the
// current one. It is created when the active LayoutKey changes (or an aspect
// change is signaled) and cleared once the blend duration has elapsed.
type crossfade struct {
	previous *image.RGBA
	start    time.Time
	duration time.Duration
}

// progress reports the blend fraction at now: 0 at start, 1 once elapsed
// meets or exceeds the duration.
func (f *crossfade) progress(now time.Time) float64 {
	if f.duration <= 0 {
		return 1
	}
	elapsed := now.Sub(f.start)
	if elapsed >= f.duration {
		return 1
	}
	if elapsed < 0 {
		return 0
	}
	return float64(elapsed) / float64(f.duration)
}
