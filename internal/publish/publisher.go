package publish

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/stagecam/stagecam/internal/logger"
)

// Publisher fans a composited frame out to every destination for a tick: the
// published-frame holder (side-channel), the OS-facing loopback sink, and
// the MJPEG preview. The holder is the source of truth; sink failures are
// per-frame errors that never unpublish the frame.
type Publisher struct {
	holder  *Holder
	shm     *ShmWriter
	sink    *V4L2Sink
	preview *MJPEGPreview

	// OnFrameAvailable and OnStreamStopped fire once per state transition,
	// not per frame, so the companion process can avoid polling.
	OnFrameAvailable func()
	OnStreamStopped  func()

	active atomic.Bool
}

// NewPublisher wires the destinations. shm, sink, and preview may each be
// nil (headless and test configurations).
func NewPublisher(holder *Holder, shm *ShmWriter, sink *V4L2Sink, preview *MJPEGPreview) *Publisher {
	return &Publisher{holder: holder, shm: shm, sink: sink, preview: preview}
}

// Publish atomically supersedes the current published frame and pushes it to
// the attached sinks. Returns the published record.
func (p *Publisher) Publish(img *image.RGBA, pts time.Time) (*PublishedFrame, error) {
	var handle string
	if p.shm != nil {
		h, err := p.shm.Write(img)
		if err != nil {
			return nil, err
		}
		handle = h
	}

	pf := p.holder.Publish(img, pts, handle)

	if p.sink != nil {
		if err := p.sink.WriteFrame(img); err != nil {
			logger.WithComponent("publish").Warn().
				Err(err).
				Int64("index", pf.Index).
				Msg("Loopback write failed, frame still published")
		}
	}
	if p.preview != nil {
		if err := p.preview.WriteFrame(img); err != nil {
			logger.WithComponent("publish").Debug().Err(err).Msg("Preview write skipped")
		}
	}

	if p.active.CompareAndSwap(false, true) && p.OnFrameAvailable != nil {
		p.OnFrameAvailable()
	}
	return pf, nil
}

// Stop clears the published-frame holder and signals stream-stopped once.
// Idempotent.
func (p *Publisher) Stop() {
	p.holder.Clear()
	if p.active.CompareAndSwap(true, false) && p.OnStreamStopped != nil {
		p.OnStreamStopped()
	}
}
