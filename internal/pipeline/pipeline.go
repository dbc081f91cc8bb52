// Package pipeline runs the fixed-rate frame scheduler: every tick it drains
// the raw-frame mailbox (or substitutes a placeholder), composites the
// overlay, and hands the result to the publisher. Consumers hold the stream
// open through a use counter; the last release tears the session down.
package pipeline

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/capture"
	"github.com/stagecam/stagecam/internal/config"
	"github.com/stagecam/stagecam/internal/enrich"
	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/metrics"
	"github.com/stagecam/stagecam/internal/overlay"
	"github.com/stagecam/stagecam/internal/publish"
	"github.com/stagecam/stagecam/internal/render"
)

// snapshotEveryTicks is the health snapshot cadence (once per second at the
// default 60 Hz).
const snapshotEveryTicks = 60

// placeholderLabel is drawn on the synthetic frame during camera gaps.
const placeholderLabel = "NO SIGNAL"

// Deps collects everything the scheduler coordinates. Enricher, governor,
// metrics, and pressure source are optional; the rest are required.
type Deps struct {
	Config     *config.Manager
	Adapter    *capture.Adapter
	Slot       *capture.Slot
	Renderer   *render.Renderer
	Compositor *overlay.Compositor
	Publisher  *publish.Publisher
	Enricher   *enrich.Enricher
	Errors     *governor.ErrorManager
	Metrics    *metrics.Pipeline
	Pressure   governor.PressureSource
}

// Pipeline is the frame scheduler plus the lifecycle glue around it.
type Pipeline struct {
	deps Deps

	width  int
	height int
	fps    int

	mu       sync.Mutex
	users    int
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	placeholder *image.RGBA
	lastAspect  render.Aspect

	// per-snapshot window counters, touched only on the tick goroutine
	ticksInWindow uint64
	rawInWindow   uint64
	rendersBase   uint64
	dropsBase     uint64
	failuresBase  uint64

	subs []bus.Subscription
}

// New builds the pipeline for the configured output geometry.
func New(deps Deps) *Pipeline {
	out := deps.Config.Get().Output
	return &Pipeline{
		deps:   deps,
		width:  out.Width,
		height: out.Height,
		fps:    out.FPS,
	}
}

// Users reports the current consumer count.
func (p *Pipeline) Users() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users
}

// Running reports whether the tick loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Acquire registers a stream consumer. The 0 to 1 transition starts capture
// and the tick loop; further acquisitions only bump the count. A capture
// start failure is routed through the error manager (which may rebuild the
// session) and the loop runs regardless, publishing placeholders until
// frames arrive.
func (p *Pipeline) Acquire() error {
	p.mu.Lock()
	p.users++
	users := p.users
	alreadyRunning := p.running
	if !alreadyRunning {
		p.running = true
		p.stopChan = make(chan struct{})
		p.doneChan = make(chan struct{})
	}
	p.mu.Unlock()

	logger.WithComponent("pipeline").Info().
		Int("users", users).
		Msg("Stream acquired")

	if alreadyRunning {
		return nil
	}

	device := p.deps.Config.GetSettings().CameraDeviceID
	var startErr error
	if err := p.deps.Adapter.Start(device); err != nil {
		startErr = fmt.Errorf("capture start on %q: %w", device, err)
		p.deps.Errors.HandleFault(startErr)
	}

	go p.run(p.stopChan, p.doneChan)
	return startErr
}

// Release drops one consumer. The 1 to 0 transition stops the stream. Extra
// releases are ignored.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.users == 0 {
		p.mu.Unlock()
		return
	}
	p.users--
	users := p.users
	p.mu.Unlock()

	logger.WithComponent("pipeline").Info().
		Int("users", users).
		Msg("Stream released")

	if users == 0 {
		p.Shutdown()
	}
}

// Shutdown stops the tick loop, capture, and publishing, regardless of the
// consumer count. Idempotent. Requested settings (device, overlay state)
// survive a stop so the next start resumes where the stream left off.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stopChan
	done := p.doneChan
	p.users = 0
	p.mu.Unlock()

	close(stop)
	<-done

	if err := p.deps.Adapter.Stop(); err != nil {
		logger.WithComponent("pipeline").Warn().Err(err).Msg("Capture stop reported an error")
	}
	p.deps.Slot.Clear()
	p.deps.Publisher.Stop()

	logger.WithComponent("pipeline").Info().Msg("Stream stopped")
}

// AttachBus binds the external control signals and the outbound lifecycle
// notifications to b.
func (p *Pipeline) AttachBus(b bus.Bus) error {
	p.deps.Publisher.OnFrameAvailable = func() {
		if err := b.Publish(bus.TopicFrameAvailable, nil); err != nil {
			logger.WithComponent("pipeline").Warn().Err(err).Msg("Failed to publish frame-available")
		}
	}
	p.deps.Publisher.OnStreamStopped = func() {
		if err := b.Publish(bus.TopicStreamStopped, nil); err != nil {
			logger.WithComponent("pipeline").Warn().Err(err).Msg("Failed to publish stream-stopped")
		}
	}

	bindings := []struct {
		topic   string
		handler bus.Handler
	}{
		{bus.TopicStartStream, func(string, []byte) {
			if err := p.Acquire(); err != nil {
				logger.WithComponent("pipeline").Error().Err(err).Msg("Start-stream signal failed")
			}
		}},
		{bus.TopicStopStream, func(string, []byte) {
			p.Release()
		}},
		{bus.TopicSetDevice, func(_ string, data []byte) {
			device := strings.TrimSpace(string(data))
			if device == "" {
				logger.WithComponent("pipeline").Warn().Msg("Set-camera-device signal without a device id")
				return
			}
			if err := p.deps.Adapter.SetDevice(device); err != nil {
				p.deps.Errors.HandleFault(err)
			}
		}},
		{bus.TopicSettingsChanged, func(string, []byte) {
			if err := p.deps.Config.Reload(); err != nil {
				logger.WithComponent("pipeline").Warn().Err(err).Msg("Settings reload failed, keeping previous settings")
			}
		}},
	}

	for _, binding := range bindings {
		sub, err := b.Subscribe(binding.topic, binding.handler)
		if err != nil {
			p.DetachBus()
			return fmt.Errorf("failed to subscribe %s: %w", binding.topic, err)
		}
		p.subs = append(p.subs, sub)
	}
	return nil
}

// DetachBus unsubscribes the control signal handlers.
func (p *Pipeline) DetachBus() {
	for _, sub := range p.subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.WithComponent("pipeline").Debug().Err(err).Msg("Unsubscribe failed")
		}
	}
	p.subs = nil
	p.deps.Publisher.OnFrameAvailable = nil
	p.deps.Publisher.OnStreamStopped = nil
}

func (p *Pipeline) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := time.Second / time.Duration(p.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithComponent("pipeline").Info().
		Int("fps", p.fps).
		Int("width", p.width).
		Int("height", p.height).
		Msg("Frame scheduler started")

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			p.tick(now)
		}
	}
}

// tick produces and publishes exactly one output frame. Faults are absorbed
// through the error manager; the loop never stops on a bad tick.
func (p *Pipeline) tick(now time.Time) {
	started := time.Now()

	settings := p.deps.Config.GetSettings()
	if settings.Aspect != p.lastAspect {
		if p.lastAspect != "" {
			p.deps.Compositor.SignalAspectChange()
		}
		p.lastAspect = settings.Aspect
	}

	// Take, not peek: a raw frame is consumed by the tick it feeds, so a
	// camera gap surfaces as a placeholder immediately instead of freezing
	// on the last frame.
	raw := p.deps.Slot.Take()
	pts := now
	var base *image.RGBA
	if raw != nil {
		base = p.fit(raw.Img)
		pts = raw.PTS
		p.rawInWindow++
	} else {
		base = p.placeholderFrame()
	}

	tokens := settings.Tokens
	if p.deps.Enricher != nil {
		tokens = p.deps.Enricher.Enrich(tokens)
	}

	out := base
	if settings.OverlayEnabled {
		in := render.Input{PresetID: settings.PresetID, Aspect: settings.Aspect, Tokens: tokens}
		composed, err := p.deps.Compositor.Compose(base, in, now)
		if err != nil {
			p.deps.Errors.HandleFault(err)
			p.observeTick(started)
			return
		}
		out = composed
	}

	if _, err := p.deps.Publisher.Publish(out, pts); err != nil {
		p.deps.Errors.HandleFault(err)
		p.observeTick(started)
		return
	}

	p.deps.Errors.NoteSuccess()
	if p.deps.Metrics != nil {
		p.deps.Metrics.FramesGenerated.Inc()
	}
	p.observeTick(started)
}

// observeTick records per-tick timing and, on the snapshot cadence, the
// derived health score and counter deltas.
func (p *Pipeline) observeTick(started time.Time) {
	mets := p.deps.Metrics
	if mets == nil {
		return
	}
	mets.TickSeconds.Observe(time.Since(started).Seconds())

	p.ticksInWindow++
	if p.ticksInWindow < snapshotEveryTicks {
		return
	}

	renders := p.deps.Renderer.RenderCount()
	mets.OverlayRenders.Add(float64(renders - p.rendersBase))
	p.rendersBase = renders

	drops := p.deps.Slot.Drops()
	mets.FramesDropped.Add(float64(drops - p.dropsBase))
	p.dropsBase = drops

	successes, failures, streak := mets.Counts()
	windowFailures := failures - p.failuresBase
	p.failuresBase = failures

	var memScore float64
	if p.deps.Pressure != nil {
		memScore = governor.PressureToMemoryScore(p.deps.Pressure.Level())
	}
	score := governor.HealthScore(governor.HealthInput{
		AchievedFrameRatio: float64(p.rawInWindow) / float64(p.ticksInWindow),
		ErrorRate:          float64(windowFailures) / float64(p.ticksInWindow),
		MemoryPressure:     memScore,
		SuccessStreak:      streak,
	})
	mets.HealthScore.Set(score)
	mets.Observe(metrics.Snapshot{
		At:              time.Now(),
		FramesGenerated: successes,
		FramesDropped:   drops,
		ErrorCount:      failures,
		SuccessStreak:   streak,
		HealthScore:     score,
	})

	p.ticksInWindow = 0
	p.rawInWindow = 0
}

// fit adapts a raw frame to the output geometry. Matching frames pass
// through; everything else is scaled.
func (p *Pipeline) fit(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	if bounds.Dx() == p.width && bounds.Dy() == p.height {
		return img
	}
	scaled := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	render.ScaleNearest(scaled, scaled.Bounds(), img)
	return scaled
}

// placeholderFrame returns the cached gap frame, building it on first use.
// Only the tick goroutine touches it.
func (p *Pipeline) placeholderFrame() *image.RGBA {
	if p.placeholder == nil {
		p.placeholder = newPlaceholder(p.width, p.height, placeholderLabel)
	}
	return p.placeholder
}
