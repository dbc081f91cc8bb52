package governor

import (
	"runtime"
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/metrics"
)

// PressureLevel is the coarse resource-pressure signal the governor reacts
// to.
type PressureLevel int

const (
	PressureNominal PressureLevel = iota
	PressureModerate
	PressureSevere
)

// PressureSource samples current resource pressure. Implementations must be
// cheap; the governor polls off the frame path.
type PressureSource interface {
	Level() PressureLevel
}

// HeapPressureSource derives pressure from the process heap size. Thresholds
// are bytes of live heap.
type HeapPressureSource struct {
	ModerateBytes uint64
	SevereBytes   uint64
}

// Level samples the heap and maps it onto the pressure ladder.
func (s HeapPressureSource) Level() PressureLevel {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	switch {
	case s.SevereBytes > 0 && ms.HeapAlloc >= s.SevereBytes:
		return PressureSevere
	case s.ModerateBytes > 0 && ms.HeapAlloc >= s.ModerateBytes:
		return PressureModerate
	default:
		return PressureNominal
	}
}

// DefaultMonitorInterval is how often the governor samples pressure.
const DefaultMonitorInterval = 2 * time.Second

// Governor escalates and relaxes the pipeline's performance mode in response
// to resource pressure. It observes every stage but never sits on the
// per-frame critical path.
type Governor struct {
	state    *State
	source   PressureSource
	interval time.Duration
	mets     *metrics.Pipeline

	// ClearOverlayCache and DropRawFrame are the degradation side effects,
	// wired by the pipeline at construction.
	ClearOverlayCache func()
	DropRawFrame      func()

	mu       sync.Mutex
	stopChan chan struct{}
}

// New builds a governor over the shared state and a pressure source.
func New(state *State, source PressureSource, interval time.Duration, mets *metrics.Pipeline) *Governor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Governor{state: state, source: source, interval: interval, mets: mets}
}

// Start launches the background pressure monitor.
func (g *Governor) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopChan != nil {
		return
	}
	g.stopChan = make(chan struct{})
	go g.monitor(g.stopChan)
	logger.WithComponent("governor").Info().
		Dur("interval", g.interval).
		Msg("Pressure monitor started")
}

// Stop halts the monitor. Idempotent.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopChan == nil {
		return
	}
	close(g.stopChan)
	g.stopChan = nil
}

func (g *Governor) monitor(stop <-chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.Cycle()
		}
	}
}

// Cycle samples pressure once and applies any mode transition. Exposed so
// tests can drive the ladder without waiting on the ticker.
func (g *Governor) Cycle() {
	switch g.source.Level() {
	case PressureSevere:
		g.Transition(ModePowerSaver)
	case PressureModerate:
		g.Transition(ModeBalanced)
	default:
		g.Transition(ModeOptimal)
	}
}

// Transition moves the pipeline to the target mode, applying the mandated
// side effects: degrading clears the overlay cache (stale entries waste
// memory), and power-saver additionally drops the held raw frame. Retention
// policy follows the mode.
func (g *Governor) Transition(target Mode) {
	current := g.state.Mode()
	if current == target {
		return
	}

	g.state.SetMode(target)
	switch target {
	case ModeOptimal:
		g.state.SetRetention(RetainAlways)
	case ModeBalanced:
		g.state.SetRetention(RetainAdaptive)
	case ModePowerSaver:
		g.state.SetRetention(RetainMinimal)
	}

	degrading := target > current
	if degrading && g.ClearOverlayCache != nil {
		g.ClearOverlayCache()
	}
	if target == ModePowerSaver && g.DropRawFrame != nil {
		g.DropRawFrame()
	}

	if g.mets != nil {
		g.mets.Mode.Set(float64(target))
	}

	logger.WithComponent("governor").Info().
		Str("from", current.String()).
		Str("to", target.String()).
		Msg("Performance mode transition")
}

// Reset explicitly returns the pipeline to optimal mode.
func (g *Governor) Reset() {
	g.Transition(ModeOptimal)
}
