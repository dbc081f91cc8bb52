// Package metrics collects the pipeline's diagnostic counters and timings:
// Prometheus instruments for scraping plus a bounded in-memory snapshot
// history for the status API.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline holds the frame pipeline's instruments.
type Pipeline struct {
	FramesGenerated prometheus.Counter
	FramesDropped   prometheus.Counter
	OverlayRenders  prometheus.Counter
	TickSeconds     prometheus.Histogram
	Errors          *prometheus.CounterVec
	Mode            prometheus.Gauge
	HealthScore     prometheus.Gauge

	mu        sync.Mutex
	successes uint64
	failures  uint64
	streak    uint64
	history   []Snapshot
	histCap   int
}

// Snapshot is one periodic sample of the diagnostic state.
type Snapshot struct {
	At              time.Time `json:"at"`
	FramesGenerated uint64    `json:"frames_generated"`
	FramesDropped   uint64    `json:"frames_dropped"`
	ErrorCount      uint64    `json:"error_count"`
	SuccessStreak   uint64    `json:"success_streak"`
	HealthScore     float64   `json:"health_score"`
}

// historyCapacity bounds the snapshot ring.
const historyCapacity = 120

// New registers the pipeline instruments with reg.
func New(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		FramesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stagecam", Subsystem: "pipeline",
			Name: "frames_generated_total", Help: "Frames composited and published.",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stagecam", Subsystem: "pipeline",
			Name: "frames_dropped_total", Help: "Raw frames dropped or superseded before publish.",
		}),
		OverlayRenders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stagecam", Subsystem: "overlay",
			Name: "renders_total", Help: "Full overlay rasterizations (cache misses).",
		}),
		TickSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stagecam", Subsystem: "pipeline",
			Name: "tick_seconds", Help: "Per-tick processing time.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stagecam", Subsystem: "pipeline",
			Name: "errors_total", Help: "Pipeline errors by classification.",
		}, []string{"kind"}),
		Mode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stagecam", Subsystem: "governor",
			Name: "mode", Help: "Performance mode (0=optimal, 1=balanced, 2=powerSaver).",
		}),
		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stagecam", Subsystem: "governor",
			Name: "health_score", Help: "Derived pipeline health score in [0,1].",
		}),
		histCap: historyCapacity,
	}
}

// RecordSuccess counts a successfully published tick.
func (p *Pipeline) RecordSuccess() {
	p.mu.Lock()
	p.successes++
	p.streak++
	p.mu.Unlock()
}

// RecordFailure counts a failed tick and resets the success streak.
func (p *Pipeline) RecordFailure(kind string) {
	p.Errors.WithLabelValues(kind).Inc()
	p.mu.Lock()
	p.failures++
	p.streak = 0
	p.mu.Unlock()
}

// Counts reports the raw success/failure totals and the current streak.
func (p *Pipeline) Counts() (successes, failures, streak uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.successes, p.failures, p.streak
}

// Observe appends a snapshot to the bounded history ring.
func (p *Pipeline) Observe(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, s)
	if len(p.history) > p.histCap {
		p.history = p.history[len(p.history)-p.histCap:]
	}
}

// History returns a copy of the snapshot ring, oldest first.
func (p *Pipeline) History() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.history))
	copy(out, p.history)
	return out
}
