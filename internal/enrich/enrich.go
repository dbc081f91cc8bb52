// Package enrich merges ambient data (local time, location, weather) into
// render tokens. Sources are sampled by a background refresher into an
// in-memory cache; the per-frame path only ever reads the cache.
package enrich

import (
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/render"
)

// DefaultRefreshInterval is how often ambient sources are re-sampled.
const DefaultRefreshInterval = 5 * time.Second

// Ambient is the data an ambient source can contribute. Empty fields
// contribute nothing.
type Ambient struct {
	City         string
	LocalTime    string
	WeatherEmoji string
	WeatherText  string
}

// Source produces ambient data. Sample is called off the frame path and may
// be slow (network weather lookups); results are cached.
type Source interface {
	Sample() (Ambient, error)
}

// ClockSource contributes the wall-clock local time.
type ClockSource struct {
	// Format defaults to kitchen time ("3:04 PM").
	Format string
}

// Sample formats the current local time.
func (c ClockSource) Sample() (Ambient, error) {
	format := c.Format
	if format == "" {
		format = time.Kitchen
	}
	return Ambient{LocalTime: time.Now().Format(format)}, nil
}

// StaticSource contributes fixed values (e.g. configured city and a weather
// string pushed by the settings collaborator).
type StaticSource struct {
	Data Ambient
}

// Sample returns the fixed data.
func (s StaticSource) Sample() (Ambient, error) {
	return s.Data, nil
}

// Enricher caches merged ambient data and applies it to tokens. Caller
// values always win: a token the caller supplied is never overwritten.
type Enricher struct {
	sources  []Source
	interval time.Duration

	mu     sync.RWMutex
	cached Ambient

	stopMu   sync.Mutex
	stopChan chan struct{}
}

// NewEnricher builds an enricher over the given sources.
func NewEnricher(interval time.Duration, sources ...Source) *Enricher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Enricher{sources: sources, interval: interval}
}

// Start samples once immediately, then refreshes on the configured interval.
func (e *Enricher) Start() {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stopChan != nil {
		return
	}
	e.stopChan = make(chan struct{})
	e.refresh()
	go e.loop(e.stopChan)
}

// Stop halts the refresher. Idempotent.
func (e *Enricher) Stop() {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stopChan == nil {
		return
	}
	close(e.stopChan)
	e.stopChan = nil
}

func (e *Enricher) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.refresh()
		}
	}
}

func (e *Enricher) refresh() {
	var merged Ambient
	for _, src := range e.sources {
		data, err := src.Sample()
		if err != nil {
			logger.WithComponent("enrich").Warn().Err(err).Msg("Ambient source sample failed")
			continue
		}
		if merged.City == "" {
			merged.City = data.City
		}
		if merged.LocalTime == "" {
			merged.LocalTime = data.LocalTime
		}
		if merged.WeatherEmoji == "" {
			merged.WeatherEmoji = data.WeatherEmoji
		}
		if merged.WeatherText == "" {
			merged.WeatherText = data.WeatherText
		}
	}

	e.mu.Lock()
	e.cached = merged
	e.mu.Unlock()
}

// Enrich fills only the token fields the caller left empty from the cached
// ambient data. Read-only on the cache; safe on the tick path.
func (e *Enricher) Enrich(t render.Tokens) render.Tokens {
	e.mu.RLock()
	cached := e.cached
	e.mu.RUnlock()

	if t.City == "" {
		t.City = cached.City
	}
	if t.LocalTime == "" {
		t.LocalTime = cached.LocalTime
	}
	if t.WeatherEmoji == "" {
		t.WeatherEmoji = cached.WeatherEmoji
	}
	if t.WeatherText == "" {
		t.WeatherText = cached.WeatherText
	}
	return t
}
