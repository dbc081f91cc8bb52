package governor

import (
	"sync"

	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/metrics"
)

// FaultKind classifies a pipeline fault.
type FaultKind int

const (
	// FaultFrame is a per-frame construction failure: logged, counted, the
	// tick skipped, the pipeline continues.
	FaultFrame FaultKind = iota
	// FaultTransient is a temporary interruption that auto-recovers while
	// the stream is still expected to run.
	FaultTransient
	// FaultConfiguration is a session-level failure (device missing,
	// permission denied, session build failure); one lazy re-setup is
	// attempted before it is surfaced as fatal for this session.
	FaultConfiguration
)

// String returns the fault kind's metric label.
func (k FaultKind) String() string {
	switch k {
	case FaultTransient:
		return "transient"
	case FaultConfiguration:
		return "configuration"
	default:
		return "frame"
	}
}

// StreamStatus is the externally visible pipeline status.
type StreamStatus string

const (
	StatusOK       StreamStatus = "ok"
	StatusDegraded StreamStatus = "degraded"
	StatusError    StreamStatus = "error"
)

// Recoverer is the capability the error manager needs from the capture
// adapter.
type Recoverer interface {
	RecoverLightweight()
	RecoverFull() error
}

// ErrorManager absorbs pipeline faults per the propagation policy: per-tick
// failures are reflected only in diagnostics and a status signal; only
// repeated configuration failure after the retry is surfaced as a persistent
// error.
type ErrorManager struct {
	classify func(error) FaultKind
	recover  Recoverer
	mets     *metrics.Pipeline

	// OnStatus, when set, receives status transitions.
	OnStatus func(StreamStatus, error)

	mu           sync.Mutex
	status       StreamStatus
	configRetry  bool
	failures     int
	successStats uint64
}

// NewErrorManager builds an error manager with the given fault classifier.
func NewErrorManager(classify func(error) FaultKind, recover Recoverer, mets *metrics.Pipeline) *ErrorManager {
	return &ErrorManager{
		classify: classify,
		recover:  recover,
		mets:     mets,
		status:   StatusOK,
	}
}

// Status returns the current externally visible status.
func (m *ErrorManager) Status() StreamStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// HandleFault routes a fault through classification and the matching
// recovery path. Never panics and never propagates: the scheduler's tick
// loop calls this and carries on.
func (m *ErrorManager) HandleFault(err error) {
	if err == nil {
		return
	}

	kind := m.classify(err)
	if m.mets != nil {
		m.mets.RecordFailure(kind.String())
	}

	m.mu.Lock()
	m.failures++
	m.successStats = 0
	m.mu.Unlock()

	log := logger.WithComponent("governor")
	switch kind {
	case FaultFrame:
		log.Debug().Err(err).Msg("Frame construction failed, tick skipped")

	case FaultTransient:
		log.Warn().Err(err).Msg("Transient fault, lightweight recovery")
		if m.recover != nil {
			m.recover.RecoverLightweight()
		}
		m.setStatus(StatusDegraded, err)

	case FaultConfiguration:
		m.mu.Lock()
		retried := m.configRetry
		m.configRetry = true
		m.mu.Unlock()

		if !retried && m.recover != nil {
			log.Warn().Err(err).Msg("Configuration fault, attempting one re-setup")
			if rerr := m.recover.RecoverFull(); rerr == nil {
				m.setStatus(StatusDegraded, err)
				return
			}
		}
		log.Error().Err(err).Msg("Configuration fault persists, session marked failed")
		m.setStatus(StatusError, err)
	}
}

// NoteSuccess records a successful tick; a healthy streak clears degraded
// status and re-arms the one-shot configuration retry.
func (m *ErrorManager) NoteSuccess() {
	if m.mets != nil {
		m.mets.RecordSuccess()
	}

	m.mu.Lock()
	m.failures = 0
	m.successStats++
	streak := m.successStats
	status := m.status
	m.mu.Unlock()

	if status == StatusDegraded && streak >= 60 {
		m.mu.Lock()
		m.configRetry = false
		m.mu.Unlock()
		m.setStatus(StatusOK, nil)
	}
}

func (m *ErrorManager) setStatus(s StreamStatus, err error) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	m.mu.Unlock()

	if m.OnStatus != nil {
		m.OnStatus(s, err)
	}
}
