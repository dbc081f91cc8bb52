package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/logger"
)

// resumeConfig bounds the auto-resume retry loop after a transient
// interruption (exponential backoff, capped).
const (
	resumeMaxRetries = 5
	resumeBaseDelay  = 250 * time.Millisecond
	resumeMaxDelay   = 5 * time.Second
)

// Adapter owns the camera session. It forwards backend frames into the
// single-slot mailbox under the governor's retention policy, performs live
// device swaps with rollback, and auto-resumes after transient
// interruptions while streaming is still expected.
type Adapter struct {
	backend Backend
	slot    *Slot
	perf    *governor.State

	// OnFault, when set, receives capture faults for classification by the
	// governor's error manager. Called off the frame path.
	OnFault func(err error)

	mu        sync.Mutex
	running   bool
	expected  bool
	deviceID  string
	sessionID string

	// attached gates frame delivery into the slot; lightweight recovery
	// flips it off and on again around a slot clear.
	attached atomic.Bool
}

// NewAdapter wires a backend, slot, and shared performance state.
func NewAdapter(backend Backend, slot *Slot, perf *governor.State) *Adapter {
	return &Adapter{backend: backend, slot: slot, perf: perf}
}

// Start begins asynchronous frame delivery from deviceID.
func (a *Adapter) Start(deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("capture adapter already running")
	}

	// Record the requested device before the backend attempt: a failed start
	// raises a configuration fault, and its recovery must rebuild on this
	// device, not whatever was selected before.
	a.deviceID = deviceID
	a.expected = true

	if err := a.backend.Start(deviceID, a.deliver); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	a.running = true
	a.sessionID = uuid.NewString()
	a.attached.Store(true)

	logger.WithComponent("capture").Info().
		Str("device", deviceID).
		Str("session", a.sessionID).
		Msg("Capture session started")
	return nil
}

// Stop halts capture and clears the slot. Idempotent.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.expected = false
	if !a.running {
		return nil
	}

	a.attached.Store(false)
	if err := a.backend.Stop(); err != nil {
		logger.WithComponent("capture").Warn().Err(err).Msg("Backend stop reported an error")
	}
	a.running = false
	a.slot.Clear()

	logger.WithComponent("capture").Info().
		Str("session", a.sessionID).
		Msg("Capture session stopped")
	return nil
}

// SetDevice selects a camera. With an active session this is a live input
// swap: on attach failure the previous device stays attached, capture
// continues, and the error is reported to the caller.
func (a *Adapter) SetDevice(deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		a.deviceID = deviceID
		return nil
	}

	if err := a.backend.SwapDevice(deviceID); err != nil {
		logger.WithComponent("capture").Error().
			Err(err).
			Str("device", deviceID).
			Str("kept", a.deviceID).
			Msg("Device swap failed, previous input preserved")
		return fmt.Errorf("%w: %v", ErrAttachFailed, err)
	}

	a.deviceID = deviceID
	return nil
}

// Devices lists the backend's discoverable cameras.
func (a *Adapter) Devices() ([]Device, error) {
	return a.backend.Devices()
}

// DeviceID returns the currently selected device.
func (a *Adapter) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceID
}

// Running reports whether a capture session is active.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// SessionID returns the active session's identifier.
func (a *Adapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// deliver is the backend's frame sink. It runs on the backend goroutine and
// does nothing beyond a gated, policy-driven slot swap.
func (a *Adapter) deliver(f *Frame) {
	if !a.attached.Load() {
		return
	}
	a.slot.Put(f, a.perf.Retention())
}

// HandleInterruption reacts to a transient session interruption: if the
// stream is still expected to run, the session is rebuilt with exponential
// backoff. A session that is no longer expected is left stopped.
func (a *Adapter) HandleInterruption(cause error) {
	a.mu.Lock()
	expected := a.expected
	device := a.deviceID
	a.mu.Unlock()

	if !expected {
		logger.WithComponent("capture").Debug().
			Err(cause).
			Msg("Interruption after stop, not resuming")
		return
	}

	logger.WithComponent("capture").Warn().
		Err(cause).
		Msg("Capture interrupted, attempting auto-resume")

	go a.resume(device)
}

func (a *Adapter) resume(device string) {
	delay := resumeBaseDelay
	for attempt := 1; attempt <= resumeMaxRetries; attempt++ {
		time.Sleep(delay)

		a.mu.Lock()
		if !a.expected {
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		if err := a.RecoverFull(); err == nil {
			logger.WithComponent("capture").Info().
				Int("attempt", attempt).
				Msg("Capture auto-resumed")
			return
		} else if a.OnFault != nil {
			a.OnFault(err)
		}

		delay *= 2
		if delay > resumeMaxDelay {
			delay = resumeMaxDelay
		}
		logger.WithComponent("capture").Warn().
			Int("attempt", attempt).
			Dur("next_delay", delay).
			Str("device", device).
			Msg("Auto-resume attempt failed")
	}

	logger.WithComponent("capture").Error().
		Str("device", device).
		Msg("Auto-resume gave up")
	if a.OnFault != nil {
		a.OnFault(fmt.Errorf("%w: auto-resume exhausted after %d attempts", ErrInterrupted, resumeMaxRetries))
	}
}

// RecoverLightweight reattaches the delivery gate and clears the raw-frame
// slot without touching the backend session.
func (a *Adapter) RecoverLightweight() {
	a.attached.Store(false)
	a.slot.Clear()
	a.attached.Store(true)
	logger.WithComponent("capture").Info().Msg("Lightweight recovery: delegate reattached, slot cleared")
}

// RecoverFull tears down and rebuilds the entire capture session on the
// current device.
func (a *Adapter) RecoverFull() error {
	a.mu.Lock()
	device := a.deviceID
	if a.running {
		a.attached.Store(false)
		if err := a.backend.Stop(); err != nil {
			logger.WithComponent("capture").Warn().Err(err).Msg("Backend stop during full recovery")
		}
		a.running = false
	}
	a.slot.Clear()
	a.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.backend.Start(device, a.deliver); err != nil {
		return fmt.Errorf("full recovery failed: %w", err)
	}
	a.running = true
	a.sessionID = uuid.NewString()
	a.attached.Store(true)

	logger.WithComponent("capture").Info().
		Str("session", a.sessionID).
		Msg("Full recovery: capture session rebuilt")
	return nil
}
