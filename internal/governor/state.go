package governor

import "sync/atomic"

// Mode is the pipeline's performance mode, escalated by the governor under
// resource pressure.
type Mode int32

const (
	ModeOptimal Mode = iota
	ModeBalanced
	ModePowerSaver
)

// String returns the mode's wire/log name.
func (m Mode) String() string {
	switch m {
	case ModeOptimal:
		return "optimal"
	case ModeBalanced:
		return "balanced"
	case ModePowerSaver:
		return "powerSaver"
	default:
		return "unknown"
	}
}

// RetentionPolicy controls whether the capture adapter keeps a delivered
// frame when the raw-frame slot is already occupied.
type RetentionPolicy int32

const (
	// RetainAlways keeps every delivered frame (overwrite the slot).
	RetainAlways RetentionPolicy = iota
	// RetainAdaptive keeps every Nth frame when the slot is occupied.
	RetainAdaptive
	// RetainMinimal keeps a frame only when the slot is empty.
	RetainMinimal
)

// String returns the policy's wire/log name.
func (p RetentionPolicy) String() string {
	switch p {
	case RetainAlways:
		return "always"
	case RetainAdaptive:
		return "adaptive"
	case RetainMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// State is the shared performance state: written only by the governor, read
// by the capture adapter and compositor. The fields are independent scalars,
// so atomic loads are sufficient on the read side.
type State struct {
	mode      atomic.Int32
	retention atomic.Int32
}

// NewState returns a State in optimal mode with the always-retain policy.
func NewState() *State {
	return &State{}
}

// Mode returns the current performance mode.
func (s *State) Mode() Mode {
	return Mode(s.mode.Load())
}

// SetMode updates the performance mode.
func (s *State) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// Retention returns the current frame-retention policy.
func (s *State) Retention() RetentionPolicy {
	return RetentionPolicy(s.retention.Load())
}

// SetRetention updates the frame-retention policy.
func (s *State) SetRetention(p RetentionPolicy) {
	s.retention.Store(int32(p))
}
