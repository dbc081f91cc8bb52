package capture

import (
	"sync"
	"sync/atomic"

	"github.com/stagecam/stagecam/internal/governor"
)

// adaptiveKeepInterval keeps every Nth delivered frame when the slot is
// occupied under the adaptive retention policy.
const adaptiveKeepInterval = 2

// Slot is a single-slot, mutex-guarded latest-frame mailbox. The capture
// backend overwrites it at the camera's cadence; the scheduler drains it at
// the output cadence. The lock is held only for pointer swaps.
type Slot struct {
	mu         sync.Mutex
	frame      *Frame
	deliveries uint64
	drops      atomic.Uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Put offers a frame to the slot under the given retention policy. It
// reports whether the frame was kept. Dropped frames increment the drop
// counter.
func (s *Slot) Put(f *Frame, policy governor.RetentionPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries++
	occupied := s.frame != nil

	switch policy {
	case governor.RetainMinimal:
		if occupied {
			s.drops.Add(1)
			return false
		}
	case governor.RetainAdaptive:
		if occupied && s.deliveries%adaptiveKeepInterval != 0 {
			s.drops.Add(1)
			return false
		}
	}

	if occupied {
		// Superseded frame is released by overwrite.
		s.drops.Add(1)
	}
	s.frame = f
	return true
}

// Take removes and returns the held frame, or nil when empty.
func (s *Slot) Take() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame
	s.frame = nil
	return f
}

// Peek returns the held frame without clearing it.
func (s *Slot) Peek() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Clear drops any held frame.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
}

// Drops reports how many frames were superseded or rejected.
func (s *Slot) Drops() uint64 {
	return s.drops.Load()
}
