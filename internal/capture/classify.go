package capture

import (
	"errors"

	"github.com/stagecam/stagecam/internal/governor"
)

// Classify maps a capture error onto the governor's fault taxonomy.
func Classify(err error) governor.FaultKind {
	switch {
	case errors.Is(err, ErrInterrupted):
		return governor.FaultTransient
	case errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrAttachFailed),
		errors.Is(err, ErrNotRunning):
		return governor.FaultConfiguration
	default:
		return governor.FaultFrame
	}
}
