// Package capture owns the upstream camera session: backends deliver raw
// frames asynchronously into a single-slot mailbox that the frame scheduler
// drains at its own cadence.
package capture

import (
	"errors"
	"image"
	"time"
)

// PixelFormat names the pixel layout of a raw frame.
type PixelFormat string

// PixelFormatRGBA is the single pixel format the pipeline operates in.
const PixelFormatRGBA PixelFormat = "RGBA"

var (
	// ErrDeviceNotFound means the requested camera device does not exist.
	ErrDeviceNotFound = errors.New("capture: device not found")
	// ErrPermissionDenied means the camera exists but cannot be opened.
	ErrPermissionDenied = errors.New("capture: permission denied")
	// ErrAttachFailed means a live input swap could not attach the new
	// device; the previous input is preserved.
	ErrAttachFailed = errors.New("capture: failed to attach input")
	// ErrInterrupted means the session was interrupted by the system and
	// may auto-resume.
	ErrInterrupted = errors.New("capture: session interrupted")
	// ErrNotRunning means an operation requires an active session.
	ErrNotRunning = errors.New("capture: not running")
)

// Frame is a raw camera frame. Ownership transfers to the slot on Put; the
// producer must not modify Img afterwards.
type Frame struct {
	Img    *image.RGBA
	Width  int
	Height int
	Format PixelFormat
	PTS    time.Time
}

// Device describes a discoverable camera.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FrameSink receives frames from a backend on the backend's own goroutine.
type FrameSink func(*Frame)

// Backend is a concrete camera source. Implementations deliver frames to the
// sink until Stop. SwapDevice must either attach the new device or leave the
// old one intact and return an error.
type Backend interface {
	Name() string
	Start(deviceID string, sink FrameSink) error
	SwapDevice(deviceID string) error
	Stop() error
	Devices() ([]Device, error)
}
