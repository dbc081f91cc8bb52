// Package bus abstracts the cross-process control plane as named topics
// with publish/subscribe and request/reply semantics. The NATS
// implementation carries production traffic; the in-process implementation
// backs tests.
package bus

import (
	"errors"
	"time"
)

// Lifecycle and data-plane subjects.
const (
	TopicStartStream     = "stagecam.signal.start-stream"
	TopicStopStream      = "stagecam.signal.stop-stream"
	TopicSetDevice       = "stagecam.signal.set-camera-device"
	TopicSettingsChanged = "stagecam.signal.update-overlay-settings"
	TopicFrameAvailable  = "stagecam.signal.frame-available"
	TopicStreamStopped   = "stagecam.signal.stream-stopped"

	// SubjectFrameFetch is the request/reply subject the companion process
	// uses to fetch the current published frame.
	SubjectFrameFetch = "stagecam.frame.fetch"
)

// ErrNoResponder means a request found no handler bound to the subject.
var ErrNoResponder = errors.New("bus: no responder for subject")

// Handler receives fire-and-forget messages on a subscribed subject.
type Handler func(subject string, data []byte)

// Responder answers a request with a reply payload.
type Responder func(data []byte) ([]byte, error)

// Subscription is a handle to an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the message-passing contract between the pipeline daemon and its
// external collaborators.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, h Handler) (Subscription, error)
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
	Respond(subject string, r Responder) (Subscription, error)
	Close() error
}
