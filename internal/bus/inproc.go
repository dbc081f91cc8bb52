package bus

import (
	"sync"
	"time"
)

// InprocBus is an in-process Bus used by tests and single-process setups.
// Publishes are delivered synchronously to all subscribers.
type InprocBus struct {
	mu         sync.RWMutex
	closed     bool
	handlers   map[string][]*inprocSub
	responders map[string]Responder
}

// NewInprocBus returns an empty in-process bus.
func NewInprocBus() *InprocBus {
	return &InprocBus{
		handlers:   make(map[string][]*inprocSub),
		responders: make(map[string]Responder),
	}
}

type inprocSub struct {
	bus     *InprocBus
	subject string
	h       Handler
	r       bool // responder subscription
}

func (s *inprocSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.r {
		delete(s.bus.responders, s.subject)
		return nil
	}

	subs := s.bus.handlers[s.subject]
	for i, sub := range subs {
		if sub == s {
			s.bus.handlers[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

// Publish delivers data to every subscriber of subject.
func (b *InprocBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	subs := make([]*inprocSub, len(b.handlers[subject]))
	copy(subs, b.handlers[subject])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.h(subject, data)
	}
	return nil
}

// Subscribe binds a handler to subject.
func (b *InprocBus) Subscribe(subject string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &inprocSub{bus: b, subject: subject, h: h}
	b.handlers[subject] = append(b.handlers[subject], sub)
	return sub, nil
}

// Request invokes the bound responder synchronously.
func (b *InprocBus) Request(subject string, data []byte, _ time.Duration) ([]byte, error) {
	b.mu.RLock()
	r, ok := b.responders[subject]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrNoResponder
	}
	return r(data)
}

// Respond binds a request handler to subject, replacing any previous one.
func (b *InprocBus) Respond(subject string, r Responder) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.responders[subject] = r
	return &inprocSub{bus: b, subject: subject, r: true}, nil
}

// Close drops all subscriptions.
func (b *InprocBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.handlers = make(map[string][]*inprocSub)
	b.responders = make(map[string]Responder)
	return nil
}
