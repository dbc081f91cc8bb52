package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stagecam/stagecam/internal/logger"
)

// NATSBus is the production Bus backed by a NATS connection.
type NATSBus struct {
	nc *nats.Conn
}

// ConnectNATS dials a NATS server and returns a Bus over it.
func ConnectNATS(url string) (*NATSBus, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name("stagecam"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithComponent("bus").Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithComponent("bus").Info().
				Str("url", nc.ConnectedUrl()).
				Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %q: %w", url, err)
	}

	logger.WithComponent("bus").Info().
		Str("url", nc.ConnectedUrl()).
		Msg("Connected to NATS")
	return &NATSBus{nc: nc}, nil
}

// Publish sends a fire-and-forget message.
func (b *NATSBus) Publish(subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

// Subscribe binds a handler to a subject.
func (b *NATSBus) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}
	return sub, nil
}

// Request performs a request/reply round trip.
func (b *NATSBus) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := b.nc.Request(subject, data, timeout)
	if err != nil {
		if err == nats.ErrNoResponders {
			return nil, ErrNoResponder
		}
		return nil, fmt.Errorf("request to %q failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Respond binds a request handler to a subject.
func (b *NATSBus) Respond(subject string, r Responder) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		reply, err := r(msg.Data)
		if err != nil {
			logger.WithComponent("bus").Error().
				Err(err).
				Str("subject", subject).
				Msg("Responder failed")
			return
		}
		if err := msg.Respond(reply); err != nil {
			logger.WithComponent("bus").Warn().Err(err).Msg("Failed to send reply")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind responder on %q: %w", subject, err)
	}
	return sub, nil
}

// Close drains and closes the connection.
func (b *NATSBus) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}
