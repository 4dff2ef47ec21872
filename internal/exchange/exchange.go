package exchange

import (
	"context"
	"log/slog"
	"time"

	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// Exchange hands accepted messages to the fan-out path.
type Exchange interface {
	// Publish submits msg for delivery to every subscriber of its room,
	// on this instance and any peer instance.
	Publish(ctx context.Context, msg router.Message) error

	// Close stops pumps and releases broker connections.
	Close() error
}

// envelope is the form a message takes between instances. Unlike the
// client wire shape it carries the message ID, so every instance archives
// the same identity and the history table deduplicates across them.
type envelope struct {
	ID     string    `json:"id"`
	Sender string    `json:"user_id"`
	Body   string    `json:"message"`
	Room   string    `json:"room"`
	At     time.Time `json:"timestamp"`
	Type   string    `json:"type,omitempty"`
}

func toEnvelope(msg router.Message) envelope {
	return envelope{
		ID:     msg.ID,
		Sender: msg.Sender,
		Body:   msg.Body,
		Room:   msg.Room,
		At:     msg.At,
		Type:   msg.Type,
	}
}

func (e envelope) message() router.Message {
	return router.Message{
		ID:     e.ID,
		Sender: e.Sender,
		Body:   e.Body,
		Room:   e.Room,
		At:     e.At,
		Type:   e.Type,
	}
}

// Memory is the single-instance exchange: publishes route synchronously
// into the local message router.
type Memory struct {
	rtr    router.Router
	logger *slog.Logger
}

// NewMemory creates a memory exchange bound to rtr.
func NewMemory(rtr router.Router, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{rtr: rtr, logger: logger}
}

// Publish routes msg into the local router.
func (m *Memory) Publish(ctx context.Context, msg router.Message) error {
	m.rtr.Publish(msg)
	metrics.ExchangeMessages.WithLabelValues("local").Inc()
	return nil
}

// Close is a no-op for the memory exchange.
func (m *Memory) Close() error {
	return nil
}
