package connection

import (
	"errors"

	"roomcast/internal/router"
)

// Errors
var (
	ErrRegistryClosed = errors.New("registry closed")
	ErrNoConnection   = errors.New("no active connection")
	ErrSameRoom       = errors.New("already in that room")
)

// SystemSender identifies frames generated by the service itself.
const SystemSender = "system"

// State is the lifecycle state of a connection.
type State int

const (
	// StateOpen means the connection accepts frames and its delivery loop
	// is draining them.
	StateOpen State = iota
	// StateClosing means teardown has begun; new frames are refused while
	// queued ones flush.
	StateClosing
	// StateClosed means the delivery loop has exited and the channel is
	// closed.
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is the transport half of a registered connection. WriteFrame is
// only ever called from the connection's delivery loop. Close may be called
// more than once and from any goroutine.
type Channel interface {
	WriteFrame(data []byte) error
	Close() error
}

// RegistryConfig configures the Connection Registry.
type RegistryConfig struct {
	DefaultRoom  string  // Room joined when the client names none
	QueueDepth   int     // Per-connection outbound queue capacity
	PublishRate  float64 // Sustained publishes per second per connection (0 = unlimited)
	PublishBurst int     // Burst allowance when PublishRate is set
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		DefaultRoom: "general",
		QueueDepth:  100,
	}
}

// RegistryStats provides statistics about the connection registry.
type RegistryStats struct {
	Active     int
	Registered int64
	Superseded int64
	TornDown   int64
}

// ConnStats is a snapshot of a single connection.
type ConnStats struct {
	UserID       string
	Room         string
	State        State
	Delivered    int64
	DroppedStale int64
	Queue        router.BufferStats
}
