package gateway

import "errors"

// Errors returned to transport handlers, which map them onto status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("unknown user")
	ErrCapacity   = errors.New("over capacity")
	ErrChannelIO  = errors.New("channel unavailable")
)

// GatewayConfig bounds what the gateway accepts.
type GatewayConfig struct {
	MaxMessageBytes int // Longest accepted message body
	MaxRoomBytes    int // Longest accepted room name
}

// DefaultGatewayConfig returns sensible defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxMessageBytes: 64 * 1024,
		MaxRoomBytes:    128,
	}
}

// RoomsSnapshot is a point-in-time view of room occupancy.
type RoomsSnapshot struct {
	Rooms       map[string]int // Room name to subscriber count
	Connections int            // Live connections overall
}
