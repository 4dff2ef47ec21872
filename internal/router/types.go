package router

import "time"

// RouterConfig holds configuration for the Topic Router.
type RouterConfig struct {
	// ArchiveBufferSize is the capacity of the archive tap buffer.
	// Zero disables archiving.
	ArchiveBufferSize int
}

// DefaultRouterConfig returns default configuration (archiving off).
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{}
}

// TypeSystem marks server-generated notices. Plain chat messages leave
// Type empty.
const TypeSystem = "system"

// Message is a chat message accepted for fan-out. The JSON tags are the
// client wire shape; ID and Seq stay server-side.
type Message struct {
	ID     string    `json:"-"`
	Sender string    `json:"user_id"`
	Body   string    `json:"message"`
	Room   string    `json:"room"`
	At     time.Time `json:"timestamp"`
	Type   string    `json:"type,omitempty"` // "" for chat messages, "system" for server notices
	Seq    int64     `json:"-"`              // Order of arrival at the router
}

// Frame is a marshaled server-to-client payload tagged with the room it
// was published to. Control frames (acks, errors) carry an empty Room and
// are never stale-filtered by the delivery loop.
type Frame struct {
	Room string
	Data []byte
}

// Subscriber receives frames for the room it occupies. Connections
// implement this; the router holds them only through this interface.
type Subscriber interface {
	// Deliver offers a frame to the subscriber's outbound queue. It must
	// not block and returns false if the subscriber refused the frame
	// (already closing or closed).
	Deliver(f Frame) bool
}

// RouterStats is a point-in-time view of routing activity.
type RouterStats struct {
	Rooms       int
	Subscribers int
	Published   int64
	Delivered   int64
	Refused     int64
	ArchiveDrop int64
	Archive     BufferStats
}
