package router

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Router owns the room subscription table and fans published messages out
// to the members of the target room at the publish instant.
type Router interface {
	// Subscribe moves sub into room, removing it from its previous room
	// first. Idempotent when re-subscribing to the same room. Returns the
	// previous room name and whether sub was subscribed anywhere before.
	Subscribe(sub Subscriber, room string) (prev string, moved bool)

	// Unsubscribe removes sub from its room and forgets the room when it
	// empties. Unknown subscribers are a no-op.
	Unsubscribe(sub Subscriber)

	// Publish stamps msg with its arrival sequence, marshals the wire
	// frame once, and enqueues it to every current member of msg.Room.
	// Returns the number of members that accepted the frame. Publishing
	// to a room with no members delivers to zero targets; not an error.
	Publish(msg Message) int

	// Room returns the room sub currently occupies.
	Room(sub Subscriber) (string, bool)

	// Rooms returns a snapshot of room names to subscriber counts.
	Rooms() map[string]int

	// Archive returns the archive tap buffer, or nil when archiving is off.
	Archive() *Buffer[Message]

	// Close closes the archive buffer. Subscriptions are unaffected.
	Close()

	// Stats returns a snapshot of the routing counters.
	Stats() RouterStats
}

type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
	bySub map[Subscriber]string

	// Arrival order stamp
	seq atomic.Int64

	// Tap for the history writer (nil when disabled)
	archive *Buffer[Message]

	// Stats
	published atomic.Int64
	delivered atomic.Int64
	refused   atomic.Int64
}

// NewRouter creates a new Topic Router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:    cfg,
		logger: logger,
		rooms:  make(map[string]map[Subscriber]struct{}),
		bySub:  make(map[Subscriber]string),
	}
	if cfg.ArchiveBufferSize > 0 {
		r.archive = NewBuffer[Message](cfg.ArchiveBufferSize)
	}
	return r
}

// Subscribe moves sub into room, leaving its previous room if any.
func (r *router) Subscribe(sub Subscriber, room string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.bySub[sub]
	if had && prev == room {
		return prev, true
	}
	if had {
		r.removeLocked(sub, prev)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Subscriber]struct{})
		r.rooms[room] = members
	}
	members[sub] = struct{}{}
	r.bySub[sub] = room

	r.logger.Debug("subscribed", "room", room, "members", len(members))
	return prev, had
}

// Unsubscribe removes sub from its room.
func (r *router) Unsubscribe(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.bySub[sub]
	if !ok {
		return
	}
	r.removeLocked(sub, room)
	delete(r.bySub, sub)
}

// removeLocked removes sub from room's member set and forgets the room
// when it empties. Must be called with mu held.
func (r *router) removeLocked(sub Subscriber, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(r.rooms, room)
		r.logger.Debug("room emptied", "room", room)
	}
}

// Publish fans msg out to the room's current members.
func (r *router) Publish(msg Message) int {
	msg.Seq = r.seq.Add(1)
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal message", "room", msg.Room, "error", err)
		return 0
	}
	frame := Frame{Room: msg.Room, Data: data}

	// Snapshot the member set under the lock, enqueue outside it so a
	// large room never holds up subscription changes.
	r.mu.RLock()
	members := r.rooms[msg.Room]
	targets := make([]Subscriber, 0, len(members))
	for sub := range members {
		targets = append(targets, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.Deliver(frame) {
			delivered++
		} else {
			r.refused.Add(1)
		}
	}

	r.published.Add(1)
	r.delivered.Add(int64(delivered))

	if r.archive != nil {
		r.archive.Send(msg)
	}

	return delivered
}

// Room returns the room sub currently occupies.
func (r *router) Room(sub Subscriber) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.bySub[sub]
	return room, ok
}

// Rooms returns a snapshot of room names to subscriber counts.
func (r *router) Rooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]int, len(r.rooms))
	for name, members := range r.rooms {
		snapshot[name] = len(members)
	}
	return snapshot
}

// Archive returns the archive tap buffer, or nil when archiving is off.
func (r *router) Archive() *Buffer[Message] {
	return r.archive
}

// Close closes the archive buffer so its consumer can drain and stop.
func (r *router) Close() {
	if r.archive != nil {
		r.archive.Close()
	}
}

func (r *router) Stats() RouterStats {
	r.mu.RLock()
	rooms := len(r.rooms)
	subs := len(r.bySub)
	r.mu.RUnlock()

	stats := RouterStats{
		Rooms:       rooms,
		Subscribers: subs,
		Published:   r.published.Load(),
		Delivered:   r.delivered.Load(),
		Refused:     r.refused.Load(),
	}
	if r.archive != nil {
		stats.Archive = r.archive.Stats()
		stats.ArchiveDrop = stats.Archive.Dropped
	}
	return stats
}
