package connection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// Conn is the server-side handle for one user's live connection. It owns the
// bounded outbound queue and the delivery loop that drains it onto the
// channel. The delivery loop is the only goroutine that writes to the
// channel; everything else reaches the connection through Deliver.
type Conn struct {
	userID string
	ch     Channel
	queue  *router.Buffer[queuedFrame]
	reg    *registry
	logger *slog.Logger

	limiter *rate.Limiter // nil when publish rate limiting is off

	mu    sync.Mutex
	room  string
	epoch uint64 // bumped on every room switch
	state State

	loopDone chan struct{}

	delivered    atomic.Int64
	droppedStale atomic.Int64
}

// queuedFrame pairs a frame with the room binding generation it was accepted
// under. The delivery loop uses the epoch to tell frames queued before a room
// switch from frames for the same room joined again later.
type queuedFrame struct {
	frame router.Frame
	epoch uint64
}

func newConn(userID, room string, ch Channel, reg *registry) *Conn {
	c := &Conn{
		userID:   userID,
		ch:       ch,
		queue:    router.NewBuffer[queuedFrame](reg.cfg.QueueDepth),
		reg:      reg,
		logger:   reg.logger.With("user_id", userID),
		room:     room,
		state:    StateOpen,
		loopDone: make(chan struct{}),
	}

	if reg.cfg.PublishRate > 0 {
		burst := reg.cfg.PublishBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(reg.cfg.PublishRate), burst)
	}

	return c
}

// UserID returns the user this connection belongs to.
func (c *Conn) UserID() string { return c.userID }

// Room returns the room this connection currently occupies.
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// State returns the connection lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the delivery loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.loopDone }

// SwitchRoom records the new room and advances the binding epoch. Everything
// queued before this call becomes stale, including frames for room itself
// when the connection is returning to a room it left earlier. The caller
// re-binds the connection in the message router.
func (c *Conn) SwitchRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.epoch++
	c.mu.Unlock()
}

// AllowPublish reports whether a publish from this connection is within the
// configured rate. Always true when rate limiting is off.
func (c *Conn) AllowPublish() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Deliver implements router.Subscriber. It enqueues the frame on the
// outbound queue, evicting the oldest frame when full, and refuses frames
// once the connection has left the Open state. The frame is stamped with the
// current binding epoch so a later room switch invalidates it.
func (c *Conn) Deliver(f router.Frame) bool {
	c.mu.Lock()
	open := c.state == StateOpen
	epoch := c.epoch
	c.mu.Unlock()

	if !open {
		metrics.FramesDropped.WithLabelValues("closed").Inc()
		return false
	}

	ok, evicted := c.queue.Send(queuedFrame{frame: f, epoch: epoch})
	if !ok {
		metrics.FramesDropped.WithLabelValues("closed").Inc()
		return false
	}
	if evicted {
		metrics.FramesDropped.WithLabelValues("overflow").Inc()
		c.logger.Debug("outbound queue full, dropped oldest frame", "room", f.Room)
	}
	return true
}

// Stats returns a snapshot of the connection.
func (c *Conn) Stats() ConnStats {
	c.mu.Lock()
	room, state := c.room, c.state
	c.mu.Unlock()

	return ConnStats{
		UserID:       c.userID,
		Room:         room,
		State:        state,
		Delivered:    c.delivered.Load(),
		DroppedStale: c.droppedStale.Load(),
		Queue:        c.queue.Stats(),
	}
}

// beginClose moves the connection from Open to Closing. Returns false if it
// already left Open.
func (c *Conn) beginClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return false
	}
	c.state = StateClosing
	return true
}

func (c *Conn) setClosed() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

// deliveryLoop drains the outbound queue onto the channel until the queue
// is closed or a write fails. Room-tagged frames go out only when both the
// room and the binding epoch still match, so frames queued before a switch
// stay dead even after the connection returns to the same room. Control
// frames carry no room and always go out.
func (c *Conn) deliveryLoop() {
	defer close(c.loopDone)

	for {
		q, ok := c.queue.Receive()
		if !ok {
			break
		}

		c.mu.Lock()
		room, epoch := c.room, c.epoch
		c.mu.Unlock()
		if q.frame.Room != "" && (q.frame.Room != room || q.epoch != epoch) {
			c.droppedStale.Add(1)
			metrics.FramesDropped.WithLabelValues("stale").Inc()
			continue
		}

		if err := c.ch.WriteFrame(q.frame.Data); err != nil {
			c.logger.Warn("frame write failed, tearing down", "error", err)
			c.reg.Teardown(c)
			break
		}
		c.delivered.Add(1)
		metrics.FramesDelivered.Inc()
	}

	c.setClosed()
	if err := c.ch.Close(); err != nil {
		c.logger.Debug("channel close", "error", err)
	}
	c.logger.Debug("delivery loop exited")
}

// WelcomeFrame builds the personal system notice enqueued when a user joins
// a room. The frame is tagged with the room so an immediate switch
// invalidates it like any other room frame.
func WelcomeFrame(userID, room string) router.Frame {
	msg := router.Message{
		Sender: SystemSender,
		Body:   fmt.Sprintf("Welcome to room '%s', %s!", room, userID),
		Room:   room,
		At:     time.Now().UTC(),
		Type:   router.TypeSystem,
	}

	data, _ := json.Marshal(msg)
	return router.Frame{Room: room, Data: data}
}
