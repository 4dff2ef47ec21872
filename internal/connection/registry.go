package connection

import (
	"context"
	"log/slog"
	"sync"

	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// Registry owns the user-to-connection binding.
type Registry interface {
	// Register installs a new connection for userID, superseding any
	// existing one. The connection is bound to room (the default room when
	// empty), its delivery loop is started and the welcome notice is
	// enqueued before any routed frame can reach it.
	Register(userID, room string, ch Channel) (*Conn, error)

	// Move re-binds userID's live connection to room (the default room
	// when empty) and enqueues a welcome notice there. The move runs under
	// the registry lock, so it cannot interleave with a teardown of the
	// same connection. Returns the room left behind, ErrNoConnection when
	// the user has no live connection, or ErrSameRoom when room is the one
	// the connection already occupies.
	Move(userID, room string) (string, error)

	// Teardown unbinds c from the message router, closes its queue and
	// drops the registry entry. Safe to call more than once and from any
	// goroutine, including c's own delivery loop.
	Teardown(c *Conn)

	// Lookup returns the live connection for userID.
	Lookup(userID string) (*Conn, bool)

	// Len returns the number of live connections.
	Len() int

	// Stats returns current registry statistics.
	Stats() RegistryStats

	// Close tears down every connection and waits for the delivery loops
	// to exit, or for ctx.
	Close(ctx context.Context) error
}

// registry implements the Registry interface.
type registry struct {
	cfg    RegistryConfig
	rtr    router.Router
	logger *slog.Logger

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool

	wg sync.WaitGroup

	registered int64
	superseded int64
	tornDown   int64
}

// NewRegistry creates a new Connection Registry bound to rtr.
func NewRegistry(cfg RegistryConfig, rtr router.Router, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultRegistryConfig()
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = def.DefaultRoom
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = def.QueueDepth
	}

	return &registry{
		cfg:    cfg,
		rtr:    rtr,
		logger: logger,
		conns:  make(map[string]*Conn),
	}
}

// Register installs a connection for userID.
func (r *registry) Register(userID, room string, ch Channel) (*Conn, error) {
	if room == "" {
		room = r.cfg.DefaultRoom
	}

	c := newConn(userID, room, ch, r)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}

	if old, ok := r.conns[userID]; ok {
		r.teardownLocked(old)
		r.superseded++
		metrics.ConnectionsSuperseded.Inc()
		r.logger.Info("connection superseded", "user_id", userID)
	}

	r.conns[userID] = c
	r.registered++
	active := len(r.conns)

	// Welcome goes on the queue before the room binding exists, so no
	// routed frame can precede it.
	c.Deliver(WelcomeFrame(userID, room))
	r.rtr.Subscribe(c, room)

	r.wg.Add(1)
	go func() {
		c.deliveryLoop()
		r.wg.Done()
	}()
	r.mu.Unlock()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(active))
	r.logger.Info("connection registered", "user_id", userID, "room", room)
	return c, nil
}

// Move re-binds userID's connection to room.
func (r *registry) Move(userID, room string) (string, error) {
	if room == "" {
		room = r.cfg.DefaultRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[userID]
	if !ok {
		return "", ErrNoConnection
	}
	prev := c.Room()
	if prev == room {
		return "", ErrSameRoom
	}

	// Same order as Register: the stale cutoff advances first, the welcome
	// goes on the queue, then the router binding exists for routed frames.
	c.SwitchRoom(room)
	c.Deliver(WelcomeFrame(userID, room))
	r.rtr.Subscribe(c, room)

	r.logger.Info("room changed", "user_id", userID, "from", prev, "to", room)
	return prev, nil
}

// Teardown removes c from the registry.
func (r *registry) Teardown(c *Conn) {
	if c == nil {
		return
	}

	r.mu.Lock()
	r.teardownLocked(c)
	active := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(active))
}

// teardownLocked unbinds c from the router, closes its queue and drops the
// registry entry when c is still the current connection for its user.
// Callers must hold mu.
func (r *registry) teardownLocked(c *Conn) {
	if cur, ok := r.conns[c.userID]; ok && cur == c {
		delete(r.conns, c.userID)
	}

	if !c.beginClose() {
		return
	}

	r.rtr.Unsubscribe(c)
	c.queue.Close()
	r.tornDown++
	r.logger.Info("connection torn down", "user_id", c.userID, "room", c.Room())
}

// Lookup returns the live connection for userID.
func (r *registry) Lookup(userID string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Len returns the number of live connections.
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Stats returns a snapshot of the registry counters.
func (r *registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{
		Active:     len(r.conns),
		Registered: r.registered,
		Superseded: r.superseded,
		TornDown:   r.tornDown,
	}
}

// Close tears down all connections and waits for their delivery loops.
func (r *registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.Teardown(c)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("connection registry closed", "torn_down", len(conns))
		return nil
	case <-ctx.Done():
		r.logger.Warn("connection registry close timed out")
		return ctx.Err()
	}
}
