package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roomcast/internal/connection"
	"roomcast/internal/exchange"
	"roomcast/internal/identity"
	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// Gateway validates client operations and runs them against the registry,
// the router and the exchange.
type Gateway interface {
	// Publish validates and stamps a message from sender, then hands it to
	// the exchange. Room must be non-empty; transport handlers fill in the
	// default before calling. The returned message carries the assigned ID
	// and timestamp.
	Publish(ctx context.Context, sender, room, body string) (router.Message, error)

	// ChangeRoom moves userID to room and enqueues a fresh welcome there.
	// Returns the room now current. Naming the room the user already
	// occupies is a validation error; the subscription is untouched.
	ChangeRoom(userID, room string) (string, error)

	// Rooms returns current room occupancy.
	Rooms() RoomsSnapshot
}

// gateway implements the Gateway interface.
type gateway struct {
	cfg    GatewayConfig
	reg    connection.Registry
	rtr    router.Router
	exch   exchange.Exchange
	ids    identity.Issuer
	logger *slog.Logger
}

// NewGateway creates a Gateway. A nil issuer falls back to random UUIDs.
func NewGateway(cfg GatewayConfig, reg connection.Registry, rtr router.Router, exch exchange.Exchange, ids identity.Issuer, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if ids == nil {
		ids = identity.NewIssuer()
	}
	def := DefaultGatewayConfig()
	if cfg.MaxMessageBytes < 1 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.MaxRoomBytes < 1 {
		cfg.MaxRoomBytes = def.MaxRoomBytes
	}

	return &gateway{
		cfg:    cfg,
		reg:    reg,
		rtr:    rtr,
		exch:   exch,
		ids:    ids,
		logger: logger,
	}
}

// Publish accepts a message for fan-out.
func (g *gateway) Publish(ctx context.Context, sender, room, body string) (router.Message, error) {
	if strings.TrimSpace(body) == "" {
		metrics.Publishes.WithLabelValues("rejected").Inc()
		return router.Message{}, fmt.Errorf("%w: empty message", ErrValidation)
	}
	if len(body) > g.cfg.MaxMessageBytes {
		metrics.Publishes.WithLabelValues("rejected").Inc()
		return router.Message{}, fmt.Errorf("%w: message exceeds %d bytes", ErrValidation, g.cfg.MaxMessageBytes)
	}
	room = strings.TrimSpace(room)
	if room == "" || len(room) > g.cfg.MaxRoomBytes {
		metrics.Publishes.WithLabelValues("rejected").Inc()
		return router.Message{}, fmt.Errorf("%w: bad room name", ErrValidation)
	}

	conn, ok := g.reg.Lookup(sender)
	if !ok {
		metrics.Publishes.WithLabelValues("rejected").Inc()
		return router.Message{}, fmt.Errorf("%w: %s has no active connection", ErrNotFound, sender)
	}
	if !conn.AllowPublish() {
		metrics.Publishes.WithLabelValues("throttled").Inc()
		return router.Message{}, fmt.Errorf("%w: publish rate exceeded", ErrCapacity)
	}

	msg := router.Message{
		ID:     g.ids.Issue(),
		Sender: sender,
		Body:   body,
		Room:   room,
		At:     time.Now().UTC(),
	}

	if err := g.exch.Publish(ctx, msg); err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		g.logger.Error("exchange publish failed", "room", room, "error", err)
		return router.Message{}, fmt.Errorf("%w: %s", ErrChannelIO, err)
	}

	metrics.Publishes.WithLabelValues("accepted").Inc()
	g.logger.Debug("message published", "sender", sender, "room", room, "id", msg.ID)
	return msg, nil
}

// ChangeRoom moves userID into room. The move itself runs inside the
// registry so it is serialized with connection teardown; a connection torn
// down mid-move can never be re-bound into the router.
func (g *gateway) ChangeRoom(userID, room string) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return "", fmt.Errorf("%w: empty room", ErrValidation)
	}
	if len(room) > g.cfg.MaxRoomBytes {
		return "", fmt.Errorf("%w: room exceeds %d bytes", ErrValidation, g.cfg.MaxRoomBytes)
	}

	_, err := g.reg.Move(userID, room)
	switch {
	case errors.Is(err, connection.ErrNoConnection):
		return "", fmt.Errorf("%w: %s has no active connection", ErrNotFound, userID)
	case errors.Is(err, connection.ErrSameRoom):
		return "", fmt.Errorf("%w: already in room %s", ErrValidation, room)
	case err != nil:
		return "", err
	}

	return room, nil
}

// Rooms returns current room occupancy.
func (g *gateway) Rooms() RoomsSnapshot {
	return RoomsSnapshot{
		Rooms:       g.rtr.Rooms(),
		Connections: g.reg.Len(),
	}
}
