package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// channelPrefix namespaces room channels on the broker.
const channelPrefix = "chat."

// RedisConfig configures the redis exchange.
type RedisConfig struct {
	URL string // redis:// connection URL
}

// Redis carries published messages across service instances over redis
// Pub/Sub. Local publishes are not routed directly: they come back through
// the pump like everyone else's, so every instance runs the same path.
type Redis struct {
	cfg    RedisConfig
	rdb    *redis.Client
	rtr    router.Router
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ps     *redis.PubSub
	done   chan struct{}
}

// NewRedis creates a redis exchange from a redis:// URL.
func NewRedis(cfg RedisConfig, rtr router.Router, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return &Redis{
		cfg:    cfg,
		rdb:    redis.NewClient(opt),
		rtr:    rtr,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start subscribes to the room channel pattern and begins pumping broker
// messages into the local router.
func (r *Redis) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.rdb.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ps = r.rdb.PSubscribe(r.ctx, channelPrefix+"*")

	// Confirm the subscription before anything is published
	if _, err := r.ps.Receive(r.ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go r.pump()

	r.logger.Info("redis exchange started", "pattern", channelPrefix+"*")
	return nil
}

// pump moves broker messages into the local router until the exchange is
// closed. The go-redis PubSub reconnects and resubscribes on its own; its
// channel only closes when the PubSub does.
func (r *Redis) pump() {
	defer close(r.done)

	for m := range r.ps.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			r.logger.Warn("bad exchange payload, dropping", "channel", m.Channel, "error", err)
			continue
		}

		r.rtr.Publish(env.message())
		metrics.ExchangeMessages.WithLabelValues("in").Inc()
	}
}

// Publish sends msg to the broker. Delivery to local subscribers happens
// when the pump receives it back.
func (r *Redis) Publish(ctx context.Context, msg router.Message) error {
	data, err := json.Marshal(toEnvelope(msg))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.rdb.Publish(ctx, channelPrefix+msg.Room, data).Err(); err != nil {
		return fmt.Errorf("publish to %s%s: %w", channelPrefix, msg.Room, err)
	}

	metrics.ExchangeMessages.WithLabelValues("out").Inc()
	return nil
}

// Close stops the pump and closes the broker connections.
func (r *Redis) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.ps != nil {
		r.ps.Close()
		<-r.done
	}
	return r.rdb.Close()
}
