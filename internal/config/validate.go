package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate rejects configurations the service cannot run with. The first
// problem found is returned as the error.
func (c *ServiceConfig) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if c.Chat.DefaultRoom == "" {
		return errors.New("chat.default_room is required")
	}
	if c.Chat.QueueDepth < 1 {
		return errors.New("chat.queue_depth must be >= 1")
	}
	if c.Chat.MaxMessageBytes < 1 {
		return errors.New("chat.max_message_bytes must be >= 1")
	}
	if c.Chat.ReadLimit < 1 {
		return errors.New("chat.read_limit must be >= 1")
	}
	if c.Chat.PublishRate < 0 {
		return errors.New("chat.publish_rate must be >= 0")
	}
	if c.Chat.PublishRate > 0 && c.Chat.PublishBurst < 1 {
		return errors.New("chat.publish_burst must be >= 1 when publish_rate is set")
	}

	switch c.Exchange.Kind {
	case "memory":
	case "redis":
		if c.Exchange.RedisURL == "" {
			return errors.New("exchange.redis_url is required when exchange.kind is redis")
		}
	default:
		return fmt.Errorf("exchange.kind must be memory or redis, got %q", c.Exchange.Kind)
	}

	if c.History.Enabled {
		if err := c.History.Database.validate("history.database"); err != nil {
			return err
		}
		if c.History.BatchSize < 1 {
			return errors.New("history.batch_size must be >= 1")
		}
		if c.History.BufferSize < 1 {
			return errors.New("history.buffer_size must be >= 1")
		}
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	for _, f := range []struct{ name, val string }{
		{"host", db.Host},
		{"name", db.Name},
		{"user", db.User},
		{"password", db.Password},
	} {
		if f.val == "" {
			return fmt.Errorf("%s.%s is required", prefix, f.name)
		}
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	switch db.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%s.ssl_mode %q is not a libpq ssl mode", prefix, db.SSLMode)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 || db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be between 0 and max_conns (%d)", prefix, db.MaxConns)
	}
	return nil
}
