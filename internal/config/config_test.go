package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  addr: ":9100"
chat:
  default_room: lobby
  queue_depth: 50
exchange:
  kind: memory
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9100")
	}
	if cfg.Chat.DefaultRoom != "lobby" {
		t.Errorf("Chat.DefaultRoom = %q, want %q", cfg.Chat.DefaultRoom, "lobby")
	}
	if cfg.Chat.QueueDepth != 50 {
		t.Errorf("Chat.QueueDepth = %d, want 50", cfg.Chat.QueueDepth)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
exchange:
  kind: redis
  redis_url: ${TEST_REDIS_URL}
history:
  enabled: true
  database:
    host: localhost
    name: chat_history
    user: archiver
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Exchange.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("Exchange.RedisURL = %q, want %q", cfg.Exchange.RedisURL, "redis://localhost:6379/2")
	}
	if cfg.History.Database.Password != "secret123" {
		t.Errorf("History.Database.Password = %q, want %q", cfg.History.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
chat:
  default_room: lobby
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Omitted fields pick up the defaults
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Chat.QueueDepth != DefaultQueueDepth {
		t.Errorf("Chat.QueueDepth = %d, want default %d", cfg.Chat.QueueDepth, DefaultQueueDepth)
	}
	if cfg.Chat.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("Chat.WriteTimeout = %v, want default %v", cfg.Chat.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Exchange.Kind != DefaultExchangeKind {
		t.Errorf("Exchange.Kind = %q, want default %q", cfg.Exchange.Kind, DefaultExchangeKind)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	// Explicit value survives defaulting
	if cfg.Chat.DefaultRoom != "lobby" {
		t.Errorf("Chat.DefaultRoom = %q, want %q", cfg.Chat.DefaultRoom, "lobby")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() config failed validation: %v", err)
	}
	if cfg.Chat.DefaultRoom != DefaultRoom {
		t.Errorf("Chat.DefaultRoom = %q, want %q", cfg.Chat.DefaultRoom, DefaultRoom)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServiceConfig)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *ServiceConfig) {},
			wantErr: "",
		},
		{
			name:    "empty default room",
			mutate:  func(c *ServiceConfig) { c.Chat.DefaultRoom = "" },
			wantErr: "chat.default_room is required",
		},
		{
			name:    "negative queue depth",
			mutate:  func(c *ServiceConfig) { c.Chat.QueueDepth = -1 },
			wantErr: "chat.queue_depth must be >= 1",
		},
		{
			name:    "rate without burst",
			mutate:  func(c *ServiceConfig) { c.Chat.PublishRate = 5; c.Chat.PublishBurst = 0 },
			wantErr: "chat.publish_burst must be >= 1 when publish_rate is set",
		},
		{
			name:    "unknown exchange kind",
			mutate:  func(c *ServiceConfig) { c.Exchange.Kind = "kafka" },
			wantErr: `exchange.kind must be memory or redis, got "kafka"`,
		},
		{
			name:    "redis without url",
			mutate:  func(c *ServiceConfig) { c.Exchange.Kind = "redis" },
			wantErr: "exchange.redis_url is required when exchange.kind is redis",
		},
		{
			name:    "history enabled without host",
			mutate:  func(c *ServiceConfig) { c.History.Enabled = true },
			wantErr: "history.database.host is required",
		},
		{
			name: "history min_conns exceeds max_conns",
			mutate: func(c *ServiceConfig) {
				c.History.Enabled = true
				c.History.Database = DBConfig{
					Host: "localhost", Port: 5432, Name: "db", User: "u", Password: "p",
					MaxConns: 5, MinConns: 10,
				}
			},
			wantErr: "history.database.min_conns must be between 0 and max_conns (5)",
		},
		{
			name: "history port out of range",
			mutate: func(c *ServiceConfig) {
				c.History.Enabled = true
				c.History.Database = DBConfig{
					Host: "localhost", Port: 70000, Name: "db", User: "u", Password: "p",
					MaxConns: 5,
				}
			},
			wantErr: "history.database.port must be between 1 and 65535, got 70000",
		},
		{
			name: "history unknown ssl mode",
			mutate: func(c *ServiceConfig) {
				c.History.Enabled = true
				c.History.Database = DBConfig{
					Host: "localhost", Port: 5432, Name: "db", User: "u", Password: "p",
					SSLMode: "sideways", MaxConns: 5,
				}
			},
			wantErr: `history.database.ssl_mode "sideways" is not a libpq ssl mode`,
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *ServiceConfig) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateDurationFields(t *testing.T) {
	cfg := Default()
	if cfg.Chat.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want %v", cfg.Chat.PingInterval, 30*time.Second)
	}
	if cfg.Monitor.Interval != DefaultMonitorInterval {
		t.Errorf("Monitor.Interval = %v, want %v", cfg.Monitor.Interval, DefaultMonitorInterval)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
