package config

import "time"

// ServiceConfig is the root configuration for a roomcast instance.
type ServiceConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Chat     ChatConfig     `yaml:"chat"`
	Exchange ExchangeConfig `yaml:"exchange"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// ChatConfig holds room, queue and websocket settings.
type ChatConfig struct {
	DefaultRoom     string        `yaml:"default_room"`
	QueueDepth      int           `yaml:"queue_depth"`       // Per-connection outbound frames
	MaxMessageBytes int           `yaml:"max_message_bytes"` // Max publish body size
	WriteTimeout    time.Duration `yaml:"write_timeout"`     // Per-frame write deadline
	PingInterval    time.Duration `yaml:"ping_interval"`     // Server-side keepalive pings
	PongTimeout     time.Duration `yaml:"pong_timeout"`      // Read deadline extension on pong
	ReadLimit       int64         `yaml:"read_limit"`        // Max inbound websocket frame size
	PublishRate     float64       `yaml:"publish_rate"`      // Publishes/sec per connection (0 = unlimited)
	PublishBurst    int           `yaml:"publish_burst"`
}

// ExchangeConfig selects the fan-out transport.
type ExchangeConfig struct {
	Kind     string `yaml:"kind"` // "memory" or "redis"
	RedisURL string `yaml:"redis_url"`
}

// HistoryConfig holds the optional message archive settings.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig describes the PostgreSQL connection used by the archive.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig holds the periodic stats sampler settings.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}
