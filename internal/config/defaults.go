package config

import "time"

// Fallbacks for every optional field.
const (
	DefaultAddr              = ":8000"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultRoom              = "general"
	DefaultQueueDepth        = 100
	DefaultMaxMessageBytes   = 64 * 1024
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPongTimeout       = 60 * time.Second
	DefaultReadLimit         = 64 * 1024
	DefaultExchangeKind      = "memory"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMetricsPath       = "/metrics"
	DefaultMonitorInterval   = 30 * time.Second
)

func (c *ServiceConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Chat defaults
	if c.Chat.DefaultRoom == "" {
		c.Chat.DefaultRoom = DefaultRoom
	}
	if c.Chat.QueueDepth == 0 {
		c.Chat.QueueDepth = DefaultQueueDepth
	}
	if c.Chat.MaxMessageBytes == 0 {
		c.Chat.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Chat.WriteTimeout == 0 {
		c.Chat.WriteTimeout = DefaultWriteTimeout
	}
	if c.Chat.PingInterval == 0 {
		c.Chat.PingInterval = DefaultPingInterval
	}
	if c.Chat.PongTimeout == 0 {
		c.Chat.PongTimeout = DefaultPongTimeout
	}
	if c.Chat.ReadLimit == 0 {
		c.Chat.ReadLimit = DefaultReadLimit
	}
	if c.Chat.PublishRate > 0 && c.Chat.PublishBurst == 0 {
		c.Chat.PublishBurst = 1
	}

	// Exchange defaults
	if c.Exchange.Kind == "" {
		c.Exchange.Kind = DefaultExchangeKind
	}

	// History defaults
	applyDBDefaults(&c.History.Database)
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultFlushInterval
	}
	if c.History.BufferSize == 0 {
		c.History.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Monitor defaults
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultMonitorInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
