package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roomcast/internal/connection"
	"roomcast/internal/metrics"
	"roomcast/internal/router"
)

// RouterSource provides router statistics.
type RouterSource interface {
	Stats() router.RouterStats
}

// RegistrySource provides connection registry statistics.
type RegistrySource interface {
	Stats() connection.RegistryStats
}

// Config holds monitor configuration.
type Config struct {
	Interval time.Duration // Sample interval (default: 30s)
}

// DefaultConfig returns the standard sampling interval.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
	}
}

// Monitor samples service statistics on a fixed interval.
type Monitor struct {
	cfg    Config
	rtr    RouterSource
	reg    RegistrySource
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Monitor.
func New(cfg Config, rtr RouterSource, reg RegistrySource, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Monitor{
		cfg:    cfg,
		rtr:    rtr,
		reg:    reg,
		logger: logger,
	}
}

// Start begins the sampling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main sampling loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Sample immediately on start.
	m.sample()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample reads current statistics, refreshes the gauges and logs them.
func (m *Monitor) sample() {
	rs := m.rtr.Stats()
	cs := m.reg.Stats()

	metrics.RoomsActive.Set(float64(rs.Rooms))
	metrics.ConnectionsActive.Set(float64(cs.Active))

	m.logger.Info("service stats",
		"rooms", rs.Rooms,
		"subscribers", rs.Subscribers,
		"published", rs.Published,
		"delivered", rs.Delivered,
		"refused", rs.Refused,
		"connections", cs.Active,
		"superseded", cs.Superseded,
		"archive_backlog", rs.Archive.Count,
	)
}
