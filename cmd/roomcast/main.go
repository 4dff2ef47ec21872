// roomcast is the chat fan-out service: HTTP and WebSocket front, room
// router, optional Redis exchange for multi-instance fan-out, optional
// Postgres history archive.
//
// Usage: roomcast --config configs/roomcast.yaml --log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"roomcast/internal/config"
	"roomcast/internal/connection"
	"roomcast/internal/database"
	"roomcast/internal/exchange"
	"roomcast/internal/gateway"
	"roomcast/internal/history"
	"roomcast/internal/httpapi"
	"roomcast/internal/identity"
	"roomcast/internal/metrics"
	"roomcast/internal/monitor"
	"roomcast/internal/router"
	"roomcast/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting roomcast",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Built-in defaults when no -config flag is given
	var cfg *config.ServiceConfig
	if *configPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger.Info("configuration loaded",
		"addr", cfg.Server.Addr,
		"default_room", cfg.Chat.DefaultRoom,
		"exchange", cfg.Exchange.Kind,
		"history_enabled", cfg.History.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	// Core fan-out path. The archive tap only exists when history is on.
	routerCfg := router.RouterConfig{}
	if cfg.History.Enabled {
		routerCfg.ArchiveBufferSize = cfg.History.BufferSize
	}
	rtr := router.NewRouter(routerCfg, logger)

	reg := connection.NewRegistry(connection.RegistryConfig{
		DefaultRoom:  cfg.Chat.DefaultRoom,
		QueueDepth:   cfg.Chat.QueueDepth,
		PublishRate:  cfg.Chat.PublishRate,
		PublishBurst: cfg.Chat.PublishBurst,
	}, rtr, logger)

	// Exchange: memory keeps fan-out in-process, redis spans instances.
	var exch exchange.Exchange
	switch cfg.Exchange.Kind {
	case "", "memory":
		exch = exchange.NewMemory(rtr, logger)
	case "redis":
		red, err := exchange.NewRedis(exchange.RedisConfig{URL: cfg.Exchange.RedisURL}, rtr, logger)
		if err != nil {
			logger.Error("failed to create redis exchange", "error", err)
			os.Exit(1)
		}
		if err := red.Start(ctx); err != nil {
			logger.Error("failed to start redis exchange", "error", err)
			os.Exit(1)
		}
		logger.Info("redis exchange connected")
		exch = red
	default:
		logger.Error("unknown exchange kind", "kind", cfg.Exchange.Kind)
		os.Exit(1)
	}

	// Optional history archive
	var writer *history.Writer
	if cfg.History.Enabled {
		logger.Info("connecting to history database",
			"host", cfg.History.Database.Host,
			"port", cfg.History.Database.Port,
			"database", cfg.History.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.History.Database)
		if err != nil {
			logger.Error("failed to connect to history database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("history database connected")

		writer = history.NewWriter(history.WriterConfig{
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
		}, rtr.Archive(), pool, logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start history writer", "error", err)
			os.Exit(1)
		}
	}

	ids := identity.NewIssuer()
	gw := gateway.NewGateway(gateway.GatewayConfig{
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
	}, reg, rtr, exch, ids, logger)

	mon := monitor.New(monitor.Config{Interval: cfg.Monitor.Interval}, rtr, reg, logger)
	if err := mon.Start(ctx); err != nil {
		logger.Error("failed to start monitor", "error", err)
		os.Exit(1)
	}

	api := httpapi.NewServer(*cfg, gw, reg, ids, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	// Ordered teardown: websocket connections first, then the exchange,
	// then the router's archive tap so the writer can drain it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if cerr := reg.Close(shutdownCtx); cerr != nil {
		logger.Warn("registry close", "error", cerr)
	}
	if cerr := exch.Close(); cerr != nil {
		logger.Warn("exchange close", "error", cerr)
	}
	rtr.Close()
	if writer != nil {
		if cerr := writer.Stop(shutdownCtx); cerr != nil {
			logger.Warn("history writer stop", "error", cerr)
		}
	}
	if cerr := mon.Stop(shutdownCtx); cerr != nil {
		logger.Warn("monitor stop", "error", cerr)
	}

	if err != nil {
		logger.Error("roomcast exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("roomcast stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
