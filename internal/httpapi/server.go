package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roomcast/internal/config"
	"roomcast/internal/connection"
	"roomcast/internal/gateway"
	"roomcast/internal/identity"
	"roomcast/internal/metrics"
	"roomcast/internal/version"
)

// Server holds the handler dependencies for the HTTP and WebSocket surface.
type Server struct {
	cfg     config.ServiceConfig
	gw      gateway.Gateway
	reg     connection.Registry
	ids     identity.Issuer
	logger  *slog.Logger
	started time.Time
}

// NewServer creates a Server. A nil issuer falls back to UUIDs, a nil
// logger to slog.Default().
func NewServer(cfg config.ServiceConfig, gw gateway.Gateway, reg connection.Registry, ids identity.Issuer, logger *slog.Logger) *Server {
	if ids == nil {
		ids = identity.NewIssuer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		gw:      gw,
		reg:     reg,
		ids:     ids,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler assembles the route table. REST routes are instrumented; the
// websocket route is not, since a hijacked connection has no response
// status and its lifetime is tracked by the connection gauges instead.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/auth", instrument("/auth", http.HandlerFunc(s.AuthHandler)))
	mux.Handle("/send_message", instrument("/send_message", http.HandlerFunc(s.SendMessageHandler)))
	mux.Handle("/change_room", instrument("/change_room", http.HandlerFunc(s.ChangeRoomHandler)))
	mux.Handle("/rooms", instrument("/rooms", http.HandlerFunc(s.RoomsHandler)))
	mux.Handle("/healthz", instrument("/healthz", http.HandlerFunc(s.HealthHandler)))

	mux.HandleFunc("/chat/", s.ChatHandler)

	metricsPath := s.cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}
	mux.Handle(metricsPath, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

// HealthHandler reports component health for probes and dashboards.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}

	snap := s.gw.Rooms()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		UptimeSecs int64          `json:"uptime_seconds"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.Version,
		UptimeSecs: int64(time.Since(s.started).Seconds()),
		Components: make(map[string]any),
	}

	health.Components["registry"] = map[string]any{
		"connections": snap.Connections,
	}
	health.Components["router"] = map[string]any{
		"rooms": len(snap.Rooms),
	}
	health.Components["exchange"] = map[string]any{
		"kind": s.cfg.Exchange.Kind,
	}
	health.Components["history"] = map[string]any{
		"enabled": s.cfg.History.Enabled,
	}

	writeJSON(w, http.StatusOK, health)
}
