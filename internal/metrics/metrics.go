package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "chat_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)

	// ConnectionsActive tracks currently registered connections.
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "chat_connections_active", Help: "Currently registered connections."},
	)
	// ConnectionsTotal counts connection registrations since start.
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chat_connections_total", Help: "Connections registered since start."},
	)
	// ConnectionsSuperseded counts connections replaced by a newer one for the same user.
	ConnectionsSuperseded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chat_connections_superseded_total", Help: "Connections replaced by a reconnect."},
	)

	// RoomsActive tracks rooms with at least one subscriber.
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "chat_rooms_active", Help: "Rooms with at least one subscriber."},
	)

	// Publishes counts publish attempts by result (accepted, rejected, throttled, failed).
	Publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_publishes_total", Help: "Publish attempts by result."},
		[]string{"result"},
	)
	// FramesDelivered counts frames written to client channels.
	FramesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chat_frames_delivered_total", Help: "Frames written to client channels."},
	)
	// FramesDropped counts frames dropped by reason (overflow, stale, closed).
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_frames_dropped_total", Help: "Frames dropped by reason."},
		[]string{"reason"},
	)

	// HistoryInserts counts messages archived to the history database.
	HistoryInserts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chat_history_inserts_total", Help: "Messages archived to the history database."},
	)
	// HistoryErrors counts failed archive flushes.
	HistoryErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chat_history_errors_total", Help: "Failed archive flushes."},
	)

	// ExchangeMessages counts messages through the exchange by direction (in, out, local).
	ExchangeMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_exchange_messages_total", Help: "Messages through the exchange by direction."},
		[]string{"direction"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all instruments plus Go and process collectors.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ConnectionsActive)
		Registry.MustRegister(ConnectionsTotal)
		Registry.MustRegister(ConnectionsSuperseded)
		Registry.MustRegister(RoomsActive)
		Registry.MustRegister(Publishes)
		Registry.MustRegister(FramesDelivered)
		Registry.MustRegister(FramesDropped)
		Registry.MustRegister(HistoryInserts)
		Registry.MustRegister(HistoryErrors)
		Registry.MustRegister(ExchangeMessages)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
