package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airship_atc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airship_atc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airship_atc_http_rate_limited_total",
			Help: "Total number of HTTP requests rejected by the rate limiter",
		},
	)

	// WebSocket
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airship_atc_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airship_atc_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	// Simulation
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airship_atc_tick_duration_seconds",
			Help:    "Duration of one simulation tick in seconds",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	ActiveAirships = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airship_atc_airships_active",
			Help: "Number of airships by simulation mode",
		},
		[]string{"mode"}, // loaded, simulated
	)

	// Avoidance
	ModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airship_atc_avoidance_transitions_total",
			Help: "Total number of avoidance mode transitions by target mode",
		},
		[]string{"mode"},
	)

	StuckEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airship_atc_stuck_events_total",
			Help: "Total number of times an airship was detected stuck",
		},
	)

	OverrideUnavailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airship_atc_speed_override_unavailable_total",
			Help: "Total number of evaluations where the speed override could not be read",
		},
	)

	PilotsIdle = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airship_atc_pilots_idle_total",
			Help: "Total number of pilots that stopped because of a route error",
		},
	)

	// Docking
	DocksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airship_atc_docks_total",
			Help: "Total number of completed docks by site",
		},
		[]string{"site"},
	)

	DockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airship_atc_dock_wait_seconds",
			Help:    "Time airships wait at a dock including hold and slowdown penalties",
			Buckets: []float64{30, 60, 90, 120, 150, 180, 240, 300, 420},
		},
	)

	// Storage
	StorageWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airship_atc_storage_write_errors_total",
			Help: "Total number of failed event writes",
		},
		[]string{"table"},
	)
)
