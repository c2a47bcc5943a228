package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// Business metrics
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_messages_created_total",
			Help: "Total messages created",
		},
		[]string{"sender_role"},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_messages_deleted_total",
			Help: "Total messages deleted by staff",
		},
	)

	// Fan-out metrics
	FanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_fanout_failures_total",
			Help: "Realtime publishes that failed or timed out",
		},
		[]string{"event"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_chat_websocket_connections",
			Help: "Currently open websocket connections",
		},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_slow_consumers_dropped_total",
			Help: "Websocket clients dropped because their send queue was full",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_rate_limit_hits_total",
			Help: "Total rate limit rejections",
		},
		[]string{"scope"},
	)
)
