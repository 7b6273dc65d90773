package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatapp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Presence metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_online_users",
			Help: "Users currently reachable",
		},
	)

	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_connections",
			Help: "Open client connections",
		},
	)

	// Message lifecycle metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_sent_total",
			Help: "Total messages created",
		},
	)

	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_delivered_total",
			Help: "Total sent-to-delivered transitions",
		},
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_read_total",
			Help: "Total read acknowledgments",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_deleted_total",
			Help: "Total soft deletions (global and local)",
		},
	)

	MessagesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_purged_total",
			Help: "Total messages permanently purged",
		},
	)

	MediaReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_media_release_failures_total",
			Help: "Total best-effort media releases that failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
