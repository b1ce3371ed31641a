package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events published",
		},
		[]string{"topic", "status"}, // status: success, failed
	)

	ContractTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_transitions_total",
			Help: "Total number of contract lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	SSEConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections",
			Help: "Number of currently open SSE streams",
		},
	)
)

// RecordHTTPRequestDuration records one request's latency.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration records one query's latency.
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementOutboxPublished counts one outbox publish attempt.
func IncrementOutboxPublished(topic, status string) {
	OutboxPublished.WithLabelValues(topic, status).Inc()
}

// IncrementContractTransition counts one lifecycle operation.
func IncrementContractTransition(operation, status string) {
	ContractTransitions.WithLabelValues(operation, status).Inc()
}
