// Package metrics exposes Prometheus instrumentation for the web client and its backend calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageRequests counts HTTP requests served by the web client.
	PageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sra_web_requests_total",
			Help: "Total number of HTTP requests served by the web client",
		},
		[]string{"method", "route", "status"},
	)

	// PageDuration observes request latency.
	PageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sra_web_request_duration_seconds",
			Help:    "Duration of web client HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BackendCalls counts calls to the recommendation backend by operation and outcome.
	BackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sra_backend_calls_total",
			Help: "Total number of calls to the recommendation backend",
		},
		[]string{"operation", "outcome"}, // outcome: success, client_error, server_error, transport_error, canceled, rejected
	)

	// BackendDuration observes backend call latency.
	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sra_backend_call_duration_seconds",
			Help:    "Duration of recommendation backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CircuitBreakerState reports the backend breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sra_backend_circuit_breaker_state",
			Help: "Circuit breaker state for the recommendation backend",
		},
		[]string{"name"},
	)

	// RecommendationsShown observes how many cards a recommendations page displayed.
	RecommendationsShown = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sra_recommendations_shown",
			Help:    "Number of recommendation cards rendered per request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)
)

// RecordRequest records a served HTTP request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	PageRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	PageDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBackendCall records a backend call.
func RecordBackendCall(operation, outcome string, duration time.Duration) {
	BackendCalls.WithLabelValues(operation, outcome).Inc()
	BackendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
