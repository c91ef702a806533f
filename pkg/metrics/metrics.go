// Package metrics provides Prometheus instrumentation for the inference function.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the "status" label.
const (
	StatusSuccess      = "success"
	StatusCacheHit     = "cache_hit"
	StatusInvalid      = "invalid_request"
	StatusServiceError = "service_error"
	StatusInternal     = "internal_error"
)

var (
	// RequestLatency tracks end-to-end handler latency in seconds.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bedrock_request_latency_seconds",
			Help:    "End-to-end request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	// TokenUsageTotal tracks tokens reported by the model.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_token_usage_total",
			Help: "Total number of tokens reported by the model.",
		},
		[]string{"model", "direction"}, // direction: "input" or "output"
	)

	// RequestsTotal tracks handled requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_requests_total",
			Help: "Total number of requests by status.",
		},
		[]string{"status"},
	)

	// ServiceErrorsTotal tracks service-reported failures by vendor error code.
	ServiceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_service_errors_total",
			Help: "Total number of errors reported by the inference service, by error code.",
		},
		[]string{"code"},
	)

	// CacheLookupsTotal tracks response cache lookups by result.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_cache_lookups_total",
			Help: "Total number of response cache lookups.",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	// ActiveRequests tracks the number of currently in-flight requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bedrock_active_requests",
			Help: "Number of currently in-flight requests.",
		},
	)
)

// RecordTokens adds the reported input and output token counts.
func RecordTokens(model string, input, output float64) {
	if input > 0 {
		TokenUsageTotal.WithLabelValues(model, "input").Add(input)
	}
	if output > 0 {
		TokenUsageTotal.WithLabelValues(model, "output").Add(output)
	}
}
