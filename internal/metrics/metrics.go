// Package metrics exposes Prometheus collectors for the capture gateway.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream call outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamRequestsTotal      *prometheus.CounterVec
	upstreamDurationSeconds    prometheus.Histogram
	validationFailuresTotal    *prometheus.CounterVec
	relayedBytesTotal          *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route"},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_requests_total",
				Help: "Total number of capture calls to the renderer, labeled by outcome and status code.",
			},
			[]string{"outcome", "code"},
		)

		upstreamDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Time until the renderer returned response headers.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		)

		validationFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_validation_failures_total",
				Help: "Total number of rejected capture parameters, labeled by field.",
			},
			[]string{"field"},
		)

		relayedBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_relayed_bytes_total",
				Help: "Total number of image bytes streamed to callers, labeled by format.",
			},
			[]string{"format"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveUpstream records a renderer call. code is 0 when no response arrived.
func ObserveUpstream(outcome string, code int, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(outcome, strconv.Itoa(code)).Inc()
	upstreamDurationSeconds.Observe(duration.Seconds())
}

// ObserveValidationFailure counts a rejected field.
func ObserveValidationFailure(field string) {
	validationFailuresTotal.WithLabelValues(field).Inc()
}

// ObserveRelayedBytes adds to the streamed byte count for format.
func ObserveRelayedBytes(format string, n int64) {
	if n > 0 {
		relayedBytesTotal.WithLabelValues(format).Add(float64(n))
	}
}
