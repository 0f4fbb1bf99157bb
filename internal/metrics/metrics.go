// Package metrics exposes process-wide Prometheus collectors for the ingestor:
// upstream catalog requests, client-side throttling, active workers and the
// ops HTTP server.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequestsTotal        *prometheus.CounterVec
	upstreamBytesTotal           *prometheus.CounterVec
	upstreamRequestDuration      *prometheus.HistogramVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	activeWorkers                prometheus.Gauge
	rateLimitDelaysSeconds       *prometheus.HistogramVec
	categoryPersistFailuresTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once; the Observe helpers call it implicitly.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_upstream_requests_total",
				Help: "Requests sent to the catalog API, labeled by host and status code.",
			},
			[]string{"host", "code"},
		)

		upstreamBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_upstream_bytes_total",
				Help: "Response bytes read from the catalog API, labeled by host.",
			},
			[]string{"host"},
		)

		upstreamRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_upstream_request_duration_seconds",
				Help:    "Catalog API round-trip latency, labeled by host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of ops HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of ops HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingestor_active_workers",
				Help: "Number of workers currently draining a category.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_rate_limit_delays_seconds",
				Help:    "Histogram of client-side rate limit waits, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		categoryPersistFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingestor_category_persist_failures_total",
				Help: "Category batches rejected by the store.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from rawURL, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one catalog API round trip. A zero code means the
// request failed before a response arrived.
func ObserveUpstream(host string, code int, bytesRead int, duration time.Duration) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamRequestsTotal.WithLabelValues(host, label).Inc()
	if bytesRead > 0 {
		upstreamBytesTotal.WithLabelValues(host).Add(float64(bytesRead))
	}
	upstreamRequestDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one ops server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObservePersistFailure counts a category batch the store rejected.
func ObservePersistFailure() {
	Init()
	categoryPersistFailuresTotal.Inc()
}
