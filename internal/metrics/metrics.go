// Package metrics exposes Prometheus collectors for the capture pipeline.
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

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Location label values for stale deletions.
const (
	LocationLocal  = "local"
	LocationBucket = "bucket"
)

var (
	capturesTotal              *prometheus.CounterVec
	uploadsTotal               *prometheus.CounterVec
	staleDeletedTotal          *prometheus.CounterVec
	renderDurationSeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brochure_captures_total",
				Help: "Total number of artifact captures, labeled by variant and status.",
			},
			[]string{"variant", "status"},
		)

		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brochure_uploads_total",
				Help: "Total number of artifact uploads, labeled by variant and status.",
			},
			[]string{"variant", "status"},
		)

		staleDeletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brochure_stale_deleted_total",
				Help: "Total number of stale artifacts removed, labeled by location.",
			},
			[]string{"location"},
		)

		renderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brochure_render_duration_seconds",
				Help:    "Histogram of page render latencies, labeled by variant.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 90},
			},
			[]string{"variant"},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture counts a capture attempt.
func ObserveCapture(variant, status string) {
	capturesTotal.WithLabelValues(variant, status).Inc()
}

// ObserveUpload counts an upload attempt.
func ObserveUpload(variant, status string) {
	uploadsTotal.WithLabelValues(variant, status).Inc()
}

// ObserveStaleDeleted counts a removed stale artifact.
func ObserveStaleDeleted(location string) {
	staleDeletedTotal.WithLabelValues(location).Inc()
}

// ObserveRender records how long a render took.
func ObserveRender(variant string, duration time.Duration) {
	renderDurationSeconds.WithLabelValues(variant).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
