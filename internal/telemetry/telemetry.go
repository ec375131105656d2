// Package telemetry exposes Prometheus collectors for the notifier service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	openEventsTotal            *prometheus.CounterVec
	duplicatesSuppressedTotal  *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	pollCyclesTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		openEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_open_events_total",
				Help: "Total number of open events received, labeled by source.",
			},
			[]string{"source"},
		)

		duplicatesSuppressedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_duplicates_suppressed_total",
				Help: "Total number of duplicate events suppressed, labeled by stage.",
			},
			[]string{"stage"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_notifications_total",
				Help: "Total number of Discord notifications attempted, labeled by status.",
			},
			[]string{"status"},
		)

		pollCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_poll_cycles_total",
				Help: "Total number of CRM poll cycles, labeled by status.",
			},
			[]string{"status"},
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

// ObserveOpenEvent counts an open event arriving from a source
// ("webhook" or "poller").
func ObserveOpenEvent(source string) {
	openEventsTotal.WithLabelValues(source).Inc()
}

// ObserveDuplicateSuppressed counts a duplicate caught at a stage
// ("cache" or "database").
func ObserveDuplicateSuppressed(stage string) {
	duplicatesSuppressedTotal.WithLabelValues(stage).Inc()
}

// ObserveNotification counts a notification attempt outcome
// ("sent" or "failed").
func ObserveNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// ObservePollCycle counts a poll cycle outcome ("success" or "error").
func ObservePollCycle(status string) {
	pollCyclesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
