// Package metrics exposes Prometheus collectors for the watcher.
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

// Notification kinds.
const (
	KindStatus = "status"
	KindError  = "error"
)

// Notification results.
const (
	ResultSent       = "sent"
	ResultFailed     = "failed"
	ResultSuppressed = "suppressed"
)

var (
	invocationsTotal           *prometheus.CounterVec
	invocationDurationSeconds  prometheus.Histogram
	failuresTotal              *prometheus.CounterVec
	itemsTotal                 *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		invocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_invocations_total",
				Help: "Total number of polling invocations, labeled by the last stage reached.",
			},
			[]string{"stage"},
		)

		invocationDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "watcher_invocation_duration_seconds",
				Help:    "Histogram of polling invocation latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		failuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_failures_total",
				Help: "Total number of failed invocations, labeled by error kind.",
			},
			[]string{"kind"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_items_total",
				Help: "Total number of homework items inspected, labeled by verdict.",
			},
			[]string{"verdict"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_notifications_total",
				Help: "Total number of notifications, labeled by kind and result.",
			},
			[]string{"kind", "result"},
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

// ObserveInvocation records one finished invocation.
func ObserveInvocation(stage string, duration time.Duration) {
	Init()
	invocationsTotal.WithLabelValues(stage).Inc()
	invocationDurationSeconds.Observe(duration.Seconds())
}

// ObserveFailure increments the failure counter for an error kind.
func ObserveFailure(kind string) {
	Init()
	failuresTotal.WithLabelValues(kind).Inc()
}

// ObserveItem increments the item counter for a verdict.
func ObserveItem(verdict string) {
	Init()
	itemsTotal.WithLabelValues(verdict).Inc()
}

// ObserveNotification increments the notification counter.
func ObserveNotification(kind, result string) {
	Init()
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
