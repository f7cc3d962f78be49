// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for harvesterBooksTotal.
const (
	OutcomeResolved = "resolved"
	OutcomeSkipped  = "skipped"
)

var (
	harvesterBooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_books_total",
			Help: "Total number of identifiers processed, labeled by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	harvesterFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Histogram of detail page fetch latencies, labeled by HTTP status class.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"status"},
	)

	harvesterBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_bytes_total",
			Help: "Total number of page bytes fetched.",
		},
	)

	harvesterThrottleDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_throttle_delay_seconds",
			Help:    "Histogram of pre-request delays (jitter plus rate ceiling waits).",
			Buckets: []float64{0.5, 1, 2, 3, 4, 5, 10},
		},
	)

	harvesterRecordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_written_total",
			Help: "Total number of records persisted, labeled by sink.",
		},
		[]string{"sink"},
	)

	harvesterWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_write_errors_total",
			Help: "Total number of failed record writes, labeled by sink.",
		},
		[]string{"sink"},
	)

	harvesterActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_active_workers",
			Help: "Number of workers currently fetching or resolving an identifier.",
		},
	)

	harvesterCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_cursor",
			Help: "Next identifier the orchestrator will dispatch.",
		},
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass groups HTTP status codes ("2xx", "4xx", ...). Zero means no response.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "none"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveOutcome counts one processed identifier.
func ObserveOutcome(outcome, reason string) {
	harvesterBooksTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveFetch records a completed fetch attempt.
func ObserveFetch(statusCode int, bytesFetched int, duration time.Duration) {
	harvesterFetchDurationSeconds.WithLabelValues(StatusClass(statusCode)).Observe(duration.Seconds())
	if bytesFetched > 0 {
		harvesterBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveThrottleDelay records how long a worker slept before a request.
func ObserveThrottleDelay(d time.Duration) {
	harvesterThrottleDelaySeconds.Observe(d.Seconds())
}

// ObserveWrite counts a record write attempt for sink.
func ObserveWrite(sink string, err error) {
	if err != nil {
		harvesterWriteErrorsTotal.WithLabelValues(sink).Inc()
		return
	}
	harvesterRecordsWrittenTotal.WithLabelValues(sink).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvesterActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvesterActiveWorkers.Dec()
}

// SetCursor publishes the next identifier to dispatch.
func SetCursor(next int64) {
	harvesterCursor.Set(float64(next))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
