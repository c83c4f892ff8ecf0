package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enroll_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enroll_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enroll_db_query_duration_seconds",
			Help:    "Database query latency by operation and table.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "table"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enroll_operations_total",
			Help: "Executed domain operations by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enroll_operation_duration_seconds",
			Help:    "Domain operation latency by type.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	eventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enroll_events_emitted_total",
			Help: "Domain events published by type.",
		},
		[]string{"type"},
	)
)

// Middleware collects request count and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery records one database query observation.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordOperation records the outcome and duration of one domain operation.
func RecordOperation(opType, outcome string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(opType, outcome).Inc()
	operationDuration.WithLabelValues(opType).Observe(elapsed.Seconds())
}

// RecordEvent counts one published domain event.
func RecordEvent(eventType string) {
	eventsEmittedTotal.WithLabelValues(eventType).Inc()
}
