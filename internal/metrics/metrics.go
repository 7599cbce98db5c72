package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	batchOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_operations_processed_total",
			Help: "Batch operations processed by the worker pool",
		},
		[]string{"type", "result"},
	)

	phoneCallEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phone_call_events_total",
			Help: "Provider call events ingested via the webhook endpoint",
		},
		[]string{"call_status"},
	)
)

// Middleware records request counts and latencies. The matched route
// template keeps label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry, mounted at /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// BatchOperationProcessed counts one worker run outcome: finished, failed,
// or dropped (stale delivery).
func BatchOperationProcessed(opType, result string) {
	batchOperationsTotal.WithLabelValues(opType, result).Inc()
}

// PhoneCallEvent counts one accepted webhook event by remote call status.
func PhoneCallEvent(callStatus string) {
	phoneCallEventsTotal.WithLabelValues(callStatus).Inc()
}
