package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
)

var (
	bhulekhAnchorsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bhulekh_anchors_accepted_total",
		Help: "Total anchors accepted into the journal.",
	})

	bhulekhAnchorsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhulekh_anchors_rejected_total",
		Help: "Total rejected anchor submissions by reason.",
	}, []string{"reason"})

	bhulekhAnchorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bhulekh_anchor_count",
		Help: "Current total anchor count (the contract's summary index).",
	})

	bhulekhRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhulekh_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	bhulekhRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bhulekh_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		bhulekhRequestsTotal.WithLabelValues(method, path, status).Inc()
		bhulekhRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAnchorAccepted records an accepted anchor submission.
func RecordAnchorAccepted() {
	bhulekhAnchorsAccepted.Inc()
	bhulekhAnchorCount.Inc()
}

// RecordAnchorRejected records a rejected anchor submission by reason.
func RecordAnchorRejected(err error) {
	reason := "internal"
	switch {
	case errors.Is(err, anchorlog.ErrUnauthorized):
		reason = "unauthorized"
	case errors.Is(err, anchorlog.ErrInvalidBlockRange):
		reason = "invalid_block_range"
	case errors.Is(err, anchorlog.ErrEmptyStateRoot):
		reason = "empty_state_root"
	}
	bhulekhAnchorsRejected.WithLabelValues(reason).Inc()
}

// SetAnchorCountGauge seeds the anchor count gauge at startup.
func SetAnchorCountGauge(count uint64) {
	bhulekhAnchorCount.Set(float64(count))
}
