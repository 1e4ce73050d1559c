// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Metrics()
// measures request counts, latencies, in-flight concurrency, and response
// sizes with bounded label cardinality:
//
//   - method: HTTP verb (GET/POST/...)
//   - path:   the registered Gin route (e.g. /api/v1/redirects/bulk); falls
//     back to the raw URL path when no route matched
//   - status: numeric status code as a string ("200", "404")
//
// The miss-report endpoint dominates traffic by orders of magnitude, so the
// route label (rather than the raw URL, which embeds arbitrary broken paths)
// is what keeps these series usable. All collectors are safe for concurrent
// use; the resolver's per-outcome counter lives in the services package.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of requests currently being processed.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize captures response sizes in bytes by method and route path.
	// Buckets cover the API's spread: tiny resolution decisions at the low
	// end, paginated rule and broken-link listings at the top.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				100, 250, 500, 1 << 10, // resolution decisions
				4 << 10, 16 << 10, 64 << 10, // settings, summaries
				256 << 10, 1 << 20, // full listing pages
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// Per request it increments http_requests_total, observes
// http_request_duration_seconds and http_response_size_bytes, and tracks the
// http_requests_inflight gauge for the duration of handler execution. A
// negative response size (nothing written) is skipped rather than recorded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())
		size := c.Writer.Size() // -1 when unknown

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
		if size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
