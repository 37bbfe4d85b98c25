package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics collects Prometheus series for every request this Handler
// serves, registered once per Handler instance so running more than one
// in the same process (as the test suite does) never double-registers a
// collector under the same name.
type httpMetrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newHTTPMetrics(reg *prometheus.Registry) *httpMetrics {
	factory := promauto.With(reg)
	return &httpMetrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "starstream",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "starstream",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "path"},
		)}
}

// middleware times every request and tags it with the matched route
// template (not the raw path, so "/v1/transactions/:id" stays one series
// regardless of which id was requested).
func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(method, path, status).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

func healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// newRegistry returns a fresh Prometheus registry rather than the global
// DefaultRegisterer, so that constructing more than one Handler in the
// same process (every table-driven test in this package does) never
// panics on a duplicate collector registration.
func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
