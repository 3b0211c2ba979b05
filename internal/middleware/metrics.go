// metrics.go instruments HTTP traffic for Prometheus. Request counts and
// latency are labeled by method, route, and status; the route label uses
// the Echo route pattern (/api/articles/:id), never the raw path, to keep
// cardinality bounded.
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Metrics returns middleware that records request count and latency for
// every handled request.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			elapsed := time.Since(start).Seconds()

			httpRequestDuration.WithLabelValues(c.Request().Method, route, status).Observe(elapsed)
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, status).Inc()

			return err
		}
	}
}
