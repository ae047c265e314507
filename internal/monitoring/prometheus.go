// Package monitoring exposes Prometheus instrumentation for the HTTP
// boundary and the simulation core.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance carries its own
// registry so independent servers and tests never collide on
// registration.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec

	backtestRuns         *prometheus.CounterVec
	backtestDuration     prometheus.Histogram
	optimizationRuns     *prometheus.CounterVec
	optimizationDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		apiErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"endpoint", "error_type"},
		),
		backtestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backtest_run_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		optimizationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimization_runs_total",
				Help: "Total number of optimization runs",
			},
			[]string{"method", "status"},
		),
		optimizationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optimization_run_duration_seconds",
				Help:    "Optimization run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.apiErrorsTotal,
		m.backtestRuns,
		m.backtestDuration,
		m.optimizationRuns,
		m.optimizationDuration,
	)
	return m
}

// Middleware creates a Prometheus metrics middleware.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			m.apiErrorsTotal.WithLabelValues(path, errorType).Inc()
		}
	}
}

// Handler returns the metrics exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBacktest records one backtest run.
func (m *Metrics) RecordBacktest(status string, duration time.Duration) {
	m.backtestRuns.WithLabelValues(status).Inc()
	m.backtestDuration.Observe(duration.Seconds())
}

// RecordOptimization records one optimization run.
func (m *Metrics) RecordOptimization(method, status string, duration time.Duration) {
	m.optimizationRuns.WithLabelValues(method, status).Inc()
	m.optimizationDuration.Observe(duration.Seconds())
}
