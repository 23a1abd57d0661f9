package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	deploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_deployments_total",
			Help: "Total number of token deployment runs by result",
		},
		[]string{"result"},
	)

	deploymentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launchpad_deployment_duration_seconds",
			Help:    "End-to-end token deployment duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	stepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_step_failures_total",
			Help: "Fatal pipeline step failures by stage",
		},
		[]string{"stage"},
	)
)

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}
			path := normalizePath(r)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths to prevent cardinality explosion.
func normalizePath(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}

// RecordDeployment records a finished pipeline run.
// Call this from the deploy handler once the outcome is known.
func RecordDeployment(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	deploymentsTotal.WithLabelValues(result).Inc()
	deploymentDuration.Observe(duration.Seconds())
}

// RecordStepFailure records a fatal failure at a named pipeline stage.
func RecordStepFailure(stage string) {
	stepFailuresTotal.WithLabelValues(stage).Inc()
}
