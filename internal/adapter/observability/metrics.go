package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_completed_total",
			Help: "Total number of jobs that reached completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_failed_total",
			Help: "Total number of jobs that reached error",
		},
		[]string{"type"},
	)
	JobsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_jobs_reaped_total",
			Help: "Total number of stale jobs timed out by the reaper",
		},
	)

	QuotaUnitsUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "youtube_quota_units_used",
			Help: "YouTube Data API units used today",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total provider API calls by provider and operation",
		},
		[]string{"provider", "operation"},
	)
)

// InitMetrics registers all collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsReapedTotal)
	prometheus.MustRegister(QuotaUnitsUsed)
	prometheus.MustRegister(ProviderCallsTotal)
}

// EnqueueJob increments the enqueued counter for a job type.
func EnqueueJob(jobType string) { JobsEnqueuedTotal.WithLabelValues(jobType).Inc() }

// CompleteJob increments the completed counter for a job type.
func CompleteJob(jobType string) { JobsCompletedTotal.WithLabelValues(jobType).Inc() }

// FailJob increments the failed counter for a job type.
func FailJob(jobType string) { JobsFailedTotal.WithLabelValues(jobType).Inc() }

// ProviderCall counts one outbound provider API call.
func ProviderCall(provider, operation string) {
	ProviderCallsTotal.WithLabelValues(provider, operation).Inc()
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
