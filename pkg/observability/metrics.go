package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Role transitions
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec

	// Guard
	GuardDecisionsTotal *prometheus.CounterVec
	GuardCacheHitsTotal prometheus.Counter

	// Notices
	NoticesPublished *prometheus.CounterVec

	// Database pool
	DBConnectionsOpen   prometheus.Gauge
	DBConnectionsInUse  prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBConnectionsWaited prometheus.Gauge

	// Jobs
	JobRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetup_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetup_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetup_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetup_role_transitions_total",
				Help: "Role transitions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		TransitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetup_role_transition_duration_seconds",
				Help:    "Role transition duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetup_guard_decisions_total",
				Help: "Capability checks by capability and decision",
			},
			[]string{"capability", "decision"},
		),
		GuardCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "meetup_guard_cache_hits_total",
				Help: "Capability checks answered from cache",
			},
		),

		NoticesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetup_notices_published_total",
				Help: "Notices handed to the delivery worker",
			},
			[]string{"type", "result"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetup_db_connections_open",
			Help: "Open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetup_db_connections_in_use",
			Help: "Database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetup_db_connections_idle",
			Help: "Idle database connections",
		}),
		DBConnectionsWaited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetup_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),

		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetup_job_runs_total",
				Help: "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.TransitionsTotal,
		m.TransitionDuration,
		m.GuardDecisionsTotal,
		m.GuardCacheHitsTotal,
		m.NoticesPublished,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaited,
		m.JobRunsTotal,
	)

	return m
}

// RecordTransition counts a role transition and its duration
func (m *Metrics) RecordTransition(operation, outcome string, duration time.Duration) {
	m.TransitionsTotal.WithLabelValues(operation, outcome).Inc()
	m.TransitionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordGuardDecision counts a capability check
func (m *Metrics) RecordGuardDecision(capability string, allowed, cached bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.GuardDecisionsTotal.WithLabelValues(capability, decision).Inc()
	if cached {
		m.GuardCacheHitsTotal.Inc()
	}
}

// RecordNotice counts a publish attempt
func (m *Metrics) RecordNotice(noticeType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.NoticesPublished.WithLabelValues(noticeType, result).Inc()
}

// RecordJobRun counts a scheduled job run
func (m *Metrics) RecordJobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, result).Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaited.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched mux route template so that slugs and
// usernames do not become label values
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with Router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
