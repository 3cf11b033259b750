package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics.
var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Permission evaluator decisions by resource, action and outcome.",
		},
		[]string{"resource", "action", "outcome"},
	)

	limiterDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limiter_denials_total",
			Help: "Attempts denied by the access limiter, by policy.",
		},
		[]string{"policy"},
	)

	tokenOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_token_outcomes_total",
			Help: "Validation token confirmations by outcome.",
		},
		[]string{"outcome"},
	)

	sweepRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_rows_total",
			Help: "Rows affected by retention sweep tasks.",
		},
		[]string{"task"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisions, limiterDenials, tokenOutcomes, sweepRows,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthzDecision records one evaluator decision.
func AuthzDecision(resource, action string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	authzDecisions.WithLabelValues(resource, action, outcome).Inc()
}

// LimiterDenied records one limiter denial for the named policy.
func LimiterDenied(policy string) {
	limiterDenials.WithLabelValues(policy).Inc()
}

// TokenOutcome records a token confirmation outcome: confirmed, expired or
// rejected.
func TokenOutcome(outcome string) {
	tokenOutcomes.WithLabelValues(outcome).Inc()
}

// SweepRows records rows affected by a retention sweep task.
func SweepRows(task string, n int64) {
	if n > 0 {
		sweepRows.WithLabelValues(task).Add(float64(n))
	}
}

// Instrument wraps a handler with request counting, latency and in-flight
// tracking.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		path := CanonicalPath(r.URL.Path)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
