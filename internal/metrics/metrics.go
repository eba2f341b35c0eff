// Package metrics provides Prometheus instrumentation for the wheel backtester.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BacktestsTotal counts finished runs by outcome (ok, empty_schedule, invalid_config, no_data, error).
	BacktestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheel_backtests_total",
		Help: "Total number of wheel backtests run",
	}, []string{"outcome"})

	// BacktestDuration tracks wall time of a run, including data fetches.
	BacktestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wheel_backtest_duration_seconds",
		Help:    "Wheel backtest duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// LedgerActions counts recorded ledger entries by action kind.
	LedgerActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheel_ledger_actions_total",
		Help: "Ledger actions recorded, by kind",
	}, []string{"kind"})

	// PremiumLookups counts premium answers by source (quote or model).
	PremiumLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheel_premium_lookups_total",
		Help: "Option premium lookups, by answering source",
	}, []string{"source"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheel_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wheel_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the label to avoid high cardinality.
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
