// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BillsGenerated counts bills created per type and trigger
	BillsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_bills_generated_total",
			Help: "Total number of bills created by billing runs",
		},
		[]string{"type", "trigger"},
	)

	// BillsSkipped counts flats skipped because they were already billed
	BillsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_bills_skipped_total",
			Help: "Total number of flats skipped by billing runs because a bill already existed",
		},
		[]string{"type", "trigger"},
	)

	// BillingRuns counts billing runs by outcome
	BillingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_billing_runs_total",
			Help: "Total number of billing runs",
		},
		[]string{"type", "trigger", "status"},
	)

	// RentMarkedOverdue counts rent bills flipped to overdue
	RentMarkedOverdue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "society_rent_marked_overdue_total",
		Help: "Total number of rent bills marked overdue",
	})

	// PaymentsRecorded counts paid bills per type
	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_payments_recorded_total",
			Help: "Total number of bills marked paid",
		},
		[]string{"type"},
	)

	// TransfersReviewed counts ownership request reviews by decision
	TransfersReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_ownership_transfers_reviewed_total",
			Help: "Total number of reviewed ownership transfer requests",
		},
		[]string{"decision"},
	)

	// NotificationsFailed counts best-effort notifications that could not be sent
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "society_notifications_failed_total",
		Help: "Total number of notifications that failed to send",
	})

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "society_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "society_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
