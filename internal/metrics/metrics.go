// Package metrics holds the Prometheus collectors for the HTTP layer and the
// reservation and billing flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parksync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parksync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	reservationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "reservations",
		Name:      "created_total",
		Help:      "Reservations created.",
	})

	checkouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "reservations",
		Name:      "checkouts_total",
		Help:      "Reservations checked out.",
	})

	billedAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "payments",
		Name:      "billed_amount_total",
		Help:      "Sum of amounts billed at checkout, in whole currency units.",
	})

	paymentsSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "payments",
		Name:      "settled_total",
		Help:      "Payments marked as paid, by settlement method.",
	}, []string{"method"})

	reportItemFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "reports",
		Name:      "item_failures_total",
		Help:      "Items skipped while computing report aggregates.",
	}, []string{"aggregate"})

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parksync",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Scheduled job runs.",
	}, []string{"job", "success"})
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		reservationsCreated,
		checkouts,
		billedAmount,
		paymentsSettled,
		reportItemFailures,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by the mux route
// template, so /api/lots/{id}/book stays one series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func ReservationCreated() { reservationsCreated.Inc() }

func CheckedOut(amount int64) {
	checkouts.Inc()
	billedAmount.Add(float64(amount))
}

func PaymentSettled(method string) { paymentsSettled.WithLabelValues(method).Inc() }

func ReportItemFailures(aggregate string, n int) {
	if n > 0 {
		reportItemFailures.WithLabelValues(aggregate).Add(float64(n))
	}
}

func JobRun(job string, err error) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}
