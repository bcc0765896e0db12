package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	LoansCreated      prometheus.Counter
	Transitions       *prometheus.CounterVec
	PaymentsSubmitted prometheus.Counter
	PaymentsReviewed  *prometheus.CounterVec
	AmountApproved    prometheus.Counter
	PenaltiesAccrued  prometheus.Counter
	LoansClosed       prometheus.Counter
	Notifications     *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		LoansCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "loans_created_total",
			Help: "Loan applications created.",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "loan_transitions_total",
			Help: "Loan status transitions by target status.",
		}, []string{"to"}),
		PaymentsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "payments_submitted_total",
			Help: "Payments recorded as pending.",
		}),
		PaymentsReviewed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "payments_reviewed_total",
			Help: "Payment reviews by outcome.",
		}, []string{"outcome"}),
		AmountApproved: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "payment_amount_approved_total",
			Help: "Sum of approved payment amounts.",
		}),
		PenaltiesAccrued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "penalties_accrued_total",
			Help: "Sum of penalty amounts booked on installments.",
		}),
		LoansClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "loans_closed_total",
			Help: "Loans closed by full settlement.",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loan_engine", Name: "notifications_total",
			Help: "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loan_engine", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
