package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-engine/internal/metrics"
	"github.com/segyhp/loan-engine/pkg/response"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Loans    *LoanHandler
	Payments *PaymentHandler
	Health   *HealthHandler
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware)
	router.Use(response.LoggingMiddleware(cfg.Logger, observeRoute(cfg.Metrics)))

	// Health check
	if cfg.Health != nil {
		router.HandleFunc("/health", cfg.Health.Health).Methods("GET")
		router.HandleFunc("/health/ready", cfg.Health.Ready).Methods("GET")
	}
	router.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(IdentityMiddleware)

	api.HandleFunc("/loans", cfg.Loans.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}", cfg.Loans.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}/schedule", cfg.Loans.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/outstanding", cfg.Loans.GetOutstanding).Methods("GET")
	api.HandleFunc("/loans/{loanId}/delinquency", cfg.Loans.GetDelinquency).Methods("GET")
	api.HandleFunc("/loans/{loanId}/transitions", cfg.Loans.TransitionLoan).Methods("POST")
	api.HandleFunc("/repayments/{repaymentId}/penalty", cfg.Loans.ApplyPenalty).Methods("POST")

	api.HandleFunc("/loans/{loanId}/payments", cfg.Payments.SubmitPayment).Methods("POST")
	api.HandleFunc("/loans/{loanId}/payments", cfg.Payments.ListPayments).Methods("GET")
	api.HandleFunc("/payments/{paymentId}/approve", cfg.Payments.ApprovePayment).Methods("POST")
	api.HandleFunc("/payments/{paymentId}/reject", cfg.Payments.RejectPayment).Methods("POST")

	return router
}

// observeRoute records latency under the route template so ids do not
// explode the label space.
func observeRoute(m *metrics.Metrics) response.Observer {
	return func(r *http.Request, status int, elapsed time.Duration) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.ObserveHTTP(r.Method, route, status, elapsed)
	}
}
