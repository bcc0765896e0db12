package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/service"
	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/response"
)

// LoanService is the loan side of the engine as used by the HTTP layer.
type LoanService interface {
	CreateLoan(ctx context.Context, cmd *domain.CreateLoanCommand) (*domain.CreateLoanResponse, error)
	TransitionLoan(ctx context.Context, cmd *domain.TransitionLoanCommand) (*domain.Loan, error)
	ApplyPenalty(ctx context.Context, cmd *domain.ApplyPenaltyCommand) (*domain.PenaltyResult, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID) (*domain.ScheduleResponse, error)
	GetOutstanding(ctx context.Context, loanID uuid.UUID) (*domain.OutstandingResponse, error)
	GetDelinquency(ctx context.Context, loanID uuid.UUID) (*domain.DelinquencyStatus, error)
}

// PaymentService is the payment workflow as used by the HTTP layer.
type PaymentService interface {
	SubmitPayment(ctx context.Context, cmd *domain.SubmitPaymentCommand) (*domain.Payment, error)
	ApprovePayment(ctx context.Context, cmd *domain.ApprovePaymentCommand) (*domain.PaymentResult, error)
	RejectPayment(ctx context.Context, cmd *domain.RejectPaymentCommand) (*domain.Payment, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)
}

var (
	_ LoanService    = (*service.LoanService)(nil)
	_ PaymentService = (*service.PaymentService)(nil)
)

// UserHeader carries the acting user id.
const UserHeader = "X-User-ID"

// IdentityMiddleware attaches the acting user from UserHeader to the request
// context. Requests without it reach the services anonymously, which reject
// writes as unauthenticated.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get(UserHeader); user != "" {
			r = r.WithContext(service.WithIdentity(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, customError.WrapFieldError(name, "must be a valid UUID")
	}
	return id, nil
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return customError.WrapFieldError("body", "Invalid JSON payload")
}

// fail writes err and records business rejections at debug level; server
// errors are logged by response.FromError.
func fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if code := customError.CodeOf(err); code != "" && response.StatusFor(code) < http.StatusInternalServerError {
		logger.DebugContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	response.FromError(w, err)
}
