package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a borrower notification.
type Kind string

const (
	KindLoanCreated       Kind = "loan_created"
	KindLoanStatusChanged Kind = "loan_status_changed"
	KindPaymentApproved   Kind = "payment_approved"
	KindPaymentRejected   Kind = "payment_rejected"
	KindLoanClosed        Kind = "loan_closed"
	KindPenaltyApplied    Kind = "penalty_applied"
	KindPaymentDue        Kind = "payment_due"
)

// Notification is a message addressed to a borrower.
type Notification struct {
	ID         uuid.UUID         `json:"id"`
	BorrowerID string            `json:"borrower_id"`
	Kind       Kind              `json:"kind"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	LoanID     uuid.UUID         `json:"loan_id"`
	Data       map[string]string `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Emitter delivers notifications. Delivery is best effort; callers log
// failures and carry on.
type Emitter interface {
	Notify(ctx context.Context, n Notification) error
}

// LogEmitter writes notifications to the structured log.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Notify(ctx context.Context, n Notification) error {
	e.logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"borrower_id", n.BorrowerID,
		"loan_id", n.LoanID,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}

// Fanout delivers to every emitter and joins their errors.
type Fanout []Emitter

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, e := range f {
		if err := e.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
