package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the review state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment is one settlement event. It stays pending until an officer
// approves or rejects it; only approval touches loan balances.
type Payment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	LoanID          uuid.UUID       `json:"loan_id" db:"loan_id"`
	BorrowerID      string          `json:"borrower_id" db:"borrower_id"`
	RepaymentID     uuid.NullUUID   `json:"repayment_id" db:"repayment_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PenaltyAmount   decimal.Decimal `json:"penalty_amount" db:"penalty_amount"`
	Status          PaymentStatus   `json:"status" db:"status"`
	PaidAt          time.Time       `json:"paid_at" db:"paid_at"`
	SubmittedBy     string          `json:"submitted_by" db:"submitted_by"`
	ApprovedBy      string          `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	RejectionReason string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the payment still awaits review.
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// SubmitPaymentCommand records an incoming payment for review.
type SubmitPaymentCommand struct {
	LoanID      uuid.UUID       `json:"loan_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_places=2"`
	RepaymentID *uuid.UUID      `json:"repayment_id,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

type ApprovePaymentCommand struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
}

type RejectPaymentCommand struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// PaymentResult is returned by approve/reject.
type PaymentResult struct {
	Payment     *Payment        `json:"payment"`
	Loan        *Loan           `json:"loan"`
	Allocations []Allocation    `json:"allocations,omitempty"`
	Outstanding decimal.Decimal `json:"outstanding"`
	// PenaltyAccrued is the penalty newly booked by this approval.
	PenaltyAccrued decimal.Decimal `json:"penalty_accrued"`
	LoanClosed     bool            `json:"loan_closed"`
}
