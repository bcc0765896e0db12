package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle stage of a loan.
type LoanStatus string

const (
	LoanStatusNewApplication LoanStatus = "new_application"
	LoanStatusUnderReview    LoanStatus = "under_review"
	LoanStatusApproved       LoanStatus = "approved"
	LoanStatusForRelease     LoanStatus = "for_release"
	LoanStatusDisbursed      LoanStatus = "disbursed"
	LoanStatusClosed         LoanStatus = "closed"
	LoanStatusRestructured   LoanStatus = "restructured"
	LoanStatusRejected       LoanStatus = "rejected"
	LoanStatusCancelled      LoanStatus = "cancelled"
)

// Loan represents a loan entity
type Loan struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Reference          string          `json:"reference" db:"reference"`
	BorrowerID         string          `json:"borrower_id" db:"borrower_id"`
	BorrowerName       string          `json:"borrower_name" db:"borrower_name"`
	PrincipalAmount    decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"` // annual, as a fraction (0.24)
	TenorMonths        int             `json:"tenor_months" db:"tenor_months"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment" db:"monthly_installment"`
	ApplicationDate    time.Time       `json:"application_date" db:"application_date"`
	MaturityDate       time.Time       `json:"maturity_date" db:"maturity_date"`
	ReleaseDate        *time.Time      `json:"release_date,omitempty" db:"release_date"`
	Status             LoanStatus      `json:"status" db:"status"`
	TotalDisbursed     decimal.Decimal `json:"total_disbursed" db:"total_disbursed"`
	TotalPaid          decimal.Decimal `json:"total_paid" db:"total_paid"`
	TotalPenalties     decimal.Decimal `json:"total_penalties" db:"total_penalties"`
	IsActive           bool            `json:"is_active" db:"is_active"`
	PenaltyGraceDays   int             `json:"penalty_grace_days" db:"penalty_grace_days"`
	PenaltyDailyRate   decimal.Decimal `json:"penalty_daily_rate" db:"penalty_daily_rate"`
	CreatedBy          string          `json:"created_by" db:"created_by"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// NewLoanReference builds the human reference code, e.g. LN-20240115-3F9A1C.
func NewLoanReference(applicationDate time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	return fmt.Sprintf("LN-%s-%s", applicationDate.Format("20060102"), suffix)
}

// Borrower is the snapshot of a borrower returned by the borrower directory.
type Borrower struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`
}

// DTOs for requests and responses

// CreateLoanCommand opens a new loan application. InterestRate is the annual
// rate as a percentage (24 means 24%).
type CreateLoanCommand struct {
	BorrowerID       string           `json:"borrower_id" validate:"required,max=64"`
	PrincipalAmount  decimal.Decimal  `json:"principal_amount" validate:"decimal_gt=0,decimal_places=2"`
	InterestRate     decimal.Decimal  `json:"interest_rate" validate:"decimal_gte=0,decimal_lte=100,decimal_places=4"`
	TenorMonths      int              `json:"tenor_months" validate:"required,oneof=6 12 36"`
	ApplicationDate  time.Time        `json:"application_date" validate:"required"`
	PenaltyGraceDays *int             `json:"penalty_grace_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	PenaltyDailyRate *decimal.Decimal `json:"penalty_daily_rate,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=1,decimal_places=6"`
}

// TransitionLoanCommand moves a loan to another status.
type TransitionLoanCommand struct {
	LoanID      uuid.UUID  `json:"loan_id" validate:"required"`
	ToStatus    LoanStatus `json:"status" validate:"required"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// ApplyPenaltyCommand recomputes and persists the penalty of one installment.
type ApplyPenaltyCommand struct {
	RepaymentID       uuid.UUID        `json:"repayment_id" validate:"required"`
	DailyRateOverride *decimal.Decimal `json:"daily_rate,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=1,decimal_places=6"`
	GraceDaysOverride *int             `json:"grace_days,omitempty" validate:"omitempty,gte=0,lte=365"`
}

type CreateLoanResponse struct {
	Loan     *Loan        `json:"loan"`
	Schedule []*Repayment `json:"schedule"`
}

// LoanDetails is a loan together with its installments and current balance.
type LoanDetails struct {
	Loan        *Loan           `json:"loan"`
	Schedule    []*Repayment    `json:"schedule"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type OutstandingResponse struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	Reference   string          `json:"reference"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// PenaltyResult reports the outcome of ApplyPenalty.
type PenaltyResult struct {
	Repayment   *Repayment      `json:"repayment"`
	DaysOverdue int             `json:"days_overdue"`
	Computed    decimal.Decimal `json:"computed"`
	Accrued     decimal.Decimal `json:"accrued"`
}

// DelinquencyStatus summarizes missed installments of a loan.
type DelinquencyStatus struct {
	LoanID              uuid.UUID       `json:"loan_id"`
	Reference           string          `json:"reference"`
	OverdueInstallments int             `json:"overdue_installments"`
	ConsecutiveMissed   int             `json:"consecutive_missed"`
	DaysPastDue         int             `json:"days_past_due"`
	OverdueAmount       decimal.Decimal `json:"overdue_amount"`
	Delinquent          bool            `json:"delinquent"`
}
