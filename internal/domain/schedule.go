package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/pkg/utils"
)

// ClosureEpsilon is the residual balance under which a loan counts as settled.
var ClosureEpsilon = utils.Cent

// Repayment represents one scheduled installment of a loan
type Repayment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	AmountDue         decimal.Decimal `json:"amount_due" db:"amount_due"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	PenaltyApplied    decimal.Decimal `json:"penalty_applied" db:"penalty_applied"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Note              string          `json:"note" db:"note"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Outstanding is max(0, amount_due + penalty_applied - amount_paid).
func (r *Repayment) Outstanding() decimal.Decimal {
	return utils.ClampZero(r.AmountDue.Add(r.PenaltyApplied).Sub(r.AmountPaid))
}

// OutstandingBeforePenalty is the part of amount_due still owed, ignoring penalties.
func (r *Repayment) OutstandingBeforePenalty() decimal.Decimal {
	return utils.ClampZero(r.AmountDue.Sub(r.AmountPaid))
}

// IsSettled reports whether the installment has been fully paid.
func (r *Repayment) IsSettled() bool {
	return r.PaidAt != nil
}

// SortSchedule orders installments by due date, then installment number.
func SortSchedule(schedule []*Repayment) {
	sort.SliceStable(schedule, func(i, j int) bool {
		if !schedule[i].DueDate.Equal(schedule[j].DueDate) {
			return schedule[i].DueDate.Before(schedule[j].DueDate)
		}
		return schedule[i].InstallmentNumber < schedule[j].InstallmentNumber
	})
}

// TotalOutstanding sums the outstanding of every installment.
func TotalOutstanding(schedule []*Repayment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range schedule {
		total = total.Add(r.Outstanding())
	}
	return total
}

// IsFullySettled reports whether the schedule's outstanding is within ClosureEpsilon.
func IsFullySettled(schedule []*Repayment) bool {
	return TotalOutstanding(schedule).LessThanOrEqual(ClosureEpsilon)
}

type ScheduleResponse struct {
	LoanID   uuid.UUID    `json:"loan_id"`
	Schedule []*Repayment `json:"schedule"`
}
