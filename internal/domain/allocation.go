package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/utils"
)

// Allocation is the share of a payment booked against one installment.
type Allocation struct {
	RepaymentID       uuid.UUID       `json:"repayment_id"`
	InstallmentNumber int             `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	// Penalty is the calculator's figure for the installment at application
	// time; Accrued is how much of it was newly booked.
	Penalty decimal.Decimal `json:"penalty"`
	Accrued decimal.Decimal `json:"accrued"`
	Settled bool            `json:"settled"`
}

// Application is the result of ApplyPayment.
type Application struct {
	Allocations []Allocation
	// Touched are the installments whose fields changed.
	Touched []*Repayment
	// Assessed sums the penalty computed for every touched installment.
	Assessed decimal.Decimal
	// Penalty is the newly accrued part of Assessed.
	Penalty     decimal.Decimal
	Outstanding decimal.Decimal
	FullyPaid   bool
}

// ApplyPayment books an approved payment onto the schedule in place.
//
// The target installment is the one the payment references, or the
// earliest-due unpaid one. Penalty is accrued on each installment before
// money is applied to it. Whatever exceeds the target's outstanding flows to
// the next unpaid installments in due order; the last installment reached
// keeps any remainder as an overpayment. Loan totals are updated.
func ApplyPayment(loan *Loan, schedule []*Repayment, payment *Payment, today time.Time) (*Application, error) {
	if !payment.Amount.IsPositive() {
		return nil, customError.WrapFieldError("amount", "must be greater than 0")
	}

	ordered := make([]*Repayment, len(schedule))
	copy(ordered, schedule)
	SortSchedule(ordered)

	queue, err := settlementQueue(loan, ordered, payment)
	if err != nil {
		return nil, err
	}

	app := &Application{Assessed: decimal.Zero, Penalty: decimal.Zero}
	remaining := payment.Amount
	for i, r := range queue {
		if !remaining.IsPositive() {
			break
		}

		computed := PenaltyFor(loan, r, today)
		accrued := AccruePenalty(r, computed)

		share := utils.MinDecimal(remaining, r.Outstanding())
		if i == len(queue)-1 {
			share = remaining
		}
		if share.IsNegative() {
			return nil, customError.WrapArithmeticInvariant(
				fmt.Sprintf("negative share %s for installment %d of loan %s", share, r.InstallmentNumber, loan.Reference))
		}

		r.AmountPaid = r.AmountPaid.Add(share)
		remaining = remaining.Sub(share)

		settled := false
		if r.PaidAt == nil && r.AmountPaid.GreaterThanOrEqual(r.AmountDue.Add(r.PenaltyApplied)) {
			paidAt := payment.PaidAt
			r.PaidAt = &paidAt
			settled = true
		}

		app.Assessed = app.Assessed.Add(computed)
		app.Penalty = app.Penalty.Add(accrued)
		app.Touched = append(app.Touched, r)
		app.Allocations = append(app.Allocations, Allocation{
			RepaymentID:       r.ID,
			InstallmentNumber: r.InstallmentNumber,
			Amount:            share,
			Penalty:           computed,
			Accrued:           accrued,
			Settled:           settled,
		})
	}

	payment.PenaltyAmount = app.Assessed
	loan.TotalPaid = loan.TotalPaid.Add(payment.Amount)
	loan.TotalPenalties = loan.TotalPenalties.Add(app.Penalty)

	app.Outstanding = TotalOutstanding(ordered)
	app.FullyPaid = app.Outstanding.LessThanOrEqual(ClosureEpsilon)

	return app, nil
}

// settlementQueue returns the target installment followed by the other
// unpaid installments in due order.
func settlementQueue(loan *Loan, ordered []*Repayment, payment *Payment) ([]*Repayment, error) {
	var target *Repayment
	if payment.RepaymentID.Valid {
		for _, r := range ordered {
			if r.ID == payment.RepaymentID.UUID {
				target = r
				break
			}
		}
		if target == nil {
			return nil, customError.WrapRepaymentNotFound(payment.RepaymentID.UUID.String())
		}
	}

	// A settled target no longer owes anything; fall through to FIFO.
	queue := make([]*Repayment, 0, len(ordered))
	if target != nil && !target.IsSettled() {
		queue = append(queue, target)
	}
	for _, r := range ordered {
		if r == target || r.IsSettled() {
			continue
		}
		queue = append(queue, r)
	}

	if len(queue) == 0 {
		return nil, customError.WrapNoOutstandingBalance(loan.Reference)
	}
	return queue, nil
}
