package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/pkg/utils"
)

// PenaltyInput holds everything CalculatePenalty needs for one installment.
// Today is a business-timezone date; its time of day is ignored.
type PenaltyInput struct {
	DueDate     time.Time
	Today       time.Time
	GraceDays   int
	DailyRate   decimal.Decimal
	Outstanding decimal.Decimal
}

// DaysOverdue returns max(0, days(today - due) - grace).
func DaysOverdue(dueDate, today time.Time, graceDays int) int {
	if graceDays < 0 {
		graceDays = 0
	}
	days := utils.DaysBetween(dueDate, today) - graceDays
	if days < 0 {
		return 0
	}
	return days
}

// CalculatePenalty returns round(outstanding * dailyRate * daysOverdue, 2).
// The penalty is simple interest on what is still owed and is recomputed
// from scratch on every call; it never compounds and is never negative.
func CalculatePenalty(in PenaltyInput) decimal.Decimal {
	days := DaysOverdue(in.DueDate, in.Today, in.GraceDays)
	if days == 0 {
		return decimal.Zero
	}

	outstanding := utils.ClampZero(in.Outstanding)
	rate := utils.ClampZero(in.DailyRate)

	return utils.RoundMoney(outstanding.Mul(rate).Mul(decimal.NewFromInt(int64(days))))
}

// PenaltyFor evaluates the loan's penalty rule against one installment.
func PenaltyFor(loan *Loan, r *Repayment, today time.Time) decimal.Decimal {
	return CalculatePenalty(PenaltyInput{
		DueDate:     r.DueDate,
		Today:       today,
		GraceDays:   loan.PenaltyGraceDays,
		DailyRate:   loan.PenaltyDailyRate,
		Outstanding: r.OutstandingBeforePenalty(),
	})
}

// AccruePenalty raises the installment's penalty_applied to the freshly
// computed penalty and returns the increase. Penalties already booked are
// never reduced, so repeated evaluation does not double charge.
func AccruePenalty(r *Repayment, computed decimal.Decimal) decimal.Decimal {
	delta := utils.ClampZero(computed.Sub(r.PenaltyApplied))
	if delta.IsPositive() {
		r.PenaltyApplied = r.PenaltyApplied.Add(delta)
	}
	return delta
}
