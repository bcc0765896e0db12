package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/utils"
)

// AllowedTenors are the loan terms, in months, the product supports.
var AllowedTenors = []int{6, 12, 36}

var monthsPerYear = decimal.NewFromInt(12)

// IsAllowedTenor reports whether months is one of AllowedTenors.
func IsAllowedTenor(months int) bool {
	for _, t := range AllowedTenors {
		if t == months {
			return true
		}
	}
	return false
}

// ScheduleEntry is one generated installment.
type ScheduleEntry struct {
	Number    int
	DueDate   time.Time
	AmountDue decimal.Decimal
}

// AmortizationSchedule is the output of GenerateSchedule.
type AmortizationSchedule struct {
	// EMI is the unrounded equal monthly installment.
	EMI          decimal.Decimal
	Installment  decimal.Decimal
	Total        decimal.Decimal
	MaturityDate time.Time
	Entries      []ScheduleEntry
}

// MonthlyRate converts an annual percentage (24 = 24%) to a monthly fraction.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(decimal.NewFromInt(100)).Div(monthsPerYear)
}

// CalculateEMI computes the unrounded equal monthly installment:
// P * r * (1+r)^n / ((1+r)^n - 1), or P / n when r is zero.
func CalculateEMI(principal, annualRatePct decimal.Decimal, tenor int) decimal.Decimal {
	n := decimal.NewFromInt(int64(tenor))
	r := MonthlyRate(annualRatePct)
	if r.IsZero() {
		return principal.Div(n)
	}

	factor := decimal.NewFromInt(1).Add(r).Pow(n)
	return principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
}

// GenerateSchedule produces the installment plan for a loan. Every
// installment is round(EMI, 2) except the last, which absorbs the rounding
// residue so the schedule sums to round(EMI * n, 2).
func GenerateSchedule(principal, annualRatePct decimal.Decimal, tenor int, start time.Time) (*AmortizationSchedule, error) {
	fields := map[string]string{}
	if !principal.IsPositive() {
		fields["principal_amount"] = "must be greater than 0"
	}
	if annualRatePct.IsNegative() {
		fields["interest_rate"] = "must not be negative"
	}
	if !IsAllowedTenor(tenor) {
		fields["tenor_months"] = fmt.Sprintf("must be one of %v", AllowedTenors)
	}
	if len(fields) > 0 {
		return nil, customError.WrapValidation(fields)
	}

	emi := CalculateEMI(principal, annualRatePct, tenor)
	installment := utils.RoundMoney(emi)
	total := utils.RoundMoney(emi.Mul(decimal.NewFromInt(int64(tenor))))

	start = utils.DateOf(start)
	entries := make([]ScheduleEntry, 0, tenor)
	allocated := decimal.Zero
	for i := 1; i <= tenor; i++ {
		amount := installment
		if i == tenor {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		entries = append(entries, ScheduleEntry{
			Number:    i,
			DueDate:   utils.AddMonths(start, i),
			AmountDue: amount,
		})
	}

	return &AmortizationSchedule{
		EMI:          emi,
		Installment:  installment,
		Total:        total,
		MaturityDate: utils.AddMonths(start, tenor),
		Entries:      entries,
	}, nil
}

// Repayments materializes the schedule as installments of the given loan.
func (s *AmortizationSchedule) Repayments(loanID uuid.UUID, now time.Time) []*Repayment {
	out := make([]*Repayment, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, &Repayment{
			ID:                uuid.New(),
			LoanID:            loanID,
			InstallmentNumber: e.Number,
			DueDate:           e.DueDate,
			AmountDue:         e.AmountDue,
			AmountPaid:        decimal.Zero,
			PenaltyApplied:    decimal.Zero,
			Note:              fmt.Sprintf("Installment %d of %d", e.Number, len(s.Entries)),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return out
}
