package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/notification"
	"github.com/segyhp/loan-engine/internal/repository"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

// ApplyPenalty recomputes the penalty of one installment and books any
// increase on the installment and the loan, outside of a payment event.
func (s *LoanService) ApplyPenalty(ctx context.Context, cmd *domain.ApplyPenaltyCommand) (*domain.PenaltyResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	located, err := s.repos.Repayments.GetByID(ctx, cmd.RepaymentID)
	if err != nil {
		return nil, err
	}

	var (
		result *domain.PenaltyResult
		loan   *domain.Loan
	)
	err = s.uow.WithinLoanTx(ctx, located.LoanID, func(r repository.Repos, l *domain.Loan) error {
		if err := requirePayable(l); err != nil {
			return err
		}

		rp, err := r.Repayments.GetByID(ctx, cmd.RepaymentID)
		if err != nil {
			return err
		}

		grace, rate := l.PenaltyGraceDays, l.PenaltyDailyRate
		if cmd.GraceDaysOverride != nil {
			grace = *cmd.GraceDaysOverride
		}
		if cmd.DailyRateOverride != nil {
			rate = *cmd.DailyRateOverride
		}

		today := s.clock.Today()
		result = &domain.PenaltyResult{
			Repayment:   rp,
			DaysOverdue: domain.DaysOverdue(rp.DueDate, today, grace),
			Computed:    decimal.Zero,
			Accrued:     decimal.Zero,
		}
		if rp.IsSettled() {
			return nil
		}

		result.Computed = domain.CalculatePenalty(domain.PenaltyInput{
			DueDate:     rp.DueDate,
			Today:       today,
			GraceDays:   grace,
			DailyRate:   rate,
			Outstanding: rp.OutstandingBeforePenalty(),
		})
		result.Accrued = domain.AccruePenalty(rp, result.Computed)
		if !result.Accrued.IsPositive() {
			return nil
		}

		now := s.clock.Now()
		rp.UpdatedAt = now
		if err := r.Repayments.Update(ctx, rp); err != nil {
			return err
		}
		l.TotalPenalties = l.TotalPenalties.Add(result.Accrued)
		l.UpdatedAt = now
		loan = l
		return r.Loans.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	if loan != nil {
		s.afterPenalty(ctx, loan, result.Accrued, 1)
		s.logger.InfoContext(ctx, "penalty applied",
			"loan_id", loan.ID,
			"repayment_id", cmd.RepaymentID,
			"days_overdue", result.DaysOverdue,
			"accrued", money(result.Accrued),
			"actor", actor,
		)
	}
	return result, nil
}

func (s *LoanService) afterPenalty(ctx context.Context, loan *domain.Loan, accrued decimal.Decimal, installments int) {
	s.invalidate(ctx, loan.ID)
	s.metrics.PenaltiesAccrued.Add(accrued.InexactFloat64())
	s.notify(ctx, notification.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notification.KindPenaltyApplied,
		Title:      "Late payment penalty",
		Message: fmt.Sprintf("A penalty of %s was added to loan %s for %d overdue installment(s).",
			money(accrued), loan.Reference, installments),
		LoanID: loan.ID,
	})
}

// SweepResult summarizes one RunPenaltySweep.
type SweepResult struct {
	Loans        int
	Installments int
	Accrued      decimal.Decimal
	Failed       int
}

// RunPenaltySweep accrues penalties on every overdue installment of the
// active disbursed loans. Each loan is handled in its own transaction; a
// failing loan is logged and skipped.
func (s *LoanService) RunPenaltySweep(ctx context.Context) (*SweepResult, error) {
	loans, err := s.repos.Loans.ListActiveDisbursed(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Accrued: decimal.Zero}
	for _, candidate := range loans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		accrued, count, loan, err := s.sweepLoan(ctx, candidate.ID)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "penalty sweep failed for loan",
				"loan_id", candidate.ID,
				"reference", candidate.Reference,
				"error", err,
			)
			continue
		}
		if count == 0 {
			continue
		}

		result.Loans++
		result.Installments += count
		result.Accrued = result.Accrued.Add(accrued)
		s.afterPenalty(ctx, loan, accrued, count)
	}

	s.logger.InfoContext(ctx, "penalty sweep finished",
		"loans", result.Loans,
		"installments", result.Installments,
		"accrued", money(result.Accrued),
		"failed", result.Failed,
	)
	return result, nil
}

func (s *LoanService) sweepLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, int, *domain.Loan, error) {
	accrued := decimal.Zero
	count := 0
	var loan *domain.Loan

	err := s.uow.WithinLoanTx(ctx, loanID, func(r repository.Repos, l *domain.Loan) error {
		// the loan may have closed since it was listed
		if l.Status != domain.LoanStatusDisbursed || !l.IsActive {
			return nil
		}

		schedule, err := r.Repayments.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}

		today := s.clock.Today()
		now := s.clock.Now()
		for _, rp := range schedule {
			if rp.IsSettled() {
				continue
			}
			delta := domain.AccruePenalty(rp, domain.PenaltyFor(l, rp, today))
			if !delta.IsPositive() {
				continue
			}
			rp.UpdatedAt = now
			if err := r.Repayments.Update(ctx, rp); err != nil {
				return err
			}
			accrued = accrued.Add(delta)
			count++
		}
		if count == 0 {
			return nil
		}

		l.TotalPenalties = l.TotalPenalties.Add(accrued)
		l.UpdatedAt = now
		loan = l
		return r.Loans.Update(ctx, l)
	})
	if err != nil {
		return decimal.Zero, 0, nil, err
	}
	return accrued, count, loan, nil
}

// SendDueReminders notifies borrowers of unpaid installments falling due
// within the next ReminderDays days, today included. It returns the number
// of reminders delivered.
func (s *LoanService) SendDueReminders(ctx context.Context) (int, error) {
	today := s.clock.Today()
	until := today.AddDate(0, 0, s.policy.ReminderDays)

	due, err := s.repos.Repayments.ListUnpaidDueBetween(ctx, today, until)
	if err != nil {
		return 0, err
	}

	loans := make(map[uuid.UUID]*domain.Loan)
	sent := 0
	for _, rp := range due {
		loan, ok := loans[rp.LoanID]
		if !ok {
			loan, err = s.repos.Loans.GetByID(ctx, rp.LoanID)
			if err != nil {
				s.logger.ErrorContext(ctx, "reminder skipped", "repayment_id", rp.ID, "error", err)
				continue
			}
			loans[rp.LoanID] = loan
		}

		delivered := s.notify(ctx, notification.Notification{
			BorrowerID: loan.BorrowerID,
			Kind:       notification.KindPaymentDue,
			Title:      "Upcoming installment",
			Message: fmt.Sprintf("Installment %d of loan %s (%s) is due on %s.",
				rp.InstallmentNumber, loan.Reference, money(rp.Outstanding()), rp.DueDate.Format("2006-01-02")),
			LoanID: loan.ID,
			Data:   map[string]string{"repayment_id": rp.ID.String()},
		})
		if delivered {
			sent++
		}
	}

	s.logger.InfoContext(ctx, "due reminders sent", "count", sent, "from", today.Format("2006-01-02"), "until", until.Format("2006-01-02"))
	return sent, nil
}

// requirePayable rejects loans that cannot take payments or penalties.
func requirePayable(loan *domain.Loan) error {
	if loan.Status != domain.LoanStatusDisbursed {
		return customError.WrapLoanNotDisbursed(loan.Reference, string(loan.Status))
	}
	if !loan.IsActive {
		return customError.WrapLoanInactive(loan.Reference)
	}
	return nil
}
