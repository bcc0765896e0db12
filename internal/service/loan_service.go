package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/notification"
	"github.com/segyhp/loan-engine/internal/repository"
	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// LoanService owns loan creation, status transitions, penalties and the
// read side of loans.
type LoanService struct {
	base
}

func NewLoanService(deps Dependencies) *LoanService {
	return &LoanService{base: newBase(deps)}
}

// CreateLoan opens a loan application and stores its amortization schedule.
func (s *LoanService) CreateLoan(ctx context.Context, cmd *domain.CreateLoanCommand) (*domain.CreateLoanResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.PrincipalAmount.LessThan(s.policy.MinPrincipal) || cmd.PrincipalAmount.GreaterThan(s.policy.MaxPrincipal) {
		return nil, customError.WrapFieldError("principal_amount",
			fmt.Sprintf("must be between %s and %s", money(s.policy.MinPrincipal), money(s.policy.MaxPrincipal)))
	}

	applicationDate := utils.DateIn(cmd.ApplicationDate, s.clock.Location())
	schedule, err := domain.GenerateSchedule(cmd.PrincipalAmount, cmd.InterestRate, cmd.TenorMonths, applicationDate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := uuid.New()
	loan := &domain.Loan{
		ID:                 id,
		Reference:          domain.NewLoanReference(applicationDate, id),
		BorrowerID:         cmd.BorrowerID,
		PrincipalAmount:    cmd.PrincipalAmount,
		InterestRate:       cmd.InterestRate.Div(hundred),
		TenorMonths:        cmd.TenorMonths,
		MonthlyInstallment: schedule.Installment,
		ApplicationDate:    applicationDate,
		MaturityDate:       schedule.MaturityDate,
		Status:             domain.LoanStatusNewApplication,
		TotalDisbursed:     decimal.Zero,
		TotalPaid:          decimal.Zero,
		TotalPenalties:     decimal.Zero,
		IsActive:           true,
		PenaltyGraceDays:   s.policy.PenaltyGraceDays,
		PenaltyDailyRate:   s.policy.PenaltyDailyRate,
		CreatedBy:          actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if cmd.PenaltyGraceDays != nil {
		loan.PenaltyGraceDays = *cmd.PenaltyGraceDays
	}
	if cmd.PenaltyDailyRate != nil {
		loan.PenaltyDailyRate = *cmd.PenaltyDailyRate
	}
	repayments := schedule.Repayments(loan.ID, now)

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		borrower, err := r.Borrowers.GetBorrower(ctx, cmd.BorrowerID)
		if customError.CodeOf(err) == customError.ErrCodeBorrowerNotFound {
			return customError.WrapFieldError("borrower_id", "borrower not found")
		}
		if err != nil {
			return err
		}
		loan.BorrowerName = borrower.DisplayName

		if err := r.Loans.Create(ctx, loan); err != nil {
			return err
		}
		return r.Repayments.CreateBatch(ctx, repayments)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LoansCreated.Inc()
	s.logger.InfoContext(ctx, "loan created",
		"loan_id", loan.ID,
		"reference", loan.Reference,
		"principal", money(loan.PrincipalAmount),
		"tenor_months", loan.TenorMonths,
		"created_by", actor,
	)
	s.notify(ctx, notification.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notification.KindLoanCreated,
		Title:      "Loan application received",
		Message: fmt.Sprintf("Your application %s for %s over %d months was received. Monthly installment: %s.",
			loan.Reference, money(loan.PrincipalAmount), loan.TenorMonths, money(loan.MonthlyInstallment)),
		LoanID: loan.ID,
	})

	return &domain.CreateLoanResponse{Loan: loan, Schedule: repayments}, nil
}

// TransitionLoan moves a loan to another status under the loan row lock.
func (s *LoanService) TransitionLoan(ctx context.Context, cmd *domain.TransitionLoanCommand) (*domain.Loan, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var releaseDate *time.Time
	if cmd.ReleaseDate != nil {
		d := utils.DateIn(*cmd.ReleaseDate, s.clock.Location())
		releaseDate = &d
	}

	var (
		updated *domain.Loan
		tr      domain.Transition
	)
	err = s.uow.WithinLoanTx(ctx, cmd.LoanID, func(r repository.Repos, loan *domain.Loan) error {
		t, err := loan.Transition(cmd.ToStatus, releaseDate, s.clock.Today())
		if err != nil {
			return err
		}
		tr, updated = t, loan
		if !tr.Changed {
			return nil
		}
		loan.UpdatedAt = s.clock.Now()
		return r.Loans.Update(ctx, loan)
	})
	if err != nil {
		return nil, err
	}
	if !tr.Changed {
		return updated, nil
	}

	s.invalidate(ctx, updated.ID)
	s.metrics.Transitions.WithLabelValues(string(tr.To)).Inc()
	s.logger.InfoContext(ctx, "loan status changed",
		"loan_id", updated.ID,
		"reference", updated.Reference,
		"from", tr.From,
		"to", tr.To,
		"actor", actor,
	)
	s.notifyStatusChange(ctx, updated, tr)

	return updated, nil
}

func (s *LoanService) notifyStatusChange(ctx context.Context, loan *domain.Loan, tr domain.Transition) {
	s.notify(ctx, statusChangeNotification(loan, tr))
}

func statusChangeNotification(loan *domain.Loan, tr domain.Transition) notification.Notification {
	return notification.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notification.KindLoanStatusChanged,
		Title:      "Loan status updated",
		Message:    fmt.Sprintf("Loan %s moved from %s to %s.", loan.Reference, tr.From, tr.To),
		LoanID:     loan.ID,
		Data:       map[string]string{"old_status": string(tr.From), "new_status": string(tr.To)},
	}
}

// GetLoan returns the loan with its schedule and outstanding balance,
// served from the cache when possible.
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, error) {
	details, ok, err := s.cache.Get(ctx, loanID)
	if err != nil {
		s.logger.WarnContext(ctx, "loan cache read failed", "loan_id", loanID, "error", err)
	}
	if ok {
		return details, nil
	}

	loan, err := s.repos.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.repos.Repayments.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	details = &domain.LoanDetails{
		Loan:        loan,
		Schedule:    schedule,
		Outstanding: domain.TotalOutstanding(schedule),
	}
	if err := s.cache.Set(ctx, details); err != nil {
		s.logger.WarnContext(ctx, "loan cache write failed", "loan_id", loanID, "error", err)
	}
	return details, nil
}

func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) (*domain.ScheduleResponse, error) {
	details, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.ScheduleResponse{LoanID: loanID, Schedule: details.Schedule}, nil
}

// GetOutstanding sums the outstanding of every installment of the loan.
func (s *LoanService) GetOutstanding(ctx context.Context, loanID uuid.UUID) (*domain.OutstandingResponse, error) {
	details, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.OutstandingResponse{
		LoanID:      loanID,
		Reference:   details.Loan.Reference,
		Outstanding: details.Outstanding,
	}, nil
}

// delinquencyThreshold is the number of consecutive missed installments that
// makes a borrower delinquent.
const delinquencyThreshold = 2

// GetDelinquency reports how far behind a loan is: the unpaid installments
// already past their grace window and the longest run of consecutive ones.
func (s *LoanService) GetDelinquency(ctx context.Context, loanID uuid.UUID) (*domain.DelinquencyStatus, error) {
	details, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	loan := details.Loan
	today := s.clock.Today()
	status := &domain.DelinquencyStatus{LoanID: loan.ID, Reference: loan.Reference, OverdueAmount: decimal.Zero}

	run := 0
	for _, rp := range details.Schedule {
		if !rp.DueDate.Before(today) {
			break
		}
		if rp.IsSettled() {
			run = 0
			continue
		}
		if domain.DaysOverdue(rp.DueDate, today, loan.PenaltyGraceDays) == 0 {
			continue
		}

		run++
		status.OverdueInstallments++
		status.OverdueAmount = status.OverdueAmount.Add(rp.Outstanding())
		if dpd := domain.DaysOverdue(rp.DueDate, today, 0); dpd > status.DaysPastDue {
			status.DaysPastDue = dpd
		}
		if run > status.ConsecutiveMissed {
			status.ConsecutiveMissed = run
		}
	}
	status.Delinquent = loan.Status == domain.LoanStatusDisbursed && status.ConsecutiveMissed >= delinquencyThreshold

	return status, nil
}
