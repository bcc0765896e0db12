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

// PaymentService records payments and runs the approval workflow that books
// them onto a loan's schedule.
type PaymentService struct {
	base
}

func NewPaymentService(deps Dependencies) *PaymentService {
	return &PaymentService{base: newBase(deps)}
}

// SubmitPayment records a pending payment. Balances are untouched until the
// payment is approved.
func (s *PaymentService) SubmitPayment(ctx context.Context, cmd *domain.SubmitPaymentCommand) (*domain.Payment, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:            uuid.New(),
		LoanID:        cmd.LoanID,
		Amount:        cmd.Amount,
		PenaltyAmount: decimal.Zero,
		Status:        domain.PaymentStatusPending,
		PaidAt:        now,
		SubmittedBy:   actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cmd.PaidAt != nil {
		payment.PaidAt = *cmd.PaidAt
	}
	if cmd.RepaymentID != nil {
		payment.RepaymentID = uuid.NullUUID{UUID: *cmd.RepaymentID, Valid: true}
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		loan, err := r.Loans.GetByID(ctx, cmd.LoanID)
		if err != nil {
			return err
		}
		if err := requirePayable(loan); err != nil {
			return err
		}
		payment.BorrowerID = loan.BorrowerID

		if payment.RepaymentID.Valid {
			rp, err := r.Repayments.GetByID(ctx, payment.RepaymentID.UUID)
			if err != nil {
				return err
			}
			if rp.LoanID != loan.ID {
				return customError.WrapRepaymentNotFound(rp.ID.String())
			}
		}

		return r.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsSubmitted.Inc()
	s.logger.InfoContext(ctx, "payment submitted",
		"payment_id", payment.ID,
		"loan_id", payment.LoanID,
		"amount", money(payment.Amount),
		"submitted_by", actor,
	)
	return payment, nil
}

// ApprovePayment books a pending payment onto the loan. Everything runs in
// one transaction holding the loan row lock, then the payment row lock, so
// a second approval of the same payment fails with PAYMENT_NOT_PENDING.
func (s *PaymentService) ApprovePayment(ctx context.Context, cmd *domain.ApprovePaymentCommand) (*domain.PaymentResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	located, err := s.repos.Payments.GetByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	var (
		result *domain.PaymentResult
		closed domain.Transition
	)
	err = s.uow.WithinLoanTx(ctx, located.LoanID, func(r repository.Repos, loan *domain.Loan) error {
		payment, err := r.Payments.GetByIDForUpdate(ctx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if !payment.IsPending() {
			return customError.WrapNotPending(payment.ID.String(), string(payment.Status))
		}
		if err := requirePayable(loan); err != nil {
			return err
		}

		schedule, err := r.Repayments.ListByLoanID(ctx, loan.ID)
		if err != nil {
			return err
		}

		today := s.clock.Today()
		now := s.clock.Now()
		app, err := domain.ApplyPayment(loan, schedule, payment, today)
		if err != nil {
			return err
		}
		for _, rp := range app.Touched {
			rp.UpdatedAt = now
			if err := r.Repayments.Update(ctx, rp); err != nil {
				return err
			}
		}

		payment.Status = domain.PaymentStatusApproved
		payment.ApprovedBy = actor
		payment.ApprovedAt = &now
		payment.UpdatedAt = now
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}

		approved, err := r.Payments.SumApproved(ctx, loan.ID)
		if err != nil {
			return err
		}
		if !approved.Equal(loan.TotalPaid) {
			return customError.WrapArithmeticInvariant(fmt.Sprintf(
				"loan %s total_paid %s does not match approved payments %s",
				loan.Reference, money(loan.TotalPaid), money(approved)))
		}

		if app.FullyPaid {
			closed, err = loan.Transition(domain.LoanStatusClosed, nil, today)
			if err != nil {
				return err
			}
		}
		loan.UpdatedAt = now
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}

		result = &domain.PaymentResult{
			Payment:        payment,
			Loan:           loan,
			Allocations:    app.Allocations,
			Outstanding:    app.Outstanding,
			PenaltyAccrued: app.Penalty,
			LoanClosed:     closed.Changed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan, payment := result.Loan, result.Payment
	s.invalidate(ctx, loan.ID)
	s.metrics.PaymentsReviewed.WithLabelValues("approved").Inc()
	s.metrics.AmountApproved.Add(payment.Amount.InexactFloat64())
	if result.PenaltyAccrued.IsPositive() {
		s.metrics.PenaltiesAccrued.Add(result.PenaltyAccrued.InexactFloat64())
	}
	s.logger.InfoContext(ctx, "payment approved",
		"payment_id", payment.ID,
		"loan_id", loan.ID,
		"amount", money(payment.Amount),
		"penalty", money(payment.PenaltyAmount),
		"outstanding", money(result.Outstanding),
		"approved_by", actor,
	)

	s.notify(ctx, notification.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notification.KindPaymentApproved,
		Title:      "Payment approved",
		Message: fmt.Sprintf("Your payment of %s on loan %s was approved. Remaining balance: %s.",
			money(payment.Amount), loan.Reference, money(result.Outstanding)),
		LoanID: loan.ID,
		Data:   map[string]string{"payment_id": payment.ID.String(), "penalty": money(payment.PenaltyAmount)},
	})

	if result.LoanClosed {
		s.metrics.LoansClosed.Inc()
		s.metrics.Transitions.WithLabelValues(string(domain.LoanStatusClosed)).Inc()
		s.logger.InfoContext(ctx, "loan closed", "loan_id", loan.ID, "reference", loan.Reference)
		s.notify(ctx, statusChangeNotification(loan, closed))
		s.notify(ctx, notification.Notification{
			BorrowerID: loan.BorrowerID,
			Kind:       notification.KindLoanClosed,
			Title:      "Loan fully paid",
			Message:    fmt.Sprintf("Loan %s is fully paid and now closed.", loan.Reference),
			LoanID:     loan.ID,
		})
	}

	return result, nil
}

// RejectPayment closes a pending payment without touching any balance.
func (s *PaymentService) RejectPayment(ctx context.Context, cmd *domain.RejectPaymentCommand) (*domain.Payment, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	located, err := s.repos.Payments.GetByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	var (
		payment *domain.Payment
		loan    *domain.Loan
	)
	err = s.uow.WithinLoanTx(ctx, located.LoanID, func(r repository.Repos, l *domain.Loan) error {
		p, err := r.Payments.GetByIDForUpdate(ctx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if !p.IsPending() {
			return customError.WrapNotPending(p.ID.String(), string(p.Status))
		}

		p.Status = domain.PaymentStatusRejected
		p.RejectionReason = cmd.Reason
		p.ApprovedBy = actor
		p.UpdatedAt = s.clock.Now()
		payment, loan = p, l
		return r.Payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsReviewed.WithLabelValues("rejected").Inc()
	s.logger.InfoContext(ctx, "payment rejected",
		"payment_id", payment.ID,
		"loan_id", payment.LoanID,
		"reason", payment.RejectionReason,
		"rejected_by", actor,
	)
	s.notify(ctx, notification.Notification{
		BorrowerID: payment.BorrowerID,
		Kind:       notification.KindPaymentRejected,
		Title:      "Payment rejected",
		Message: fmt.Sprintf("Your payment of %s on loan %s was rejected: %s",
			money(payment.Amount), loan.Reference, payment.RejectionReason),
		LoanID: payment.LoanID,
		Data:   map[string]string{"payment_id": payment.ID.String()},
	})

	return payment, nil
}

// ListPayments returns the loan's payments, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	if _, err := s.repos.Loans.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.repos.Payments.ListByLoanID(ctx, loanID)
}
