package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

type loanRepo struct {
	s *state
	g guard
}

func (r *loanRepo) Create(_ context.Context, loan *domain.Loan) error {
	defer r.g.write()()
	r.s.loans[loan.ID] = *loan
	return nil
}

func (r *loanRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	defer r.g.read()()
	loan, ok := r.s.loans[id]
	if !ok {
		return nil, customError.WrapLoanNotFound(id.String())
	}
	return &loan, nil
}

func (r *loanRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *loanRepo) Update(_ context.Context, loan *domain.Loan) error {
	defer r.g.write()()
	if _, ok := r.s.loans[loan.ID]; !ok {
		return customError.WrapLoanNotFound(loan.ID.String())
	}
	r.s.loans[loan.ID] = *loan
	return nil
}

func (r *loanRepo) ListActiveDisbursed(_ context.Context) ([]*domain.Loan, error) {
	defer r.g.read()()
	var out []*domain.Loan
	for _, l := range r.s.loans {
		if l.Status == domain.LoanStatusDisbursed && l.IsActive {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ApplicationDate.Equal(out[j].ApplicationDate) {
			return out[i].ApplicationDate.Before(out[j].ApplicationDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

type repaymentRepo struct {
	s *state
	g guard
}

func (r *repaymentRepo) CreateBatch(_ context.Context, repayments []*domain.Repayment) error {
	defer r.g.write()()
	for _, rp := range repayments {
		r.s.repayments[rp.ID] = *rp
	}
	return nil
}

func (r *repaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Repayment, error) {
	defer r.g.read()()
	rp, ok := r.s.repayments[id]
	if !ok {
		return nil, customError.WrapRepaymentNotFound(id.String())
	}
	return &rp, nil
}

func (r *repaymentRepo) ListByLoanID(_ context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	defer r.g.read()()
	var out []*domain.Repayment
	for _, rp := range r.s.repayments {
		if rp.LoanID == loanID {
			rp := rp
			out = append(out, &rp)
		}
	}
	domain.SortSchedule(out)
	return out, nil
}

func (r *repaymentRepo) Update(_ context.Context, repayment *domain.Repayment) error {
	defer r.g.write()()
	if _, ok := r.s.repayments[repayment.ID]; !ok {
		return customError.WrapRepaymentNotFound(repayment.ID.String())
	}
	r.s.repayments[repayment.ID] = *repayment
	return nil
}

func (r *repaymentRepo) ListUnpaidDueBetween(_ context.Context, from, to time.Time) ([]*domain.Repayment, error) {
	defer r.g.read()()
	var out []*domain.Repayment
	for _, rp := range r.s.repayments {
		if rp.PaidAt != nil || rp.DueDate.Before(from) || rp.DueDate.After(to) {
			continue
		}
		loan, ok := r.s.loans[rp.LoanID]
		if !ok || loan.Status != domain.LoanStatusDisbursed || !loan.IsActive {
			continue
		}
		rp := rp
		out = append(out, &rp)
	}
	domain.SortSchedule(out)
	return out, nil
}

type paymentRepo struct {
	s *state
	g guard
}

func (r *paymentRepo) Create(_ context.Context, payment *domain.Payment) error {
	defer r.g.write()()
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	defer r.g.read()()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, customError.WrapPaymentNotFound(id.String())
	}
	return &p, nil
}

func (r *paymentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *paymentRepo) ListByLoanID(_ context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	defer r.g.read()()
	var out []*domain.Payment
	for _, p := range r.s.payments {
		if p.LoanID == loanID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *paymentRepo) Update(_ context.Context, payment *domain.Payment) error {
	defer r.g.write()()
	if _, ok := r.s.payments[payment.ID]; !ok {
		return customError.WrapPaymentNotFound(payment.ID.String())
	}
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepo) SumApproved(_ context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	defer r.g.read()()
	total := decimal.Zero
	for _, p := range r.s.payments {
		if p.LoanID == loanID && p.Status == domain.PaymentStatusApproved {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type borrowerRepo struct {
	s *state
	g guard
}

func (r *borrowerRepo) GetBorrower(_ context.Context, id string) (*domain.Borrower, error) {
	defer r.g.read()()
	b, ok := r.s.borrowers[id]
	if !ok {
		return nil, customError.WrapBorrowerNotFound(id)
	}
	return &b, nil
}
