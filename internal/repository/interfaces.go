package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and locks its row until the
	// surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Update persists status, dates and running totals of a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// ListActiveDisbursed returns every active loan in the disbursed status
	ListActiveDisbursed(ctx context.Context) ([]*domain.Loan, error)
}

// RepaymentRepository defines the interface for installment data operations
type RepaymentRepository interface {
	// CreateBatch inserts the installments of a new schedule
	CreateBatch(ctx context.Context, repayments []*domain.Repayment) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Repayment, error)

	// ListByLoanID returns the schedule ordered by due date
	ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error)

	// Update persists amount paid, penalty and paid_at of an installment
	Update(ctx context.Context, repayment *domain.Repayment) error

	// ListUnpaidDueBetween returns unpaid installments of active disbursed
	// loans whose due date falls within [from, to]
	ListUnpaidDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Repayment, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// GetByIDForUpdate retrieves a payment and locks its row
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// ListByLoanID retrieves all payments for a loan, newest first
	ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// Update persists the review outcome of a payment
	Update(ctx context.Context, payment *domain.Payment) error

	// SumApproved calculates the total of approved payments for a loan
	SumApproved(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

// BorrowerDirectory resolves borrowers owned by another system.
type BorrowerDirectory interface {
	GetBorrower(ctx context.Context, id string) (*domain.Borrower, error)
}

// Repos groups the repositories bound to one transaction.
type Repos struct {
	Loans      LoanRepository
	Repayments RepaymentRepository
	Payments   PaymentRepository
	Borrowers  BorrowerDirectory
}

// UnitOfWork runs a function inside a single database transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the loan row first, then pass it in
	WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(r Repos, loan *domain.Loan) error) error
}
