package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

const loanColumns = `
	id, reference, borrower_id, borrower_name, principal_amount, interest_rate,
	tenor_months, monthly_installment, application_date, maturity_date,
	release_date, status, total_disbursed, total_paid, total_penalties,
	is_active, penalty_grace_days, penalty_daily_rate, created_by,
	created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

// NewLoanRepository binds the repository to a *sqlx.DB or *sqlx.Tx.
func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :reference, :borrower_id, :borrower_name, :principal_amount, :interest_rate,
			:tenor_months, :monthly_installment, :application_date, :maturity_date,
			:release_date, :status, :total_disbursed, :total_paid, :total_penalties,
			:is_active, :penalty_grace_days, :penalty_daily_rate, :created_by,
			:created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, loan); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	err := sqlx.GetContext(ctx, r.db, &loan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET status = :status, release_date = :release_date, total_disbursed = :total_disbursed,
			total_paid = :total_paid, total_penalties = :total_penalties,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, loan)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return customError.WrapLoanNotFound(loan.ID.String())
	}
	return nil
}

func (r *loanRepository) ListActiveDisbursed(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans
		WHERE status = $1 AND is_active
		ORDER BY application_date, id`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, domain.LoanStatusDisbursed); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}
