package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

const repaymentColumns = `
	id, loan_id, installment_number, due_date, amount_due, amount_paid,
	penalty_applied, paid_at, note, created_at, updated_at`

const dateLayout = "2006-01-02"

type repaymentRepository struct {
	db sqlx.ExtContext
}

func NewRepaymentRepository(db sqlx.ExtContext) RepaymentRepository {
	return &repaymentRepository{db: db}
}

func (r *repaymentRepository) CreateBatch(ctx context.Context, repayments []*domain.Repayment) error {
	query := `
		INSERT INTO repayments (` + repaymentColumns + `)
		VALUES (:id, :loan_id, :installment_number, :due_date, :amount_due, :amount_paid,
			:penalty_applied, :paid_at, :note, :created_at, :updated_at)
	`

	for _, repayment := range repayments {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, repayment); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}

func (r *repaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Repayment, error) {
	query := `SELECT ` + repaymentColumns + ` FROM repayments WHERE id = $1`

	var repayment domain.Repayment
	err := sqlx.GetContext(ctx, r.db, &repayment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapRepaymentNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &repayment, nil
}

func (r *repaymentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	query := `SELECT ` + repaymentColumns + ` FROM repayments
		WHERE loan_id = $1
		ORDER BY due_date, installment_number`

	var repayments []*domain.Repayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query, loanID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return repayments, nil
}

func (r *repaymentRepository) Update(ctx context.Context, repayment *domain.Repayment) error {
	query := `
		UPDATE repayments
		SET amount_paid = :amount_paid, penalty_applied = :penalty_applied,
			paid_at = :paid_at, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, repayment)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return customError.WrapRepaymentNotFound(repayment.ID.String())
	}
	return nil
}

func (r *repaymentRepository) ListUnpaidDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Repayment, error) {
	query := `
		SELECT r.id, r.loan_id, r.installment_number, r.due_date, r.amount_due, r.amount_paid,
			r.penalty_applied, r.paid_at, r.note, r.created_at, r.updated_at
		FROM repayments r
		JOIN loans l ON l.id = r.loan_id
		WHERE r.paid_at IS NULL
			AND r.due_date BETWEEN $1::date AND $2::date
			AND l.status = $3 AND l.is_active
		ORDER BY r.due_date, r.loan_id, r.installment_number
	`

	var repayments []*domain.Repayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query,
		from.Format(dateLayout), to.Format(dateLayout), domain.LoanStatusDisbursed); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return repayments, nil
}
