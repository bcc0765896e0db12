package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

const paymentColumns = `
	id, loan_id, borrower_id, repayment_id, amount, penalty_amount, status,
	paid_at, submitted_by, approved_by, approved_at, rejection_reason,
	created_at, updated_at`

type paymentRepository struct {
	db sqlx.ExtContext
}

func NewPaymentRepository(db sqlx.ExtContext) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :loan_id, :borrower_id, :repayment_id, :amount, :penalty_amount, :status,
			:paid_at, :submitted_by, :approved_by, :approved_at, :rejection_reason,
			:created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, payment); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *paymentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *paymentRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Payment, error) {
	var payment domain.Payment
	err := sqlx.GetContext(ctx, r.db, &payment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapPaymentNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &payment, nil
}

func (r *paymentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE loan_id = $1
		ORDER BY created_at DESC, id`

	var payments []*domain.Payment
	if err := sqlx.SelectContext(ctx, r.db, &payments, query, loanID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = :status, penalty_amount = :penalty_amount, approved_by = :approved_by,
			approved_at = :approved_at, rejection_reason = :rejection_reason, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, payment)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return customError.WrapPaymentNotFound(payment.ID.String())
	}
	return nil
}

func (r *paymentRepository) SumApproved(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE loan_id = $1 AND status = $2`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &total, query, loanID, domain.PaymentStatusApproved); err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}
	return total, nil
}
