package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

type borrowerDirectory struct {
	db sqlx.ExtContext
}

// NewBorrowerDirectory reads the borrowers table maintained by the
// onboarding system.
func NewBorrowerDirectory(db sqlx.ExtContext) BorrowerDirectory {
	return &borrowerDirectory{db: db}
}

func (r *borrowerDirectory) GetBorrower(ctx context.Context, id string) (*domain.Borrower, error) {
	var borrower domain.Borrower
	err := sqlx.GetContext(ctx, r.db, &borrower, `SELECT id, display_name FROM borrowers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapBorrowerNotFound(id)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &borrower, nil
}
