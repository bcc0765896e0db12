package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

// SqlxUoW implements UnitOfWork on a postgres *sqlx.DB.
type SqlxUoW struct{ db *sqlx.DB }

func NewSqlxUoW(db *sqlx.DB) *SqlxUoW { return &SqlxUoW{db: db} }

// NewRepos binds every repository to db, which may be a *sqlx.DB or *sqlx.Tx.
func NewRepos(db sqlx.ExtContext) Repos {
	return Repos{
		Loans:      NewLoanRepository(db),
		Repayments: NewRepaymentRepository(db),
		Payments:   NewPaymentRepository(db),
		Borrowers:  NewBorrowerDirectory(db),
	}
}

func (u *SqlxUoW) WithinTx(ctx context.Context, fn func(r Repos) error) (err error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(NewRepos(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return customError.WrapDatabaseError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (u *SqlxUoW) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(r Repos, loan *domain.Loan) error) error {
	return u.WithinTx(ctx, func(r Repos) error {
		// lock the loan row up-front; every writer of this loan queues here
		loan, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, loan)
	})
}
