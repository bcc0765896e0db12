// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized by one mutex and work on a private
// copy of the data that replaces the committed state when fn succeeds.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/repository"
)

var _ repository.UnitOfWork = (*Store)(nil)

type state struct {
	loans      map[uuid.UUID]domain.Loan
	repayments map[uuid.UUID]domain.Repayment
	payments   map[uuid.UUID]domain.Payment
	borrowers  map[string]domain.Borrower
}

func newState() *state {
	return &state{
		loans:      make(map[uuid.UUID]domain.Loan),
		repayments: make(map[uuid.UUID]domain.Repayment),
		payments:   make(map[uuid.UUID]domain.Payment),
		borrowers:  make(map[string]domain.Borrower),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.repayments {
		c.repayments[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.borrowers {
		c.borrowers[k] = v
	}
	return c
}

// Store holds the committed data.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// Repos returns repositories that read and write committed data directly.
func (st *Store) Repos() repository.Repos {
	return reposFor(st.data, &st.mu)
}

func reposFor(s *state, mu *sync.RWMutex) repository.Repos {
	g := guard{mu: mu}
	return repository.Repos{
		Loans:      &loanRepo{s: s, g: g},
		Repayments: &repaymentRepo{s: s, g: g},
		Payments:   &paymentRepo{s: s, g: g},
		Borrowers:  &borrowerRepo{s: s, g: g},
	}
}

func (st *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st.txMu.Lock()
	defer st.txMu.Unlock()

	st.mu.RLock()
	work := st.data.clone()
	st.mu.RUnlock()

	if err := fn(reposFor(work, nil)); err != nil {
		return err
	}

	st.mu.Lock()
	*st.data = *work
	st.mu.Unlock()
	return nil
}

func (st *Store) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(r repository.Repos, loan *domain.Loan) error) error {
	return st.WithinTx(ctx, func(r repository.Repos) error {
		loan, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, loan)
	})
}

// AddBorrower seeds the borrower directory.
func (st *Store) AddBorrower(b domain.Borrower) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.data.borrowers[b.ID] = b
}

// guard takes the store lock for direct access; inside a transaction the
// working copy is private and mu is nil.
type guard struct{ mu *sync.RWMutex }

func (g guard) read() func() {
	if g.mu == nil {
		return func() {}
	}
	g.mu.RLock()
	return g.mu.RUnlock
}

func (g guard) write() func() {
	if g.mu == nil {
		return func() {}
	}
	g.mu.Lock()
	return g.mu.Unlock
}
