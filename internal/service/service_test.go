package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/metrics"
	"github.com/segyhp/loan-engine/internal/notification"
	"github.com/segyhp/loan-engine/internal/repository/memory"
)

var applicationDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) kinds() []notification.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Kind, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = nil
}

type harness struct {
	store    *memory.Store
	clock    *FixedClock
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	loans    *LoanService
	payments *PaymentService
	ctx      context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	store.AddBorrower(domain.Borrower{ID: "b-1", DisplayName: "Maria Santos"})
	store.AddBorrower(domain.Borrower{ID: "b-2", DisplayName: "Jose Rizal"})

	h := &harness{
		store:    store,
		clock:    &FixedClock{At: applicationDate.Add(9 * time.Hour)},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
		ctx:      WithIdentity(context.Background(), "officer-1"),
	}

	deps := Dependencies{
		UoW:      store,
		Repos:    store.Repos(),
		Notifier: h.notifier,
		Metrics:  h.metrics,
		Clock:    h.clock,
		Policy: Policy{
			PenaltyGraceDays: 5,
			PenaltyDailyRate: decimal.RequireFromString("0.001"),
			MinPrincipal:     decimal.NewFromInt(1000),
			MaxPrincipal:     decimal.NewFromInt(5000000),
			ReminderDays:     3,
		},
	}
	h.loans = NewLoanService(deps)
	h.payments = NewPaymentService(deps)
	return h
}

func (h *harness) setNow(t time.Time) {
	h.clock.At = t
}

func createCommand(borrowerID string) *domain.CreateLoanCommand {
	grace := 10
	return &domain.CreateLoanCommand{
		BorrowerID:       borrowerID,
		PrincipalAmount:  decimal.NewFromInt(10000),
		InterestRate:     decimal.NewFromInt(24),
		TenorMonths:      12,
		ApplicationDate:  applicationDate,
		PenaltyGraceDays: &grace,
	}
}

// disbursedLoan creates the 10000 @ 24% / 12 months loan and walks it to
// disbursed.
func (h *harness) disbursedLoan(t *testing.T, borrowerID string) (*domain.Loan, []*domain.Repayment) {
	t.Helper()

	created, err := h.loans.CreateLoan(h.ctx, createCommand(borrowerID))
	require.NoError(t, err)

	for _, to := range []domain.LoanStatus{
		domain.LoanStatusUnderReview,
		domain.LoanStatusApproved,
		domain.LoanStatusForRelease,
		domain.LoanStatusDisbursed,
	} {
		_, err := h.loans.TransitionLoan(h.ctx, &domain.TransitionLoanCommand{LoanID: created.Loan.ID, ToStatus: to})
		require.NoError(t, err)
	}

	return h.reload(t, created.Loan)
}

func (h *harness) reload(t *testing.T, loan *domain.Loan) (*domain.Loan, []*domain.Repayment) {
	t.Helper()

	fresh, err := h.store.Repos().Loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	schedule, err := h.store.Repos().Repayments.ListByLoanID(context.Background(), loan.ID)
	require.NoError(t, err)
	return fresh, schedule
}

func (h *harness) submit(t *testing.T, loan *domain.Loan, amount string) *domain.Payment {
	t.Helper()

	p, err := h.payments.SubmitPayment(h.ctx, &domain.SubmitPaymentCommand{
		LoanID: loan.ID,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return p
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
