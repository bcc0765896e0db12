package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/notification"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

func TestApplyPenalty_Idempotent(t *testing.T) {
	h := newHarness(t)
	loan, schedule := h.disbursedLoan(t, "b-1")
	h.setNow(schedule[0].DueDate.AddDate(0, 0, 40))
	h.notifier.reset()

	cmd := &domain.ApplyPenaltyCommand{RepaymentID: schedule[0].ID}
	res, err := h.loans.ApplyPenalty(h.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 30, res.DaysOverdue)
	assertMoney(t, "28.37", res.Computed)
	assertMoney(t, "28.37", res.Accrued)

	res, err = h.loans.ApplyPenalty(h.ctx, cmd)
	require.NoError(t, err)
	assertMoney(t, "28.37", res.Computed)
	assertMoney(t, "0", res.Accrued)

	stored, after := h.reload(t, loan)
	assertMoney(t, "28.37", stored.TotalPenalties)
	assertMoney(t, "28.37", after[0].PenaltyApplied)
	assert.Equal(t, []notification.Kind{notification.KindPenaltyApplied}, h.notifier.kinds())
}

func TestApplyPenalty_Overrides(t *testing.T) {
	h := newHarness(t)
	loan, schedule := h.disbursedLoan(t, "b-1")
	h.setNow(schedule[0].DueDate.AddDate(0, 0, 40))

	_, err := h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{RepaymentID: schedule[0].ID})
	require.NoError(t, err)

	noGrace := 0
	res, err := h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{RepaymentID: schedule[0].ID, GraceDaysOverride: &noGrace})
	require.NoError(t, err)
	assert.Equal(t, 40, res.DaysOverdue)
	assertMoney(t, "37.82", res.Computed)
	assertMoney(t, "9.45", res.Accrued)

	stored, _ := h.reload(t, loan)
	assertMoney(t, "37.82", stored.TotalPenalties)
	// overrides do not change the loan's own terms
	assert.Equal(t, 10, stored.PenaltyGraceDays)
}

func TestApplyPenalty_NotYetOverdue(t *testing.T) {
	h := newHarness(t)
	_, schedule := h.disbursedLoan(t, "b-1")
	h.setNow(schedule[0].DueDate.AddDate(0, 0, 10))

	res, err := h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{RepaymentID: schedule[0].ID})
	require.NoError(t, err)
	assert.Zero(t, res.DaysOverdue)
	assertMoney(t, "0", res.Accrued)
}

func TestApplyPenalty_SettledInstallment(t *testing.T) {
	h := newHarness(t)
	loan, schedule := h.disbursedLoan(t, "b-1")
	p := h.submit(t, loan, "945.60")
	_, err := h.payments.ApprovePayment(h.ctx, &domain.ApprovePaymentCommand{PaymentID: p.ID})
	require.NoError(t, err)

	h.setNow(schedule[0].DueDate.AddDate(0, 0, 40))
	res, err := h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{RepaymentID: schedule[0].ID})
	require.NoError(t, err)
	assertMoney(t, "0", res.Computed)
	assertMoney(t, "0", res.Accrued)
}

func TestApplyPenalty_Rejected(t *testing.T) {
	h := newHarness(t)
	created, err := h.loans.CreateLoan(h.ctx, createCommand("b-1"))
	require.NoError(t, err)

	_, err = h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{RepaymentID: created.Schedule[0].ID})
	assert.ErrorIs(t, err, customError.ErrLoanNotDisbursed)

	_, err = h.loans.ApplyPenalty(h.ctx, &domain.ApplyPenaltyCommand{})
	assert.ErrorIs(t, err, customError.ErrValidation)
}

func TestRunPenaltySweep(t *testing.T) {
	h := newHarness(t)
	loan, schedule := h.disbursedLoan(t, "b-1")
	_, err := h.loans.CreateLoan(h.ctx, createCommand("b-2"))
	require.NoError(t, err)

	// installment 1 is 30 days past grace, installment 2 one day
	h.setNow(schedule[1].DueDate.AddDate(0, 0, 11))
	h.notifier.reset()

	res, err := h.loans.RunPenaltySweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loans)
	assert.Equal(t, 2, res.Installments)
	assert.Zero(t, res.Failed)
	assertMoney(t, "29.32", res.Accrued)

	stored, after := h.reload(t, loan)
	assertMoney(t, "29.32", stored.TotalPenalties)
	assertMoney(t, "28.37", after[0].PenaltyApplied)
	assertMoney(t, "0.95", after[1].PenaltyApplied)
	assertMoney(t, "0", after[2].PenaltyApplied)
	assert.Equal(t, []notification.Kind{notification.KindPenaltyApplied}, h.notifier.kinds())

	res, err = h.loans.RunPenaltySweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Loans)
	assertMoney(t, "0", res.Accrued)

	stored, _ = h.reload(t, loan)
	assertMoney(t, "29.32", stored.TotalPenalties)
}

func TestSendDueReminders(t *testing.T) {
	h := newHarness(t)
	_, schedule := h.disbursedLoan(t, "b-1")
	// same due dates, but never disbursed
	_, err := h.loans.CreateLoan(h.ctx, createCommand("b-2"))
	require.NoError(t, err)

	h.setNow(schedule[0].DueDate.AddDate(0, 0, -2).Add(8 * time.Hour))
	h.notifier.reset()

	sent, err := h.loans.SendDueReminders(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, h.notifier.got, 1)
	n := h.notifier.got[0]
	assert.Equal(t, notification.KindPaymentDue, n.Kind)
	assert.Equal(t, "b-1", n.BorrowerID)
	assert.Equal(t, schedule[0].ID.String(), n.Data["repayment_id"])

	h.notifier.err = errors.New("smtp down")
	sent, err = h.loans.SendDueReminders(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendDueReminders_NothingDue(t *testing.T) {
	h := newHarness(t)
	h.disbursedLoan(t, "b-1")
	h.notifier.reset()

	sent, err := h.loans.SendDueReminders(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, h.notifier.kinds())
}
