package domain

import (
	"time"

	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/utils"
)

// allowedTransitions lists the forward edges of the loan state machine.
// rejected and cancelled are added for every non-terminal state in init.
var allowedTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusNewApplication: {LoanStatusUnderReview},
	LoanStatusUnderReview:    {LoanStatusApproved},
	LoanStatusApproved:       {LoanStatusForRelease},
	LoanStatusForRelease:     {LoanStatusDisbursed},
	LoanStatusDisbursed:      {LoanStatusClosed, LoanStatusRestructured},
	LoanStatusRestructured:   {},
}

func init() {
	for from, targets := range allowedTransitions {
		allowedTransitions[from] = append(targets, LoanStatusRejected, LoanStatusCancelled)
	}
}

// IsValid reports whether s is a known status.
func (s LoanStatus) IsValid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusClosed || s == LoanStatusRejected || s == LoanStatusCancelled
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to LoanStatus) bool {
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition is the outcome of a lifecycle move.
type Transition struct {
	From    LoanStatus
	To      LoanStatus
	Changed bool
}

// Transition applies a status change and its side effects to the loan.
// Requesting the current status is a no-op. releaseDate defaults to today
// when moving to disbursed.
func (l *Loan) Transition(to LoanStatus, releaseDate *time.Time, today time.Time) (Transition, error) {
	from := l.Status
	if to == from && to.IsValid() {
		return Transition{From: from, To: to}, nil
	}
	if !CanTransition(from, to) {
		return Transition{From: from, To: to}, customError.WrapInvalidTransition(l.Reference, string(from), string(to))
	}

	switch to {
	case LoanStatusDisbursed:
		released := utils.DateOf(today)
		if releaseDate != nil {
			released = utils.DateOf(*releaseDate)
		}
		l.ReleaseDate = &released
		l.TotalDisbursed = l.PrincipalAmount
		l.IsActive = true
	case LoanStatusClosed, LoanStatusRejected, LoanStatusCancelled:
		l.IsActive = false
	}
	l.Status = to

	return Transition{From: from, To: to, Changed: true}, nil
}
