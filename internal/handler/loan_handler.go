package handler

import (
	"log/slog"
	"net/http"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/pkg/response"
)

type LoanHandler struct {
	service LoanService
	logger  *slog.Logger
}

func NewLoanHandler(service LoanService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{service: service, logger: logger}
}

// CreateLoan handles POST /loans.
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var cmd domain.CreateLoanCommand
	if err := decode(r, &cmd); err != nil {
		fail(h.logger, w, r, err)
		return
	}

	res, err := h.service.CreateLoan(r.Context(), &cmd)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Created(w, res)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	details, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, details)
}

func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, schedule)
}

func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, outstanding)
}

func (h *LoanHandler) GetDelinquency(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	status, err := h.service.GetDelinquency(r.Context(), loanID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, status)
}

// TransitionLoan handles POST /loans/{loanId}/transitions.
func (h *LoanHandler) TransitionLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	var cmd domain.TransitionLoanCommand
	if err := decode(r, &cmd); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	cmd.LoanID = loanID

	loan, err := h.service.TransitionLoan(r.Context(), &cmd)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, loan)
}

// ApplyPenalty handles POST /repayments/{repaymentId}/penalty.
func (h *LoanHandler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	repaymentID, err := pathID(r, "repaymentId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	var cmd domain.ApplyPenaltyCommand
	if err := decode(r, &cmd); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	cmd.RepaymentID = repaymentID

	res, err := h.service.ApplyPenalty(r.Context(), &cmd)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, res)
}
