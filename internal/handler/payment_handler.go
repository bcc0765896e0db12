package handler

import (
	"log/slog"
	"net/http"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/pkg/response"
)

type PaymentHandler struct {
	service PaymentService
	logger  *slog.Logger
}

func NewPaymentHandler(service PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// SubmitPayment handles POST /loans/{loanId}/payments.
func (h *PaymentHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	var cmd domain.SubmitPaymentCommand
	if err := decode(r, &cmd); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	cmd.LoanID = loanID

	payment, err := h.service.SubmitPayment(r.Context(), &cmd)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Created(w, payment)
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), loanID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, payments)
}

func (h *PaymentHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathID(r, "paymentId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	res, err := h.service.ApprovePayment(r.Context(), &domain.ApprovePaymentCommand{PaymentID: paymentID})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, res)
}

// RejectPayment handles POST /payments/{paymentId}/reject with {"reason": "..."}.
func (h *PaymentHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathID(r, "paymentId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	var cmd domain.RejectPaymentCommand
	if err := decode(r, &cmd); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	cmd.PaymentID = paymentID

	payment, err := h.service.RejectPayment(r.Context(), &cmd)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	response.Success(w, payment)
}
