package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/handler"
	"github.com/segyhp/loan-engine/internal/logging"
	"github.com/segyhp/loan-engine/internal/metrics"
	"github.com/segyhp/loan-engine/internal/service"
	"github.com/segyhp/loan-engine/internal/testutil/mocks"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type testServer struct {
	router   http.Handler
	loans    *mocks.MockLoanService
	payments *mocks.MockPaymentService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	loans := mocks.NewMockLoanService()
	payments := mocks.NewMockPaymentService()
	logger := logging.Discard()

	router := handler.NewRouter(handler.RouterConfig{
		Loans:    handler.NewLoanHandler(loans, logger),
		Payments: handler.NewPaymentHandler(payments, logger),
		Health:   handler.NewHealthHandler(fakePinger{}, nil, time.Second),
		Metrics:  metrics.New(),
		Logger:   logger,
	})

	t.Cleanup(func() {
		loans.AssertExpectations(t)
		payments.AssertExpectations(t)
	})
	return &testServer{router: router, loans: loans, payments: payments}
}

func (s *testServer) do(method, path, body string, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(handler.UserHeader, user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func actedBy(user string) interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		id, ok := service.IdentityFrom(ctx)
		return ok && id == user
	})
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestLoanHandler_CreateLoan(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		user           string
		setupMock      func(*mocks.MockLoanService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful loan creation",
			body: `{"borrower_id":"b-1","principal_amount":"10000","interest_rate":24,"tenor_months":12,"application_date":"2024-01-15T00:00:00Z"}`,
			user: "officer-1",
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", actedBy("officer-1"), mock.MatchedBy(func(cmd *domain.CreateLoanCommand) bool {
					return cmd.BorrowerID == "b-1" &&
						cmd.PrincipalAmount.Equal(decimal.NewFromInt(10000)) &&
						cmd.InterestRate.Equal(decimal.NewFromInt(24)) &&
						cmd.TenorMonths == 12
				})).Return(&domain.CreateLoanResponse{
					Loan: &domain.Loan{ID: uuid.New(), Reference: "LN-20240115-ABC123"},
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   "LN-20240115-ABC123",
		},
		{
			name:           "invalid JSON payload",
			body:           `{"borrower_id":`,
			user:           "officer-1",
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid JSON payload",
		},
		{
			name: "validation error from service",
			body: `{"borrower_id":"b-1","principal_amount":"10000","interest_rate":24,"tenor_months":24}`,
			user: "officer-1",
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, mock.Anything).
					Return(nil, customError.WrapFieldError("tenor_months", "must be one of 6 12 36")).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "must be one of 6 12 36",
		},
		{
			name: "missing acting user",
			body: `{"borrower_id":"b-1"}`,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, mock.Anything).Return(nil, customError.WrapUnauthenticated()).Once()
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "UNAUTHENTICATED",
		},
		{
			name: "infrastructure failure",
			body: `{"borrower_id":"b-1"}`,
			user: "officer-1",
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, mock.Anything).
					Return(nil, customError.WrapDatabaseError(errors.New("pq: too many connections"))).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMock(s.loans)

			w := s.do(http.MethodPost, "/api/v1/loans", tt.body, tt.user)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.NotContains(t, w.Body.String(), "too many connections")
		})
	}
}

func TestLoanHandler_TransitionLoan(t *testing.T) {
	loanID := uuid.New()

	t.Run("passes status and path id", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("TransitionLoan", actedBy("officer-1"), mock.MatchedBy(func(cmd *domain.TransitionLoanCommand) bool {
			return cmd.LoanID == loanID && cmd.ToStatus == domain.LoanStatusDisbursed && cmd.ReleaseDate != nil
		})).Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusDisbursed}, nil).Once()

		w := s.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/transitions",
			`{"status":"disbursed","release_date":"2024-01-20T00:00:00Z"}`, "officer-1")

		require.Equal(t, http.StatusOK, w.Code)
		var loan domain.Loan
		decodeData(t, w, &loan)
		assert.Equal(t, domain.LoanStatusDisbursed, loan.Status)
	})

	t.Run("invalid transition", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("TransitionLoan", mock.Anything, mock.Anything).
			Return(nil, customError.WrapInvalidTransition("LN-1", "new_application", "disbursed")).Once()

		w := s.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/transitions", `{"status":"disbursed"}`, "officer-1")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
	})

	t.Run("malformed loan id", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/v1/loans/not-a-uuid/transitions", `{"status":"disbursed"}`, "officer-1")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "loanId")
	})
}

func TestLoanHandler_Reads(t *testing.T) {
	loanID := uuid.New()
	base := "/api/v1/loans/" + loanID.String()

	t.Run("outstanding", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("GetOutstanding", mock.Anything, loanID).Return(&domain.OutstandingResponse{
			LoanID:      loanID,
			Reference:   "LN-1",
			Outstanding: decimal.RequireFromString("10401.55"),
		}, nil).Once()

		w := s.do(http.MethodGet, base+"/outstanding", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		var out domain.OutstandingResponse
		decodeData(t, w, &out)
		assert.True(t, decimal.RequireFromString("10401.55").Equal(out.Outstanding))
	})

	t.Run("loan not found", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("GetLoan", mock.Anything, loanID).Return(nil, customError.WrapLoanNotFound(loanID.String())).Once()

		w := s.do(http.MethodGet, base, "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "LOAN_NOT_FOUND")
	})

	t.Run("schedule", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("GetSchedule", mock.Anything, loanID).Return(&domain.ScheduleResponse{
			LoanID:   loanID,
			Schedule: []*domain.Repayment{{InstallmentNumber: 1}, {InstallmentNumber: 2}},
		}, nil).Once()

		w := s.do(http.MethodGet, base+"/schedule", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		var sched domain.ScheduleResponse
		decodeData(t, w, &sched)
		assert.Len(t, sched.Schedule, 2)
	})

	t.Run("delinquency", func(t *testing.T) {
		s := newTestServer(t)
		s.loans.On("GetDelinquency", mock.Anything, loanID).Return(&domain.DelinquencyStatus{
			LoanID:            loanID,
			ConsecutiveMissed: 2,
			Delinquent:        true,
		}, nil).Once()

		w := s.do(http.MethodGet, base+"/delinquency", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		var status domain.DelinquencyStatus
		decodeData(t, w, &status)
		assert.True(t, status.Delinquent)
	})
}

func TestLoanHandler_ApplyPenalty(t *testing.T) {
	s := newTestServer(t)
	repaymentID := uuid.New()
	s.loans.On("ApplyPenalty", actedBy("officer-1"), mock.MatchedBy(func(cmd *domain.ApplyPenaltyCommand) bool {
		return cmd.RepaymentID == repaymentID &&
			cmd.GraceDaysOverride != nil && *cmd.GraceDaysOverride == 0 &&
			cmd.DailyRateOverride == nil
	})).Return(&domain.PenaltyResult{DaysOverdue: 40, Accrued: decimal.RequireFromString("9.45")}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/repayments/"+repaymentID.String()+"/penalty", `{"grace_days":0}`, "officer-1")

	require.Equal(t, http.StatusOK, w.Code)
	var res domain.PenaltyResult
	decodeData(t, w, &res)
	assert.Equal(t, 40, res.DaysOverdue)
}

func TestPaymentHandler_SubmitPayment(t *testing.T) {
	s := newTestServer(t)
	loanID := uuid.New()
	s.payments.On("SubmitPayment", actedBy("teller-2"), mock.MatchedBy(func(cmd *domain.SubmitPaymentCommand) bool {
		return cmd.LoanID == loanID && cmd.Amount.Equal(decimal.RequireFromString("945.60")) && cmd.RepaymentID == nil
	})).Return(&domain.Payment{ID: uuid.New(), LoanID: loanID, Status: domain.PaymentStatusPending}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments", `{"amount":"945.60"}`, "teller-2")

	require.Equal(t, http.StatusCreated, w.Code)
	var p domain.Payment
	decodeData(t, w, &p)
	assert.Equal(t, domain.PaymentStatusPending, p.Status)
}

func TestPaymentHandler_Review(t *testing.T) {
	paymentID := uuid.New()

	tests := []struct {
		name           string
		path           string
		body           string
		setupMock      func(*mocks.MockPaymentService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "approve",
			path: "/approve",
			setupMock: func(m *mocks.MockPaymentService) {
				m.On("ApprovePayment", actedBy("officer-1"), &domain.ApprovePaymentCommand{PaymentID: paymentID}).
					Return(&domain.PaymentResult{
						Payment:    &domain.Payment{ID: paymentID, Status: domain.PaymentStatusApproved},
						Loan:       &domain.Loan{Status: domain.LoanStatusClosed},
						LoanClosed: true,
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"loan_closed":true`,
		},
		{
			name: "approve twice",
			path: "/approve",
			setupMock: func(m *mocks.MockPaymentService) {
				m.On("ApprovePayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapNotPending(paymentID.String(), "approved")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   "PAYMENT_NOT_PENDING",
		},
		{
			name: "approve on closed loan",
			path: "/approve",
			setupMock: func(m *mocks.MockPaymentService) {
				m.On("ApprovePayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapLoanNotDisbursed("LN-1", "closed")).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "LOAN_NOT_DISBURSED",
		},
		{
			name: "reject with reason",
			path: "/reject",
			body: `{"reason":"bounced cheque"}`,
			setupMock: func(m *mocks.MockPaymentService) {
				m.On("RejectPayment", actedBy("officer-1"), &domain.RejectPaymentCommand{PaymentID: paymentID, Reason: "bounced cheque"}).
					Return(&domain.Payment{ID: paymentID, Status: domain.PaymentStatusRejected}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"rejected"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMock(s.payments)

			w := s.do(http.MethodPost, "/api/v1/payments/"+paymentID.String()+tt.path, tt.body, "officer-1")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	s := newTestServer(t)
	loanID := uuid.New()
	s.payments.On("ListPayments", mock.Anything, loanID).Return([]*domain.Payment{{ID: uuid.New()}, {ID: uuid.New()}}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/loans/"+loanID.String()+"/payments", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	var payments []*domain.Payment
	decodeData(t, w, &payments)
	assert.Len(t, payments, 2)
}

func TestRouter_MetricsUseRouteTemplates(t *testing.T) {
	s := newTestServer(t)
	loanID := uuid.New()
	s.loans.On("GetLoan", mock.Anything, loanID).Return(nil, customError.WrapLoanNotFound(loanID.String())).Once()

	s.do(http.MethodGet, "/api/v1/loans/"+loanID.String(), "", "")
	w := s.do(http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/v1/loans/{loanId}"`)
	assert.NotContains(t, w.Body.String(), loanID.String())
}

func TestHealthHandler_Ready(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	t.Run("all checks pass", func(t *testing.T) {
		h := handler.NewHealthHandler(fakePinger{}, client, time.Second)
		w := httptest.NewRecorder()
		h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var status handler.HealthStatus
		decodeData(t, w, &status)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, status.Checks)
	})

	t.Run("database down", func(t *testing.T) {
		h := handler.NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil, time.Second)
		w := httptest.NewRecorder()
		h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "failed: connection refused")
	})
}

func TestHealthHandler_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
