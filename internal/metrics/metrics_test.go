package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.LoansCreated.Inc()
	m.Transitions.WithLabelValues("disbursed").Inc()
	m.PaymentsReviewed.WithLabelValues("approved").Inc()
	m.AmountApproved.Add(945.60)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoansCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("disbursed")))
	assert.InDelta(t, 945.60, testutil.ToFloat64(m.AmountApproved), 1e-9)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/loans/{loanId}", http.StatusOK, 20*time.Millisecond)
	m.PaymentsSubmitted.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "loan_engine_payments_submitted_total 1")
	assert.Contains(t, body, `loan_engine_http_request_duration_seconds_count{method="GET",route="/api/v1/loans/{loanId}",status="200"} 1`)
}
