package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrRepaymentNotFound    = errors.New("repayment not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrBorrowerNotFound     = errors.New("borrower not found")
	ErrInvalidTransition    = errors.New("invalid loan status transition")
	ErrNotPending           = errors.New("payment is not pending")
	ErrLoanNotDisbursed     = errors.New("loan is not disbursed")
	ErrLoanInactive         = errors.New("loan is inactive")
	ErrNoOutstandingBalance = errors.New("no outstanding balance")
	ErrArithmeticInvariant  = errors.New("arithmetic invariant violated")
	ErrUnauthenticated      = errors.New("acting user is required")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeLoanNotFound         = "LOAN_NOT_FOUND"
	ErrCodeRepaymentNotFound    = "REPAYMENT_NOT_FOUND"
	ErrCodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	ErrCodeBorrowerNotFound     = "BORROWER_NOT_FOUND"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeNotPending           = "PAYMENT_NOT_PENDING"
	ErrCodeLoanNotDisbursed     = "LOAN_NOT_DISBURSED"
	ErrCodeLoanInactive         = "LOAN_INACTIVE"
	ErrCodeNoOutstandingBalance = "NO_OUTSTANDING_BALANCE"
	ErrCodeArithmeticInvariant  = "ARITHMETIC_INVARIANT"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" when err is not a
// BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsBusiness reports whether err already carries a business code.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

func WrapValidation(fields map[string]string) *BusinessError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &BusinessError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("invalid fields: %s", strings.Join(keys, ", ")),
		Err:     ErrValidation,
		Fields:  fields,
	}
}

func WrapFieldError(field, message string) *BusinessError {
	return WrapValidation(map[string]string{field: message})
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapRepaymentNotFound(repaymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRepaymentNotFound,
		fmt.Sprintf("Repayment with ID %s not found", repaymentID),
		ErrRepaymentNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapBorrowerNotFound(borrowerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeBorrowerNotFound,
		fmt.Sprintf("Borrower with ID %s not found", borrowerID),
		ErrBorrowerNotFound,
	)
}

func WrapInvalidTransition(loanRef, from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Loan %s cannot move from %s to %s", loanRef, from, to),
		ErrInvalidTransition,
	)
}

func WrapNotPending(paymentID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotPending,
		fmt.Sprintf("Payment %s is %s, not pending", paymentID, status),
		ErrNotPending,
	)
}

func WrapLoanNotDisbursed(loanRef, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotDisbursed,
		fmt.Sprintf("Loan %s is %s and cannot receive payments", loanRef, status),
		ErrLoanNotDisbursed,
	)
}

func WrapLoanInactive(loanRef string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanInactive,
		fmt.Sprintf("Loan %s is inactive", loanRef),
		ErrLoanInactive,
	)
}

func WrapNoOutstandingBalance(loanRef string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstandingBalance,
		fmt.Sprintf("Loan %s has no outstanding balance", loanRef),
		ErrNoOutstandingBalance,
	)
}

func WrapArithmeticInvariant(detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeArithmeticInvariant,
		detail,
		ErrArithmeticInvariant,
	)
}

func WrapUnauthenticated() *BusinessError {
	return NewBusinessError(
		ErrCodeUnauthenticated,
		"an acting user is required for this operation",
		ErrUnauthenticated,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
