package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/courier/internal/ledger"
)

// ErrUnknownOperation is returned by services for operations they do not
// implement. The leg fails with a remote invocation failure.
var ErrUnknownOperation = errors.New("unknown operation")

// RuntimeError is an error raised by the environment itself rather than by
// service code: routing, account lifecycle, budgets and quotas.
//
// When a RuntimeError fails a leg, its text becomes the outcome reason.
// When it rejects a transaction, Submit returns it.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Account is the account involved, if any.
	Account ledger.AccountID

	// TraceToken identifies the affected trace, if known.
	TraceToken string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownAccount: the receiver or signer does not exist.
	ErrCodeUnknownAccount RuntimeErrorCode = "UNKNOWN_ACCOUNT"

	// ErrCodeAccountExists: creation collided with an existing account.
	ErrCodeAccountExists RuntimeErrorCode = "ACCOUNT_EXISTS"

	// ErrCodeUnknownArtifact: install referenced an unregistered artifact.
	ErrCodeUnknownArtifact RuntimeErrorCode = "UNKNOWN_ARTIFACT"

	// ErrCodeNoCode: the receiver has no service installed.
	ErrCodeNoCode RuntimeErrorCode = "NO_CODE"

	// ErrCodeBudgetExhausted: the leg's budget does not cover the base fee,
	// before or after its own work.
	ErrCodeBudgetExhausted RuntimeErrorCode = "BUDGET_EXHAUSTED"

	// ErrCodeInsufficientBalance: a deposit exceeds the payer's balance.
	ErrCodeInsufficientBalance RuntimeErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeQuotaExceeded: the trace exceeded its leg quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeInvalidTransaction: the transaction is malformed.
	ErrCodeInvalidTransaction RuntimeErrorCode = "INVALID_TRANSACTION"

	// ErrCodeServicePanic: service code panicked.
	ErrCodeServicePanic RuntimeErrorCode = "SERVICE_PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.Account)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the RuntimeErrorCode of err, or "" if err is not a
// RuntimeError.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsUnknownAccount reports whether err is an unknown-account error.
func IsUnknownAccount(err error) bool {
	return CodeOf(err) == ErrCodeUnknownAccount
}

// IsAccountExists reports whether err is a creation collision.
func IsAccountExists(err error) bool {
	return CodeOf(err) == ErrCodeAccountExists
}

func newRuntimeError(code RuntimeErrorCode, account ledger.AccountID, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Account: account,
	}
}
