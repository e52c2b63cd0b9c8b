// Package errors provides custom error types for the papertrade API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
//
// Order-validation errors carry the fixed human-readable messages the
// order endpoint surfaces verbatim; callers must not rewrap or rephrase.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Account errors.
var (
	ErrAccountNotFound = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrLedgerNotFound  = &AppError{Code: "LEDGER_NOT_FOUND", Message: "Ledger not found", StatusCode: http.StatusNotFound}
)

// Order validation errors. Messages are fixed constants surfaced unchanged
// to the requester; they are never logged as system failures.
var (
	ErrUnitsNotPositive  = &AppError{Code: "UNITS_NOT_POSITIVE", Message: "Units must be positive", StatusCode: http.StatusBadRequest}
	ErrUnitsNotInteger   = &AppError{Code: "UNITS_NOT_INTEGER", Message: "Units must be integer", StatusCode: http.StatusBadRequest}
	ErrDateInvalid       = &AppError{Code: "DATE_INVALID", Message: "Date is not a valid date", StatusCode: http.StatusBadRequest}
	ErrDateInFuture      = &AppError{Code: "DATE_IN_FUTURE", Message: "Date is in the future", StatusCode: http.StatusBadRequest}
	ErrDateOnWeekend     = &AppError{Code: "DATE_ON_WEEKEND", Message: "Date falls on a weekend", StatusCode: http.StatusBadRequest}
	ErrDateTooOld        = &AppError{Code: "DATE_TOO_OLD", Message: "Date exceeds the allowed lookback period", StatusCode: http.StatusBadRequest}
	ErrInsufficientCash  = &AppError{Code: "INSUFFICIENT_CASH", Message: "Insufficient cash on hand", StatusCode: http.StatusBadRequest}
	ErrInsufficientUnits = &AppError{Code: "INSUFFICIENT_UNITS", Message: "Insufficient units on hand", StatusCode: http.StatusBadRequest}
	ErrSymbolNotFound    = &AppError{Code: "SYMBOL_NOT_FOUND", Message: "Symbol not found", StatusCode: http.StatusNotFound}
)

// Simulator errors.
var (
	ErrSimulatorNotFound   = &AppError{Code: "SIMULATOR_NOT_FOUND", Message: "Simulator not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransition   = &AppError{Code: "INVALID_TRANSITION", Message: "Simulator state does not allow this transition", StatusCode: http.StatusConflict}
	ErrSimulatorNotStarted = &AppError{Code: "SIMULATOR_NOT_STARTED", Message: "Simulator has not started", StatusCode: http.StatusConflict}
	ErrAlreadyJoined       = &AppError{Code: "ALREADY_JOINED", Message: "Account already participates in this simulator", StatusCode: http.StatusConflict}
	ErrStartTimeNotReached = &AppError{Code: "START_TIME_NOT_REACHED", Message: "Simulator start time has not been reached", StatusCode: http.StatusConflict}
)

// Group errors.
var (
	ErrGroupNotFound = &AppError{Code: "GROUP_NOT_FOUND", Message: "Group not found", StatusCode: http.StatusNotFound}
)
