package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

// ErrInvalidAmount rejects non-positive mutation amounts before any I/O.
func ErrInvalidAmount() *AppError {
	return New("LED_001", "Amount must be positive", http.StatusBadRequest)
}

// ErrInsufficientFunds rejects a spend that would drive the balance negative.
func ErrInsufficientFunds() *AppError {
	return New("LED_002", "Insufficient credit balance", http.StatusPaymentRequired)
}

// ErrAccountNotFound covers operations whose account context is missing,
// as opposed to the valid zero-balance state of a never-touched user.
func ErrAccountNotFound() *AppError {
	return New("LED_003", "Account not found", http.StatusNotFound)
}

// ErrDuplicateReference rejects a mutation whose reference was already logged
// for the same user and entry type.
func ErrDuplicateReference() *AppError {
	return New("LED_004", "Reference already processed", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// ErrBalanceIntegrity marks a stored balance that failed authentication or
// decoding. Treated as data corruption, fatal for the operation in progress.
func ErrBalanceIntegrity(err error) *AppError {
	return Wrap("SYS_003", "Stored balance failed integrity check", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_001-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_001", message, http.StatusBadRequest)
}
