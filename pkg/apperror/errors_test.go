package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	err := New("LED_001", "Amount must be positive", http.StatusBadRequest)
	assert.Equal(t, "[LED_001] Amount must be positive", err.Error())

	wrapped := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "SYS_001")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrBalanceIntegrity(fmt.Errorf("decrypt: %w", cause))

	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	require.True(t, errors.As(error(err), &appErr))
	assert.Equal(t, "SYS_003", appErr.Code)
}

func TestLedgerErrorCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrInvalidAmount(), "LED_001", http.StatusBadRequest},
		{ErrInsufficientFunds(), "LED_002", http.StatusPaymentRequired},
		{ErrAccountNotFound(), "LED_003", http.StatusNotFound},
		{ErrDuplicateReference(), "LED_004", http.StatusConflict},
		{ErrInvalidToken(), "AUTH_001", http.StatusUnauthorized},
		{ErrDatabaseError(errors.New("x")), "SYS_001", http.StatusInternalServerError},
		{ErrLockTimeout(errors.New("x")), "SYS_002", http.StatusServiceUnavailable},
		{ErrBalanceIntegrity(errors.New("x")), "SYS_003", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, tt.status, tt.err.HTTPStatus)
	}
}
