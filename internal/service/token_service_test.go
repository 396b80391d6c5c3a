package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "credit-ledger")

	token, err := svc.Generate("order-service")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	caller, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "order-service", caller)
}

func TestJWTTokenService_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-a", time.Hour, "credit-ledger")
	other := NewJWTTokenService("secret-b", time.Hour, "credit-ledger")

	token, err := svc.Generate("order-service")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret", -time.Minute, "credit-ledger")

	token, err := svc.Generate("order-service")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "credit-ledger")

	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
