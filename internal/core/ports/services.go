package ports

import (
	"context"

	"credit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceCodec turns a balance into an opaque, tamper-evident string and back.
// Encoding is intentionally non-deterministic (fresh nonce per call); decoding
// an empty representation yields 0, the canonical "no record yet" case.
type BalanceCodec interface {
	Encode(balance int64) (string, error)
	Decode(encoded string) (int64, error)
}

// LedgerService is the only sanctioned way to read or mutate a balance.
type LedgerService interface {
	// GetBalance returns the current balance without locking. Absent account
	// means 0; a balance that fails integrity checks surfaces as an error.
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	// Credit increases the balance and appends a DEPOSIT entry.
	Credit(ctx context.Context, req MutationRequest) (int64, error)
	// Debit decreases the balance if funds suffice and appends a SPEND entry
	// with the negated amount. Fails with InsufficientFunds otherwise,
	// writing nothing.
	Debit(ctx context.Context, req MutationRequest) (int64, error)
	// Refund increases the balance like Credit but tags the entry REFUND.
	// Compensating movements are never subject to the spend floor.
	Refund(ctx context.Context, req MutationRequest) (int64, error)
	// History lists ledger entries for a user, newest first.
	History(ctx context.Context, params EntryListParams) ([]domain.Entry, int64, error)
	// Reconcile checks the conservation invariant: decoded balance equals the
	// signed sum of all log entries for the user.
	Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error)
}

// MutationRequest holds validated input for a balance mutation.
type MutationRequest struct {
	UserID      uuid.UUID
	Amount      int64   // must be > 0; the service applies the sign
	Description string  // caller-supplied reason, free text
	ReferenceID *string // optional opaque pointer to the causing entity
	// Tx, when non-nil, is a caller-owned transaction the mutation joins:
	// the service neither commits nor rolls it back. When nil the service
	// owns a self-contained transaction for the call.
	Tx pgx.Tx
}

// ReconcileResult reports the balance-vs-log comparison for one user.
type ReconcileResult struct {
	UserID     uuid.UUID `json:"user_id"`
	Balance    int64     `json:"balance"`
	EntrySum   int64     `json:"entry_sum"`
	Consistent bool      `json:"consistent"`
}

// TokenService issues and validates bearer tokens for internal callers of the
// fronting API (order processing, reward granting, admin tooling).
type TokenService interface {
	Generate(caller string) (string, error)
	Validate(tokenString string) (string, error) // returns caller name
}

// HealthChecker verifies connectivity of a backing store.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}
