package ports

import (
	"context"
	"time"

	"credit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for account balances.
// Methods accepting pgx.Tx run inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	// Get fetches an account without locking. Returns nil, nil if absent.
	Get(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	// CreateIfAbsent inserts an account row with the given encrypted zero
	// balance, doing nothing if the row already exists. Race-free lazy creation.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error
	// GetForUpdate fetches an account with an exclusive row lock.
	// MUST be called within a transaction. Returns nil, nil if absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error)
	// UpdateBalance writes a new encrypted balance within a transaction.
	UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error
}

// EntryRepository defines persistence for the append-only transaction log.
// Entries are never updated or deleted.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.Entry) error
	// GetByReference finds an existing entry with the same dedupe scope.
	// Runs inside the caller's transaction so the check is serialized with
	// the mutation it guards. Returns nil, nil if no duplicate exists.
	GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType domain.EntryType, referenceID string) (*domain.Entry, error)
	// List returns a page of entries plus the total count for the filter.
	List(ctx context.Context, params EntryListParams) ([]domain.Entry, int64, error)
	// SumByUser returns the signed sum of all entries for a user.
	SumByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	UserID   uuid.UUID
	Type     *domain.EntryType
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// ReferenceCache is the best-effort fast path for reference deduplication.
// The authoritative check is the log query inside the locked transaction;
// cache failures are logged and ignored.
type ReferenceCache interface {
	// Seen reports whether the dedupe key has been marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the dedupe key with a TTL.
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
