package postgres

import (
	"context"
	"errors"
	"fmt"

	"credit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Get fetches an account by user ID (without locking). Returns nil, nil when
// the user has never been credited, the valid zero-balance state.
func (r *AccountRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT user_id, encrypted_balance, created_at, updated_at
		FROM accounts WHERE user_id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&a.UserID, &a.EncryptedBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// CreateIfAbsent inserts the account row with an encrypted zero balance,
// doing nothing when the row already exists. Runs inside the mutation's
// transaction so the subsequent FOR UPDATE always finds a row to lock.
func (r *AccountRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error {
	query := `INSERT INTO accounts (user_id, encrypted_balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, userID, encryptedBalance); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetForUpdate fetches an account with pessimistic locking. This MUST be
// called within a transaction; the lock is held until commit or rollback,
// serializing all mutations for the same user.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT user_id, encrypted_balance, created_at, updated_at
		FROM accounts WHERE user_id = $1 FOR UPDATE`

	a := &domain.Account{}
	err := tx.QueryRow(ctx, query, userID).Scan(
		&a.UserID, &a.EncryptedBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// UpdateBalance writes a new encrypted balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error {
	query := `UPDATE accounts SET encrypted_balance = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, encryptedBalance, userID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", userID, pgx.ErrNoRows)
	}
	return nil
}
