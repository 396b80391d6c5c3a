package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"credit-ledger/internal/core/domain"
	"credit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EntryRepo implements ports.EntryRepository. The ledger_entries table is
// append-only: there is no update or delete path in this repository.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create appends a ledger entry within the mutation's transaction.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.Entry) error {
	query := `INSERT INTO ledger_entries (id, user_id, amount, entry_type, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Amount, e.Type, e.Description, e.ReferenceID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetByReference finds an entry matching the dedupe scope inside the caller's
// transaction. Returns nil, nil if no duplicate exists.
func (r *EntryRepo) GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType domain.EntryType, referenceID string) (*domain.Entry, error) {
	query := `SELECT id, user_id, amount, entry_type, description, reference_id, created_at
		FROM ledger_entries WHERE user_id = $1 AND entry_type = $2 AND reference_id = $3
		LIMIT 1`

	e := &domain.Entry{}
	err := tx.QueryRow(ctx, query, userID, entryType, referenceID).Scan(
		&e.ID, &e.UserID, &e.Amount, &e.Type, &e.Description, &e.ReferenceID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry by reference: %w", err)
	}
	return e, nil
}

// List returns a page of entries for the filter, newest first, plus the total.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.Entry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("entry_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT id, user_id, amount, entry_type, description, reference_id, created_at
		FROM ledger_entries %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e := domain.Entry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.Description, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, total, nil
}

// SumByUser returns the signed sum of all entries for a user. Zero entries
// sum to zero, matching the absent-balance convention.
func (r *EntryRepo) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return sum, nil
}
