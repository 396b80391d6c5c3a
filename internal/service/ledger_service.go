package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger/internal/core/domain"
	"credit-ledger/internal/core/ports"
	"credit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// referenceTTL bounds how long the fast-path dedupe marker lives. The log
// query inside the transaction remains authoritative beyond it.
const referenceTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService. It is the only code path
// permitted to change a balance; all mutations run under an exclusive row
// lock so at most one is in flight per user.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	entryRepo   ports.EntryRepository
	refCache    ports.ReferenceCache // nil disables the fast path
	codec       ports.BalanceCodec
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	entryRepo ports.EntryRepository,
	refCache ports.ReferenceCache,
	codec ports.BalanceCodec,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		refCache:    refCache,
		codec:       codec,
		transactor:  transactor,
		log:         log,
	}
}

// GetBalance returns the current balance without locking. An absent account
// row is the valid zero-balance state. A balance that fails the integrity
// check surfaces as an error so corruption is visible as a fault.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	account, err := s.accountRepo.Get(ctx, userID)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return 0, nil
	}

	balance, err := s.codec.Decode(account.EncryptedBalance)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("stored balance failed integrity check")
		return 0, apperror.ErrBalanceIntegrity(err)
	}
	return balance, nil
}

// Credit atomically increases the balance and appends a DEPOSIT entry.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.MutationRequest) (int64, error) {
	return s.apply(ctx, req, domain.EntryTypeDeposit)
}

// Debit atomically decreases the balance provided funds suffice, appending a
// SPEND entry with the negated amount. On InsufficientFunds nothing is
// written: neither the balance nor the log changes.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.MutationRequest) (int64, error) {
	return s.apply(ctx, req, domain.EntryTypeSpend)
}

// Refund behaves like Credit but tags the entry REFUND. Compensating
// movements are exempt from the spend floor, so no upper bound applies.
func (s *LedgerServiceImpl) Refund(ctx context.Context, req ports.MutationRequest) (int64, error) {
	return s.apply(ctx, req, domain.EntryTypeRefund)
}

// History lists ledger entries for a user, newest first, with the total count.
func (s *LedgerServiceImpl) History(ctx context.Context, params ports.EntryListParams) ([]domain.Entry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// Reconcile verifies the conservation invariant for one user: the decoded
// balance must equal the signed sum of all log entries. A mismatch means the
// derived balance and the audit trail diverged and needs operator attention.
func (s *LedgerServiceImpl) Reconcile(ctx context.Context, userID uuid.UUID) (*ports.ReconcileResult, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum, err := s.entryRepo.SumByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("sum entries: %w", err))
	}

	result := &ports.ReconcileResult{
		UserID:     userID,
		Balance:    balance,
		EntrySum:   sum,
		Consistent: balance == sum,
	}
	if !result.Consistent {
		s.log.Error().
			Str("user_id", userID.String()).
			Int64("balance", balance).
			Int64("entry_sum", sum).
			Msg("balance diverged from ledger sum")
	}
	return result, nil
}

// apply runs the shared mutation protocol: begin or join a transaction, lock
// the account row, decode, validate, encode, write back, append the log entry,
// commit if owned. All three mutation kinds go through here so the critical
// section has exactly one shape.
func (s *LedgerServiceImpl) apply(ctx context.Context, req ports.MutationRequest, kind domain.EntryType) (int64, error) {
	if req.Amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}

	// Fast-path dedupe before any transaction work. Best effort: cache errors
	// only log, the in-transaction log query below is authoritative.
	dedupeKey := ""
	if req.ReferenceID != nil && *req.ReferenceID != "" {
		dedupeKey = referenceKey(req.UserID, kind, *req.ReferenceID)
		if s.refCache != nil {
			seen, err := s.refCache.Seen(ctx, dedupeKey)
			if err != nil {
				s.log.Warn().Err(err).Str("key", dedupeKey).Msg("reference cache check failed, falling through to log query")
			} else if seen {
				return 0, apperror.ErrDuplicateReference()
			}
		}
	}

	tx := req.Tx
	owned := tx == nil
	if owned {
		var err error
		tx, err = s.transactor.Begin(ctx)
		if err != nil {
			return 0, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
		}
		defer tx.Rollback(ctx) //nolint:errcheck
	}

	// Credit paths create the account row lazily so the subsequent lock has
	// something to grab; ON CONFLICT DO NOTHING keeps first-touch race-free.
	if kind != domain.EntryTypeSpend {
		zero, err := s.codec.Encode(0)
		if err != nil {
			return 0, apperror.ErrBalanceIntegrity(fmt.Errorf("encode zero balance: %w", err))
		}
		if err := s.accountRepo.CreateIfAbsent(ctx, tx, req.UserID, zero); err != nil {
			return 0, apperror.ErrDatabaseError(fmt.Errorf("ensure account: %w", err))
		}
	}

	account, err := s.accountRepo.GetForUpdate(ctx, tx, req.UserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, apperror.ErrLockTimeout(err)
		}
		return 0, apperror.ErrDatabaseError(fmt.Errorf("lock account: %w", err))
	}

	balance := int64(0)
	if account != nil {
		balance, err = s.codec.Decode(account.EncryptedBalance)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", req.UserID.String()).Msg("stored balance failed integrity check, aborting mutation")
			return 0, apperror.ErrBalanceIntegrity(err)
		}
	}

	signed := req.Amount
	if kind == domain.EntryTypeSpend {
		if balance < req.Amount {
			return 0, apperror.ErrInsufficientFunds()
		}
		signed = -req.Amount
	}

	// Authoritative dedupe, serialized with the mutation by the row lock.
	if dedupeKey != "" {
		existing, err := s.entryRepo.GetByReference(ctx, tx, req.UserID, kind, *req.ReferenceID)
		if err != nil {
			return 0, apperror.ErrDatabaseError(fmt.Errorf("check reference: %w", err))
		}
		if existing != nil {
			return 0, apperror.ErrDuplicateReference()
		}
	}

	newBalance := balance + signed
	encoded, err := s.codec.Encode(newBalance)
	if err != nil {
		return 0, apperror.ErrBalanceIntegrity(fmt.Errorf("encode new balance: %w", err))
	}
	if err := s.accountRepo.UpdateBalance(ctx, tx, req.UserID, encoded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.ErrAccountNotFound()
		}
		return 0, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.Entry{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Amount:      signed,
		Type:        kind,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("append entry: %w", err))
	}

	if owned {
		if err := tx.Commit(ctx); err != nil {
			return 0, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
		}
		// Mark the fast path only once the mutation is durable. Joined
		// transactions skip this: the caller may still roll back.
		if dedupeKey != "" && s.refCache != nil {
			if err := s.refCache.Mark(ctx, dedupeKey, referenceTTL); err != nil {
				s.log.Warn().Err(err).Str("key", dedupeKey).Msg("failed to mark reference in cache")
			}
		}
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("type", string(kind)).
		Int64("amount", signed).
		Int64("new_balance", newBalance).
		Bool("joined_tx", !owned).
		Msg("balance mutation applied")

	return newBalance, nil
}

func referenceKey(userID uuid.UUID, kind domain.EntryType, referenceID string) string {
	return fmt.Sprintf("%s:%s:%s", userID, kind, referenceID)
}
