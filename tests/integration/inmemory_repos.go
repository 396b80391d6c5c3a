package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"credit-ledger/internal/core/domain"
	"credit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is the shared backing state for the in-memory repos. It simulates
// the row-level locking the real repos get from SELECT ... FOR UPDATE: each
// account has a mutex that a transaction holds from first lock until commit
// or rollback, so concurrent mutations of one user serialize exactly as they
// would against PostgreSQL.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]string // userID -> encrypted balance
	entries  []domain.Entry
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]string),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *memStore) rowLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[userID] = l
	}
	return l
}

// --- Transaction ---

// memTx buffers writes until Commit so a rollback discards everything, and
// releases held row locks when the transaction ends either way.
type memTx struct {
	store           *memStore
	mu              sync.Mutex
	held            map[uuid.UUID]bool
	pendingCreates  map[uuid.UUID]string
	pendingBalances map[uuid.UUID]string
	pendingEntries  []domain.Entry
	done            bool
}

func newMemTx(store *memStore) *memTx {
	return &memTx{
		store:           store,
		held:            make(map[uuid.UUID]bool),
		pendingCreates:  make(map[uuid.UUID]string),
		pendingBalances: make(map[uuid.UUID]string),
	}
}

// lockRow takes the per-user lock unless this transaction already holds it.
func (t *memTx) lockRow(userID uuid.UUID) {
	t.mu.Lock()
	if t.held[userID] {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	// Block outside t.mu so a tx waiting on a row lock does not wedge its own
	// bookkeeping.
	t.store.rowLock(userID).Lock()

	t.mu.Lock()
	t.held[userID] = true
	t.mu.Unlock()
}

func (t *memTx) releaseLocks() {
	for userID := range t.held {
		t.store.rowLock(userID).Unlock()
	}
	t.held = make(map[uuid.UUID]bool)
}

func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}

	s := t.store
	s.mu.Lock()
	for userID, enc := range t.pendingCreates {
		if _, ok := s.accounts[userID]; !ok {
			s.accounts[userID] = enc
		}
	}
	for userID, enc := range t.pendingBalances {
		s.accounts[userID] = enc
	}
	s.entries = append(s.entries, t.pendingEntries...)
	s.mu.Unlock()

	t.releaseLocks()
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.pendingCreates = make(map[uuid.UUID]string)
	t.pendingBalances = make(map[uuid.UUID]string)
	t.pendingEntries = nil
	t.releaseLocks()
	t.done = true
	return nil
}

// Remaining pgx.Tx methods are unused by the repos.
func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type memTransactor struct {
	store *memStore
}

func newMemTransactor(store *memStore) *memTransactor {
	return &memTransactor{store: store}
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return newMemTx(t.store), nil
}

// --- Account Repo ---

type memAccountRepo struct {
	store *memStore
}

func newMemAccountRepo(store *memStore) *memAccountRepo {
	return &memAccountRepo{store: store}
}

func (r *memAccountRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	enc, ok := r.store.accounts[userID]
	if !ok {
		return nil, nil
	}
	return &domain.Account{UserID: userID, EncryptedBalance: enc}, nil
}

func (r *memAccountRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error {
	mt, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type %T", tx)
	}
	// Like INSERT ... ON CONFLICT, a concurrent creator blocks us until it
	// resolves, then the insert becomes a no-op.
	mt.lockRow(userID)

	r.store.mu.Lock()
	_, exists := r.store.accounts[userID]
	r.store.mu.Unlock()
	if exists {
		return nil
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if _, pending := mt.pendingCreates[userID]; !pending {
		mt.pendingCreates[userID] = encryptedBalance
	}
	return nil
}

func (r *memAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}
	mt.lockRow(userID)

	mt.mu.Lock()
	if enc, ok := mt.pendingBalances[userID]; ok {
		mt.mu.Unlock()
		return &domain.Account{UserID: userID, EncryptedBalance: enc}, nil
	}
	if enc, ok := mt.pendingCreates[userID]; ok {
		mt.mu.Unlock()
		return &domain.Account{UserID: userID, EncryptedBalance: enc}, nil
	}
	mt.mu.Unlock()

	return r.Get(ctx, userID)
}

func (r *memAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, encryptedBalance string) error {
	mt, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type %T", tx)
	}

	r.store.mu.Lock()
	_, committed := r.store.accounts[userID]
	r.store.mu.Unlock()

	mt.mu.Lock()
	defer mt.mu.Unlock()
	_, pendingCreate := mt.pendingCreates[userID]
	_, pendingBalance := mt.pendingBalances[userID]
	if !committed && !pendingCreate && !pendingBalance {
		return fmt.Errorf("account %s: %w", userID, pgx.ErrNoRows)
	}
	mt.pendingBalances[userID] = encryptedBalance
	return nil
}

// --- Entry Repo ---

type memEntryRepo struct {
	store *memStore
}

func newMemEntryRepo(store *memStore) *memEntryRepo {
	return &memEntryRepo{store: store}
}

func (r *memEntryRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.Entry) error {
	mt, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type %T", tx)
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.pendingEntries = append(mt.pendingEntries, *entry)
	return nil
}

func (r *memEntryRepo) GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType domain.EntryType, referenceID string) (*domain.Entry, error) {
	matches := func(e domain.Entry) bool {
		return e.UserID == userID && e.Type == entryType &&
			e.ReferenceID != nil && *e.ReferenceID == referenceID
	}

	r.store.mu.Lock()
	for i := range r.store.entries {
		if matches(r.store.entries[i]) {
			e := r.store.entries[i]
			r.store.mu.Unlock()
			return &e, nil
		}
	}
	r.store.mu.Unlock()

	if mt, ok := tx.(*memTx); ok {
		mt.mu.Lock()
		defer mt.mu.Unlock()
		for i := range mt.pendingEntries {
			if matches(mt.pendingEntries[i]) {
				e := mt.pendingEntries[i]
				return &e, nil
			}
		}
	}
	return nil, nil
}

func (r *memEntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.Entry, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.Entry
	for _, e := range r.store.entries {
		if e.UserID != params.UserID {
			continue
		}
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		if params.From != nil && e.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && e.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Entry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *memEntryRepo) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sum int64
	for _, e := range r.store.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}
