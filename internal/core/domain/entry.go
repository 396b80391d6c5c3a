package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a ledger entry for display and analytics. Direction is
// always reconstructed from the sign of Amount, never from the type alone.
type EntryType string

const (
	EntryTypeDeposit EntryType = "DEPOSIT"
	EntryTypeSpend   EntryType = "SPEND"
	EntryTypeRefund  EntryType = "REFUND"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeSpend, EntryTypeRefund:
		return true
	}
	return false
}

// Entry is one immutable, append-only ledger record. The stored Amount is
// signed: positive for deposits and refunds, negative for spends. The sum of
// all entries for a user always equals that user's decoded balance.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"` // in smallest credit unit, signed
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
	ReferenceID *string   `json:"reference_id,omitempty"` // opaque caller pointer, never dereferenced
	CreatedAt   time.Time `json:"created_at"`
}

// IsCredit returns true if the entry increased the balance.
func (e *Entry) IsCredit() bool {
	return e.Amount > 0
}
