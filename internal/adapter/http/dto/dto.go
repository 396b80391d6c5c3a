package dto

import (
	"time"

	"credit-ledger/internal/core/domain"
	"credit-ledger/internal/core/ports"
)

// MutationRequest is the JSON body for credit, debit and refund calls.
type MutationRequest struct {
	Amount      int64   `json:"amount" binding:"required"`
	Description string  `json:"description" binding:"required,max=500"`
	ReferenceID *string `json:"reference_id,omitempty" binding:"omitempty,max=128"`
}

// BalanceResponse reports a user's current balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// MutationResponse reports the balance after a committed mutation.
type MutationResponse struct {
	UserID     string `json:"user_id"`
	NewBalance int64  `json:"new_balance"`
}

// EntryResponse is one ledger entry in a history listing.
type EntryResponse struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	ReferenceID *string   `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse is a page of ledger entries.
type HistoryResponse struct {
	Entries  []EntryResponse `json:"entries"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// HistoryQuery holds the query-string filters for history listings.
type HistoryQuery struct {
	Type     *string `form:"type" binding:"omitempty,oneof=DEPOSIT SPEND REFUND"`
	From     *int64  `form:"from"`
	To       *int64  `form:"to"`
	Page     int     `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int     `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

// ToEntryResponse converts a domain entry for the wire.
func ToEntryResponse(e domain.Entry) EntryResponse {
	return EntryResponse{
		ID:          e.ID.String(),
		Amount:      e.Amount,
		Type:        string(e.Type),
		Description: e.Description,
		ReferenceID: e.ReferenceID,
		CreatedAt:   e.CreatedAt,
	}
}

// ToHistoryResponse assembles the history page envelope.
func ToHistoryResponse(entries []domain.Entry, total int64, params ports.EntryListParams) HistoryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToEntryResponse(e))
	}
	return HistoryResponse{
		Entries:  out,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
}
