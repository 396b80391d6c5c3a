package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account holds the current credit balance for one user, encrypted at rest.
// Rows are created lazily by the first credit that touches a user; an absent
// row is the valid "balance is zero" state, not an error.
type Account struct {
	UserID           uuid.UUID `json:"user_id"`
	EncryptedBalance string    `json:"-"` // AES-256-GCM, never expose raw
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
