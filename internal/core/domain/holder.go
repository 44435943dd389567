package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a capability granted to a ledger address.
type Role string

const (
	// RoleMintAndBurn authorizes direct mint and burn calls.
	RoleMintAndBurn Role = "MINT_AND_BURN"
	// RoleAdmin authorizes global rate changes.
	RoleAdmin Role = "ADMIN"
)

// Holder is an authenticated identity owning a ledger address.
type Holder struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Argon2id, never exposed
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}
