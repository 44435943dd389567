package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryTypeMint       EntryType = "MINT"
	EntryTypeBurn       EntryType = "BURN"
	EntryTypeTransfer   EntryType = "TRANSFER"
	EntryTypeAccrual    EntryType = "ACCRUAL"
	EntryTypeRateChange EntryType = "RATE_CHANGE"
)

// LedgerEntry is an immutable record of one principal movement or rate
// change. The append-only entry stream is the accounting ground truth:
// sum of all principals == Σ(MINT) + Σ(ACCRUAL) − Σ(BURN) at every commit.
type LedgerEntry struct {
	ID        uuid.UUID `json:"id"`
	Type      EntryType `json:"type"`
	From      *string   `json:"from,omitempty"` // nil for MINT, ACCRUAL, RATE_CHANGE
	To        *string   `json:"to,omitempty"`   // nil for BURN, RATE_CHANGE
	Amount    uint64    `json:"amount"`         // principal delta; the new rate for RATE_CHANGE
	CreatedAt time.Time `json:"created_at"`
}

// ChangesSupply reports whether the entry changes total principal.
func (e *LedgerEntry) ChangesSupply() bool {
	return e.Type == EntryTypeMint || e.Type == EntryTypeBurn || e.Type == EntryTypeAccrual
}

// GlobalRate is the protocol-wide rate assigned to accounts at their first
// mint. It only ever decreases (see LedgerService.SetGlobalRate).
type GlobalRate struct {
	CurrentRate uint64    `json:"current_rate"` // 1e18-scaled, per second
	UpdatedAt   time.Time `json:"updated_at"`
}

// SupplyStats aggregates the entry stream for the conservation surface.
type SupplyStats struct {
	TotalMinted    uint64 `json:"total_minted"`
	TotalBurned    uint64 `json:"total_burned"`
	TotalAccrued   uint64 `json:"total_accrued"`
	TotalPrincipal uint64 `json:"total_principal"`
}

// Conserved reports whether the principal sum matches the entry stream.
func (s *SupplyStats) Conserved() bool {
	return s.TotalMinted+s.TotalAccrued-s.TotalBurned == s.TotalPrincipal
}
