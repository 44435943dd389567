package domain

import "time"

// AssetAccount holds a balance of the base asset the vault custodies 1:1
// against minted ledger units. The vault's own custody account lives at
// VaultAddress.
type AssetAccount struct {
	Address   string    `json:"address"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
