package domain

import "time"

// VaultAddress is the well-known custody address that holds the base asset
// backing all minted ledger units. It is granted MINT_AND_BURN at bootstrap.
const VaultAddress = "vault"

// Account is a single ledger position. Principal is the raw minted-minus-
// burned amount; interest accrued since LastAccrualAt is derived at read
// time and folded into Principal by Realize before any mutation.
type Account struct {
	Address       string    `json:"address"`
	Principal     uint64    `json:"principal"`
	LockedRate    uint64    `json:"locked_rate"`     // 1e18-scaled, per second
	LastAccrualAt int64     `json:"last_accrual_at"` // unix seconds
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAccount creates the account record at its first mint, locking the given
// rate. The rate stays locked for the life of the account, including across
// burns to zero.
func NewAccount(address string, lockedRate uint64, now int64) *Account {
	created := time.Unix(now, 0).UTC()
	return &Account{
		Address:       address,
		LockedRate:    lockedRate,
		LastAccrualAt: now,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

// BalanceAt returns the derived balance at the given instant. It never
// mutates the account; repeated reads at the same instant are identical.
func (a *Account) BalanceAt(now int64) (uint64, error) {
	return DeriveBalance(a.Principal, AccruedMultiplier(a.LockedRate, now-a.LastAccrualAt))
}

// Realize folds interest accrued since LastAccrualAt into Principal and
// advances the timestamp. It must run before any principal delta is applied
// so accrued interest is neither lost nor double-counted. The timestamp
// never moves backward. Returns the interest amount folded in.
func (a *Account) Realize(now int64) (uint64, error) {
	balance, err := a.BalanceAt(now)
	if err != nil {
		return 0, err
	}
	interest := balance - a.Principal
	a.Principal = balance
	if now > a.LastAccrualAt {
		a.LastAccrualAt = now
	}
	return interest, nil
}
