package dto

// Amounts and rates travel as decimal strings: uint64 values exceed the
// safe integer range of common JSON consumers. The maximum uint64 value
// is the documented "entire balance" sentinel on burn, transfer, and
// redeem requests.

// RegisterRequest is the request body for holder registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for holder login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	HolderID string `json:"holder_id"`
	Address  string `json:"address"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TransferRequest is the request body for a peer transfer.
type TransferRequest struct {
	To     string `json:"to" binding:"required,max=64,safe_id"`
	Amount string `json:"amount" binding:"required,uint_str"`
}

// MintRequest is the request body for minting units.
type MintRequest struct {
	To     string `json:"to" binding:"required,max=64,safe_id"`
	Amount string `json:"amount" binding:"required,uint_str"`
}

// BurnRequest is the request body for burning units.
type BurnRequest struct {
	From   string `json:"from" binding:"required,max=64,safe_id"`
	Amount string `json:"amount" binding:"required,uint_str"`
}

// SetRateRequest is the request body for lowering the global rate.
type SetRateRequest struct {
	Rate string `json:"rate" binding:"required,uint_str"`
}

// DepositRequest is the request body for a vault deposit.
type DepositRequest struct {
	Amount      string `json:"amount" binding:"required,uint_str"`
	ReferenceID string `json:"reference_id" binding:"required,max=100,safe_id"`
}

// RedeemRequest is the request body for a vault redemption.
type RedeemRequest struct {
	Amount      string `json:"amount" binding:"required,uint_str"`
	ReferenceID string `json:"reference_id" binding:"required,max=100,safe_id"`
}

// BalanceResponse is the response for a derived balance query.
type BalanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	Principal  string `json:"principal"`
	LockedRate string `json:"locked_rate"`
	At         int64  `json:"at"` // Unix timestamp the balance was derived at
}

// AccountResponse is the response for a raw account query.
type AccountResponse struct {
	Address       string `json:"address"`
	Principal     string `json:"principal"`
	LockedRate    string `json:"locked_rate"`
	LastAccrualAt int64  `json:"last_accrual_at"`
	CreatedAt     string `json:"created_at"`
}

// TransferResponse reports both legs of a completed transfer.
type TransferResponse struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	FromPrincipal string `json:"from_principal"`
	ToPrincipal   string `json:"to_principal"`
}

// MintResponse reports the recipient state after a mint.
type MintResponse struct {
	To         string `json:"to"`
	Minted     string `json:"minted"`
	Principal  string `json:"principal"`
	LockedRate string `json:"locked_rate"`
}

// BurnResponse reports the source state after a burn.
type BurnResponse struct {
	From      string `json:"from"`
	Burned    string `json:"burned"`
	Principal string `json:"principal"`
}

// RateResponse is the response for a global rate query.
type RateResponse struct {
	Rate      string `json:"rate"`
	UpdatedAt string `json:"updated_at"`
}

// VaultReceiptResponse is the idempotent response for a vault operation.
type VaultReceiptResponse struct {
	Operation   string `json:"operation"`
	Address     string `json:"address"`
	Amount      string `json:"amount"`
	ReferenceID string `json:"reference_id"`
	Principal   string `json:"principal"`
	CreatedAt   string `json:"created_at"`
}

// AssetBalanceResponse is the response for a base-asset balance query.
type AssetBalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// EntryResponse is a single ledger entry.
type EntryResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// EntryListResponse wraps a paginated ledger entry list.
type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// SupplyResponse is the response for the supply conservation report.
type SupplyResponse struct {
	Minted         string `json:"minted"`
	Burned         string `json:"burned"`
	Accrued        string `json:"accrued"`
	TotalPrincipal string `json:"total_principal"`
	Conserved      bool   `json:"conserved"`
}
