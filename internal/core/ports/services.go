package ports

import (
	"context"
	"time"

	"accruing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Clock supplies the single time sample every ledger operation uses. All
// effects of one operation observe the same instant.
type Clock interface {
	Now() time.Time
}

// PermissionGate authorizes privileged ledger calls. Role administration is
// outside the ledger; the gate is an injected capability check.
type PermissionGate interface {
	HasRole(ctx context.Context, address string, role domain.Role) (bool, error)
	IsAdmin(ctx context.Context, address string) (bool, error)
}

// Notifier publishes fire-and-forget events after an operation commits.
// Delivery failures are logged and never retried.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event) error
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(holderID uuid.UUID, address string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	HolderID uuid.UUID
	Address  string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the accrual ledger state machine. Every mutating
// operation realizes accrued interest on each touched account before
// applying the requested principal delta, inside one database transaction.
// The *Tx variants run in a caller-owned transaction so the vault can bind
// a mint or burn into its own atomic boundary.
type LedgerService interface {
	Mint(ctx context.Context, req MintRequest) (*MintResult, error)
	MintTx(ctx context.Context, tx pgx.Tx, req MintRequest) (*MintResult, error)
	Burn(ctx context.Context, req BurnRequest) (*BurnResult, error)
	BurnTx(ctx context.Context, tx pgx.Tx, req BurnRequest) (*BurnResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	BalanceOf(ctx context.Context, address string) (*BalanceResult, error)
	GetAccount(ctx context.Context, address string) (*domain.Account, error)
	GetGlobalRate(ctx context.Context) (*domain.GlobalRate, error)
	SetGlobalRate(ctx context.Context, caller string, newRate uint64) (*domain.GlobalRate, error)
}

// MintRequest holds validated input for minting.
type MintRequest struct {
	Caller string // must hold MINT_AND_BURN
	To     string
	Amount uint64
}

// MintResult reports the account state after a mint.
type MintResult struct {
	To         string `json:"to"`
	Minted     uint64 `json:"minted"`
	Principal  uint64 `json:"principal"`
	LockedRate uint64 `json:"locked_rate"`
}

// BurnRequest holds validated input for burning.
type BurnRequest struct {
	Caller string // must hold MINT_AND_BURN
	From   string
	Amount domain.Amount
}

// BurnResult reports the account state after a burn.
type BurnResult struct {
	From      string `json:"from"`
	Burned    uint64 `json:"burned"`
	Principal uint64 `json:"principal"`
}

// TransferRequest holds validated input for a peer transfer.
type TransferRequest struct {
	From   string
	To     string
	Amount domain.Amount
}

// TransferResult reports both legs after a transfer.
type TransferResult struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        uint64 `json:"amount"`
	FromPrincipal uint64 `json:"from_principal"`
	ToPrincipal   uint64 `json:"to_principal"`
}

// BalanceResult is a read-time derived balance.
type BalanceResult struct {
	Address    string `json:"address"`
	Balance    uint64 `json:"balance"`
	Principal  uint64 `json:"principal"`
	LockedRate uint64 `json:"locked_rate"`
	At         int64  `json:"at"` // unix seconds the balance was derived at
}

// VaultService custodies the base asset and keeps minted units backed 1:1.
type VaultService interface {
	Deposit(ctx context.Context, req DepositRequest) (*VaultReceipt, error)
	Redeem(ctx context.Context, req RedeemRequest) (*VaultReceipt, error)
	AssetBalance(ctx context.Context, address string) (uint64, error)
}

// DepositRequest holds validated input for a vault deposit.
type DepositRequest struct {
	Address     string
	Amount      uint64
	ReferenceID string
}

// RedeemRequest holds validated input for a vault redemption.
type RedeemRequest struct {
	Address     string
	Amount      domain.Amount
	ReferenceID string
}

// VaultReceipt is the idempotent response for a vault operation.
type VaultReceipt struct {
	Operation   string    `json:"operation"` // DEPOSIT or REDEEM
	Address     string    `json:"address"`
	Amount      uint64    `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	Principal   uint64    `json:"principal"` // ledger principal after the operation
	CreatedAt   time.Time `json:"created_at"`
}

// AuthService defines holder authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for holder registration.
type RegisterRequest struct {
	Username string
	Password string
}

// RegisterResponse holds the registration result.
type RegisterResponse struct {
	HolderID uuid.UUID
	Address  string
}

// ReportingService defines read-only ledger reporting.
type ReportingService interface {
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	GetSupplyStats(ctx context.Context) (*domain.SupplyStats, error)
}

// AuditService defines async audit logging.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
