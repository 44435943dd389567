package ports

import (
	"context"

	"accruing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for ledger accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.Account, error)
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	Update(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	// SumPrincipal returns the sum of all account principals (conservation surface).
	SumPrincipal(ctx context.Context) (uint64, error)
}

// RateRepository defines persistence for the single global-rate row.
type RateRepository interface {
	Get(ctx context.Context) (*domain.GlobalRate, error)
	GetInTx(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error)
	Update(ctx context.Context, tx pgx.Tx, rate *domain.GlobalRate) error
	// Init inserts the bootstrap rate if no row exists yet; a later Init is a no-op.
	Init(ctx context.Context, initialRate uint64) error
}

// EntryRepository defines persistence for the append-only ledger entry stream.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	// SupplyTotals aggregates MINT, BURN, and ACCRUAL entry amounts.
	SupplyTotals(ctx context.Context) (minted, burned, accrued uint64, err error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	Type     *domain.EntryType
	Address  *string // matches either leg of an entry
	Page     int
	PageSize int
}

// AssetRepository defines persistence for base-asset custody balances.
type AssetRepository interface {
	Get(ctx context.Context, address string) (*domain.AssetAccount, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.AssetAccount, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, address string, balance uint64) error
	Create(ctx context.Context, account *domain.AssetAccount) error
}

// HolderRepository defines persistence operations for holders.
type HolderRepository interface {
	Create(ctx context.Context, holder *domain.Holder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Holder, error)
	GetByUsername(ctx context.Context, username string) (*domain.Holder, error)
	GetByAddress(ctx context.Context, address string) (*domain.Holder, error)
}

// IdempotencyRepository defines persistence for vault idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository defines persistence for audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
