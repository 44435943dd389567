package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"accruing-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository for base-asset custody balances.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Get fetches an asset account by address (non-locking read).
func (r *AssetRepo) Get(ctx context.Context, address string) (*domain.AssetAccount, error) {
	query := `SELECT address, balance::text, created_at, updated_at FROM asset_accounts WHERE address = $1`
	return scanAssetAccount(r.pool.QueryRow(ctx, query, address))
}

// GetForUpdate fetches an asset account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AssetRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.AssetAccount, error) {
	query := `SELECT address, balance::text, created_at, updated_at FROM asset_accounts WHERE address = $1 FOR UPDATE`
	return scanAssetAccount(tx.QueryRow(ctx, query, address))
}

// UpdateBalance sets an asset account's balance within a database transaction.
func (r *AssetRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, address string, balance uint64) error {
	query := `UPDATE asset_accounts SET balance = $1::numeric, updated_at = NOW() WHERE address = $2`

	tag, err := tx.Exec(ctx, query, strconv.FormatUint(balance, 10), address)
	if err != nil {
		return fmt.Errorf("update asset balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset account not found: %s", address)
	}
	return nil
}

// Create inserts a new asset account.
func (r *AssetRepo) Create(ctx context.Context, a *domain.AssetAccount) error {
	query := `INSERT INTO asset_accounts (address, balance, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4)`

	_, err := r.pool.Exec(ctx, query,
		a.Address, strconv.FormatUint(a.Balance, 10), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset account: %w", err)
	}
	return nil
}

func scanAssetAccount(row pgx.Row) (*domain.AssetAccount, error) {
	a := &domain.AssetAccount{}
	var balance string
	err := row.Scan(&a.Address, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan asset account: %w", err)
	}
	if a.Balance, err = strconv.ParseUint(balance, 10, 64); err != nil {
		return nil, fmt.Errorf("parse asset balance %q: %w", balance, err)
	}
	return a, nil
}
