package postgres

import (
	"context"
	"fmt"
	"strconv"

	"accruing-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RateRepo implements ports.RateRepository against the single global_rate row.
type RateRepo struct {
	pool Pool
}

// NewRateRepo creates a new RateRepo.
func NewRateRepo(pool Pool) *RateRepo {
	return &RateRepo{pool: pool}
}

// Get fetches the global rate (non-locking read).
func (r *RateRepo) Get(ctx context.Context) (*domain.GlobalRate, error) {
	query := `SELECT current_rate::text, updated_at FROM global_rate WHERE id = 1`
	return scanRate(r.pool.QueryRow(ctx, query))
}

// GetInTx fetches the global rate inside a transaction without locking it.
// Mints read the rate this way; they must not serialize behind rate changes.
func (r *RateRepo) GetInTx(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error) {
	query := `SELECT current_rate::text, updated_at FROM global_rate WHERE id = 1`
	return scanRate(tx.QueryRow(ctx, query))
}

// GetForUpdate locks the global rate row for a rate change.
func (r *RateRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error) {
	query := `SELECT current_rate::text, updated_at FROM global_rate WHERE id = 1 FOR UPDATE`
	return scanRate(tx.QueryRow(ctx, query))
}

// Update persists a new rate within a database transaction.
func (r *RateRepo) Update(ctx context.Context, tx pgx.Tx, rate *domain.GlobalRate) error {
	query := `UPDATE global_rate SET current_rate = $1::numeric, updated_at = $2 WHERE id = 1`

	tag, err := tx.Exec(ctx, query, strconv.FormatUint(rate.CurrentRate, 10), rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update global rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("global rate row missing")
	}
	return nil
}

// Init inserts the bootstrap rate if no row exists yet; later calls are no-ops.
func (r *RateRepo) Init(ctx context.Context, initialRate uint64) error {
	query := `INSERT INTO global_rate (id, current_rate, updated_at) VALUES (1, $1::numeric, NOW())
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, strconv.FormatUint(initialRate, 10))
	if err != nil {
		return fmt.Errorf("init global rate: %w", err)
	}
	return nil
}

func scanRate(row pgx.Row) (*domain.GlobalRate, error) {
	rate := &domain.GlobalRate{}
	var current string
	if err := row.Scan(&current, &rate.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan global rate: %w", err)
	}
	var err error
	if rate.CurrentRate, err = strconv.ParseUint(current, 10, 64); err != nil {
		return nil, fmt.Errorf("parse current rate %q: %w", current, err)
	}
	return rate, nil
}
