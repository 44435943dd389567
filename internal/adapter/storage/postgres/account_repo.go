package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"accruing-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
//
// Principal and locked_rate are NUMERIC(20,0) columns; they round-trip as
// decimal strings because uint64 exceeds BIGINT range.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `address, principal::text, locked_rate::text, last_accrual_at, created_at, updated_at`

// Get fetches an account by address (non-locking read).
func (r *AccountRepo) Get(ctx context.Context, address string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, address))
}

// GetForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, address))
}

// Create inserts a new account within a database transaction.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (address, principal, locked_rate, last_accrual_at, created_at, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		a.Address,
		strconv.FormatUint(a.Principal, 10),
		strconv.FormatUint(a.LockedRate, 10),
		a.LastAccrualAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Update persists principal, locked rate, and accrual state within a
// database transaction. The locked rate only changes when a drained
// transfer recipient inherits the sender's rate; every other caller writes
// back the value it read under lock.
func (r *AccountRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `UPDATE accounts SET principal = $1::numeric, locked_rate = $2::numeric, last_accrual_at = $3, updated_at = $4 WHERE address = $5`

	tag, err := tx.Exec(ctx, query,
		strconv.FormatUint(a.Principal, 10),
		strconv.FormatUint(a.LockedRate, 10),
		a.LastAccrualAt, a.UpdatedAt, a.Address,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", a.Address)
	}
	return nil
}

// SumPrincipal returns the sum of all account principals.
func (r *AccountRepo) SumPrincipal(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(SUM(principal), 0)::text FROM accounts`

	var sum string
	if err := r.pool.QueryRow(ctx, query).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum principal: %w", err)
	}
	total, err := strconv.ParseUint(sum, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse principal sum %q: %w", sum, err)
	}
	return total, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	var principal, lockedRate string
	err := row.Scan(&a.Address, &principal, &lockedRate, &a.LastAccrualAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if a.Principal, err = strconv.ParseUint(principal, 10, 64); err != nil {
		return nil, fmt.Errorf("parse principal %q: %w", principal, err)
	}
	if a.LockedRate, err = strconv.ParseUint(lockedRate, 10, 64); err != nil {
		return nil, fmt.Errorf("parse locked rate %q: %w", lockedRate, err)
	}
	return a, nil
}
