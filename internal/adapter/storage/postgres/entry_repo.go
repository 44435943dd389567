package postgres

import (
	"context"
	"fmt"
	"strconv"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// EntryRepo implements ports.EntryRepository over the append-only
// ledger_entries stream. Entries are never updated or deleted.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, type, from_address, to_address, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`

	_, err := tx.Exec(ctx, query,
		e.ID, string(e.Type), e.From, e.To,
		strconv.FormatUint(e.Amount, 10), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// List returns a page of ledger entries, newest first, with the total count.
// The address filter matches either leg.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if params.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, string(*params.Type))
		argPos++
	}
	if params.Address != nil {
		where += fmt.Sprintf(" AND (from_address = $%d OR to_address = $%d)", argPos, argPos)
		args = append(args, *params.Address)
		argPos++
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	listQuery := `SELECT id, type, from_address, to_address, amount::text, created_at FROM ledger_entries` +
		where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		var typ, amount string
		if err := rows.Scan(&e.ID, &typ, &e.From, &e.To, &amount, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Type = domain.EntryType(typ)
		if e.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("parse entry amount %q: %w", amount, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return entries, total, nil
}

// SupplyTotals aggregates MINT, BURN, and ACCRUAL amounts from the stream.
func (r *EntryRepo) SupplyTotals(ctx context.Context) (minted, burned, accrued uint64, err error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE type = 'MINT'), 0)::text,
		COALESCE(SUM(amount) FILTER (WHERE type = 'BURN'), 0)::text,
		COALESCE(SUM(amount) FILTER (WHERE type = 'ACCRUAL'), 0)::text
		FROM ledger_entries`

	var m, b, a string
	if err = r.pool.QueryRow(ctx, query).Scan(&m, &b, &a); err != nil {
		return 0, 0, 0, fmt.Errorf("supply totals: %w", err)
	}
	if minted, err = strconv.ParseUint(m, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("parse minted total %q: %w", m, err)
	}
	if burned, err = strconv.ParseUint(b, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("parse burned total %q: %w", b, err)
	}
	if accrued, err = strconv.ParseUint(a, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("parse accrued total %q: %w", a, err)
	}
	return minted, burned, accrued, nil
}
