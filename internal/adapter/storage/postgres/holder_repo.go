package postgres

import (
	"context"
	"errors"
	"fmt"

	"accruing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HolderRepo implements ports.HolderRepository.
type HolderRepo struct {
	pool Pool
}

// NewHolderRepo creates a new HolderRepo.
func NewHolderRepo(pool Pool) *HolderRepo {
	return &HolderRepo{pool: pool}
}

const holderColumns = `id, username, password_hash, address, created_at`

// Create inserts a new holder.
func (r *HolderRepo) Create(ctx context.Context, h *domain.Holder) error {
	query := `INSERT INTO holders (id, username, password_hash, address, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, h.ID, h.Username, h.PasswordHash, h.Address, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert holder: %w", err)
	}
	return nil
}

// GetByID fetches a holder by UUID.
func (r *HolderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE id = $1`
	return scanHolder(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername fetches a holder by username.
func (r *HolderRepo) GetByUsername(ctx context.Context, username string) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE username = $1`
	return scanHolder(r.pool.QueryRow(ctx, query, username))
}

// GetByAddress fetches a holder by ledger address.
func (r *HolderRepo) GetByAddress(ctx context.Context, address string) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE address = $1`
	return scanHolder(r.pool.QueryRow(ctx, query, address))
}

func scanHolder(row pgx.Row) (*domain.Holder, error) {
	h := &domain.Holder{}
	err := row.Scan(&h.ID, &h.Username, &h.PasswordHash, &h.Address, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan holder: %w", err)
	}
	return h, nil
}
