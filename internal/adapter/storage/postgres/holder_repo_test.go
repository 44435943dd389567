package postgres

import (
	"context"
	"testing"
	"time"

	"accruing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHolder() *domain.Holder {
	return &domain.Holder{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: "$argon2id$hash",
		Address:      "addr-alice",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func holderRow(h *domain.Holder) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "password_hash", "address", "created_at"}).
		AddRow(h.ID, h.Username, h.PasswordHash, h.Address, h.CreatedAt)
}

func TestHolderRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHolderRepo(mock)
	h := newTestHolder()

	mock.ExpectExec("INSERT INTO holders").
		WithArgs(h.ID, h.Username, h.PasswordHash, h.Address, h.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolderRepo_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHolderRepo(mock)
	h := newTestHolder()

	mock.ExpectQuery("SELECT .+ FROM holders WHERE username").
		WithArgs(h.Username).
		WillReturnRows(holderRow(h))

	result, err := repo.GetByUsername(context.Background(), h.Username)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, h.ID, result.ID)
	assert.Equal(t, h.Address, result.Address)
}

func TestHolderRepo_GetByAddress_NotFoundReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHolderRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM holders WHERE address").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByAddress(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, result)
}
