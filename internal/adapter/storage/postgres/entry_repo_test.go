package postgres

import (
	"context"
	"testing"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	to := "addr-alice"
	e := &domain.LedgerEntry{
		ID:        uuid.New(),
		Type:      domain.EntryTypeMint,
		To:        &to,
		Amount:    500,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, "MINT", e.From, e.To, "500", e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_List_FiltersByTypeAndAddress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	typ := domain.EntryTypeTransfer
	addr := "addr-alice"
	from, to := "addr-alice", "addr-bob"
	created := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("TRANSFER", addr).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id, type, from_address, to_address, amount").
		WithArgs("TRANSFER", addr, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "from_address", "to_address", "amount", "created_at"}).
			AddRow(uuid.New(), "TRANSFER", &from, &to, "400", created))

	entries, total, err := repo.List(context.Background(), ports.EntryListParams{
		Type: &typ, Address: &addr, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeTransfer, entries[0].Type)
	assert.Equal(t, uint64(400), entries[0].Amount)
	require.NotNil(t, entries[0].From)
	assert.Equal(t, "addr-alice", *entries[0].From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_SupplyTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"minted", "burned", "accrued"}).
			AddRow("10000", "2000", "500"))

	minted, burned, accrued, err := repo.SupplyTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), minted)
	assert.Equal(t, uint64(2000), burned)
	assert.Equal(t, uint64(500), accrued)
	assert.NoError(t, mock.ExpectationsWereMet())
}
