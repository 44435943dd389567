package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/internal/core/ports/mocks"
	"accruing-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type vaultTestDeps struct {
	svc        *VaultServiceImpl
	ledger     *mocks.MockLedgerService
	assets     *mocks.MockAssetRepository
	idempRepo  *mocks.MockIdempotencyRepository
	idempCache *mocks.MockIdempotencyCache
	txor       *mocks.MockDBTransactor
	clock      *mocks.MockClock
	notifier   *mocks.MockNotifier
	ctrl       *gomock.Controller
}

func setupVaultService(t *testing.T) *vaultTestDeps {
	ctrl := gomock.NewController(t)
	d := &vaultTestDeps{
		ledger:     mocks.NewMockLedgerService(ctrl),
		assets:     mocks.NewMockAssetRepository(ctrl),
		idempRepo:  mocks.NewMockIdempotencyRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		txor:       mocks.NewMockDBTransactor(ctrl),
		clock:      mocks.NewMockClock(ctrl),
		notifier:   mocks.NewMockNotifier(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewVaultService(
		d.ledger, d.assets, d.idempRepo, d.idempCache,
		d.txor, d.clock, d.notifier, zerolog.Nop(),
	)
	return d
}

// trackedTx records whether the transaction was committed or rolled back.
type trackedTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *trackedTx) Commit(_ context.Context) error { t.committed = true; return nil }
func (t *trackedTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (d *vaultTestDeps) expectNoCachedReceipt(key string) {
	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
}

// ==================== Deposit Tests ====================

func TestVaultService_Deposit_MovesAssetAndMints(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	tx := &trackedTx{}
	key := domain.BuildDepositKey("alice", "dep-1")

	d.expectNoCachedReceipt(key)
	d.txor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	// Asset legs: alice loses 500, the vault custody account gains 500.
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.AssetAccount{Address: "alice", Balance: 800}, nil)
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, domain.VaultAddress).
		Return(&domain.AssetAccount{Address: domain.VaultAddress, Balance: 10_000}, nil)
	d.assets.EXPECT().UpdateBalance(gomock.Any(), tx, "alice", uint64(300)).Return(nil)
	d.assets.EXPECT().UpdateBalance(gomock.Any(), tx, domain.VaultAddress, uint64(10_500)).Return(nil)

	d.ledger.EXPECT().MintTx(gomock.Any(), tx, ports.MintRequest{
		Caller: domain.VaultAddress,
		To:     "alice",
		Amount: 500,
	}).Return(&ports.MintResult{To: "alice", Minted: 500, Principal: 500}, nil)

	d.clock.EXPECT().Now().Return(time.Unix(1_700_000_000, 0).UTC())
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), key, gomock.Any(), idempotencyTTL).Return(nil)
	d.notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	receipt, err := d.svc.Deposit(ctx, ports.DepositRequest{Address: "alice", Amount: 500, ReferenceID: "dep-1"})
	require.NoError(t, err)

	assert.True(t, tx.committed)
	assert.Equal(t, string(domain.EventTypeDeposit), receipt.Operation)
	assert.Equal(t, uint64(500), receipt.Amount)
	assert.Equal(t, uint64(500), receipt.Principal)
}

func TestVaultService_Deposit_InsufficientAssetBalance(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	tx := &trackedTx{}
	key := domain.BuildDepositKey("alice", "dep-2")

	d.expectNoCachedReceipt(key)
	d.txor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.AssetAccount{Address: "alice", Balance: 100}, nil)
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, domain.VaultAddress).
		Return(&domain.AssetAccount{Address: domain.VaultAddress, Balance: 0}, nil)

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Address: "alice", Amount: 500, ReferenceID: "dep-2"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VLT_002", appErr.Code)
	assert.True(t, tx.rolledBack)
}

func TestVaultService_Deposit_ZeroAmountRejected(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Address: "alice", Amount: 0, ReferenceID: "dep-3"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_005", appErr.Code)
}

func TestVaultService_Deposit_ReplayReturnsCachedReceipt(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	key := domain.BuildDepositKey("alice", "dep-1")
	original := &ports.VaultReceipt{
		Operation:   string(domain.EventTypeDeposit),
		Address:     "alice",
		Amount:      500,
		ReferenceID: "dep-1",
		Principal:   500,
	}
	cached, err := json.Marshal(original)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(cached, nil)
	// No transactor, ledger, or asset calls: the replay never re-executes.

	receipt, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Address: "alice", Amount: 500, ReferenceID: "dep-1"})
	require.NoError(t, err)
	assert.Equal(t, original.Amount, receipt.Amount)
	assert.Equal(t, original.ReferenceID, receipt.ReferenceID)
}

func TestVaultService_Deposit_ReplayFallsBackToDBLog(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	key := domain.BuildDepositKey("alice", "dep-1")
	original := &ports.VaultReceipt{Operation: string(domain.EventTypeDeposit), Address: "alice", Amount: 500, ReferenceID: "dep-1"}
	cached, err := json.Marshal(original)
	require.NoError(t, err)

	// Redis misses (e.g. TTL expired); the DB log still has the receipt.
	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(gomock.Any(), key).Return(&domain.IdempotencyLog{Key: key, ResponseJSON: cached}, nil)

	receipt, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Address: "alice", Amount: 500, ReferenceID: "dep-1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), receipt.Amount)
}

// ==================== Redeem Tests ====================

func TestVaultService_Redeem_BurnsAndReturnsAsset(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	tx := &trackedTx{}
	key := domain.BuildRedeemKey("alice", "red-1")

	d.expectNoCachedReceipt(key)
	d.txor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	d.ledger.EXPECT().BurnTx(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, req ports.BurnRequest) (*ports.BurnResult, error) {
			assert.Equal(t, domain.VaultAddress, req.Caller)
			assert.Equal(t, "alice", req.From)
			return &ports.BurnResult{From: "alice", Burned: 500, Principal: 100}, nil
		})

	// Asset legs: custody pays out, alice receives. Locked in address order.
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.AssetAccount{Address: "alice", Balance: 300}, nil)
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, domain.VaultAddress).
		Return(&domain.AssetAccount{Address: domain.VaultAddress, Balance: 10_000}, nil)
	d.assets.EXPECT().UpdateBalance(gomock.Any(), tx, domain.VaultAddress, uint64(9_500)).Return(nil)
	d.assets.EXPECT().UpdateBalance(gomock.Any(), tx, "alice", uint64(800)).Return(nil)

	d.clock.EXPECT().Now().Return(time.Unix(1_700_000_000, 0).UTC())
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), key, gomock.Any(), idempotencyTTL).Return(nil)
	d.notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	receipt, err := d.svc.Redeem(ctx, ports.RedeemRequest{Address: "alice", Amount: domain.Exact(500), ReferenceID: "red-1"})
	require.NoError(t, err)

	assert.True(t, tx.committed)
	assert.Equal(t, string(domain.EventTypeRedeem), receipt.Operation)
	assert.Equal(t, uint64(500), receipt.Amount)
}

func TestVaultService_Redeem_AssetFailureRollsBackBurn(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	tx := &trackedTx{}
	key := domain.BuildRedeemKey("alice", "red-2")

	d.expectNoCachedReceipt(key)
	d.txor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	d.ledger.EXPECT().BurnTx(gomock.Any(), tx, gomock.Any()).
		Return(&ports.BurnResult{From: "alice", Burned: 500, Principal: 0}, nil)

	// Custody cannot cover the payout: the whole redeem must abort.
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.AssetAccount{Address: "alice", Balance: 0}, nil)
	d.assets.EXPECT().GetForUpdate(gomock.Any(), tx, domain.VaultAddress).
		Return(&domain.AssetAccount{Address: domain.VaultAddress, Balance: 100}, nil)

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Address: "alice", Amount: domain.Exact(500), ReferenceID: "red-2"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VLT_001", appErr.Code)
	assert.True(t, tx.rolledBack, "burn must not survive a failed asset payout")
	assert.False(t, tx.committed)
}

func TestVaultService_Redeem_InsufficientUnits(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	tx := &trackedTx{}
	key := domain.BuildRedeemKey("alice", "red-3")

	d.expectNoCachedReceipt(key)
	d.txor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.ledger.EXPECT().BurnTx(gomock.Any(), tx, gomock.Any()).
		Return(nil, apperror.ErrInsufficientBalance())

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Address: "alice", Amount: domain.Exact(500), ReferenceID: "red-3"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_001", appErr.Code)
	assert.True(t, tx.rolledBack)
}

// ==================== AssetBalance Tests ====================

func TestVaultService_AssetBalance(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	d.assets.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.AssetAccount{Address: "alice", Balance: 42}, nil)

	balance, err := d.svc.AssetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), balance)
}

func TestVaultService_AssetBalance_UnknownReadsZero(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	d.assets.EXPECT().Get(gomock.Any(), "nobody").Return(nil, nil)

	balance, err := d.svc.AssetBalance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}
