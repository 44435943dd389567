package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// VaultServiceImpl implements ports.VaultService.
//
// The vault custodies the base asset and keeps minted ledger units backed
// 1:1: deposits move base asset into custody and mint an equal amount;
// redemptions burn and pay the base asset back out. Burn, asset movement,
// and the receipt all live inside one database transaction, so a failed
// asset leg rolls the burn back with it.
type VaultServiceImpl struct {
	ledger     ports.LedgerService
	assets     ports.AssetRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	clock      ports.Clock
	notifier   ports.Notifier
	log        zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl.
func NewVaultService(
	ledger ports.LedgerService,
	assets ports.AssetRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	clock ports.Clock,
	notifier ports.Notifier,
	log zerolog.Logger,
) *VaultServiceImpl {
	return &VaultServiceImpl{
		ledger:     ledger,
		assets:     assets,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		clock:      clock,
		notifier:   notifier,
		log:        log,
	}
}

// Deposit takes base asset into custody and mints the same amount to the
// depositor. Retries with the same reference return the original receipt.
func (s *VaultServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.VaultReceipt, error) {
	if req.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := domain.BuildDepositKey(req.Address, req.ReferenceID)
	if receipt, err := s.cachedReceipt(ctx, idempKey); err != nil || receipt != nil {
		return receipt, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Move base asset from the depositor into custody.
	if err := s.moveAsset(ctx, dbTx, req.Address, domain.VaultAddress, req.Amount); err != nil {
		return nil, err
	}

	mint, err := s.ledger.MintTx(ctx, dbTx, ports.MintRequest{
		Caller: domain.VaultAddress,
		To:     req.Address,
		Amount: req.Amount,
	})
	if err != nil {
		return nil, err
	}

	receipt := &ports.VaultReceipt{
		Operation:   string(domain.EventTypeDeposit),
		Address:     req.Address,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Principal:   mint.Principal,
		CreatedAt:   s.clock.Now(),
	}
	respJSON, err := s.saveReceipt(ctx, dbTx, idempKey, receipt)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheReceipt(ctx, idempKey, respJSON)
	s.publish(ctx, domain.Event{
		Type:   domain.EventTypeDeposit,
		To:     req.Address,
		Amount: req.Amount,
		At:     receipt.CreatedAt,
	})

	s.log.Info().
		Str("address", req.Address).
		Uint64("amount", req.Amount).
		Str("reference_id", req.ReferenceID).
		Msg("deposit processed")

	return receipt, nil
}

// Redeem burns ledger units and returns the same amount of base asset.
// If the asset leg fails, the transaction rolls back and the burn with it;
// no state persists where units are burned but the asset was not returned.
func (s *VaultServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*ports.VaultReceipt, error) {
	idempKey := domain.BuildRedeemKey(req.Address, req.ReferenceID)
	if receipt, err := s.cachedReceipt(ctx, idempKey); err != nil || receipt != nil {
		return receipt, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	burn, err := s.ledger.BurnTx(ctx, dbTx, ports.BurnRequest{
		Caller: domain.VaultAddress,
		From:   req.Address,
		Amount: req.Amount,
	})
	if err != nil {
		return nil, err
	}

	// Pay the base asset back out of custody. Failure aborts the whole
	// redeem, burn included.
	if err := s.moveAsset(ctx, dbTx, domain.VaultAddress, req.Address, burn.Burned); err != nil {
		return nil, apperror.ErrAssetTransferFailed(err)
	}

	receipt := &ports.VaultReceipt{
		Operation:   string(domain.EventTypeRedeem),
		Address:     req.Address,
		Amount:      burn.Burned,
		ReferenceID: req.ReferenceID,
		Principal:   burn.Principal,
		CreatedAt:   s.clock.Now(),
	}
	respJSON, err := s.saveReceipt(ctx, dbTx, idempKey, receipt)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheReceipt(ctx, idempKey, respJSON)
	s.publish(ctx, domain.Event{
		Type:   domain.EventTypeRedeem,
		From:   req.Address,
		Amount: burn.Burned,
		At:     receipt.CreatedAt,
	})

	s.log.Info().
		Str("address", req.Address).
		Uint64("amount", burn.Burned).
		Str("reference_id", req.ReferenceID).
		Msg("redeem processed")

	return receipt, nil
}

// AssetBalance returns a holder's base-asset balance outside the vault.
func (s *VaultServiceImpl) AssetBalance(ctx context.Context, address string) (uint64, error) {
	acct, err := s.assets.Get(ctx, address)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get asset account: %w", err))
	}
	if acct == nil {
		return 0, nil
	}
	return acct.Balance, nil
}

// moveAsset moves base asset between two asset accounts within dbTx.
// Rows are locked in address order to avoid deadlocks between concurrent
// deposits and redeems. A missing account on either side fails the move.
func (s *VaultServiceImpl) moveAsset(ctx context.Context, tx pgx.Tx, from, to string, amount uint64) error {
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	a, err := s.assets.GetForUpdate(ctx, tx, first)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock asset account: %w", err))
	}
	b, err := s.assets.GetForUpdate(ctx, tx, second)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock asset account: %w", err))
	}

	src, dst := a, b
	if first != from {
		src, dst = b, a
	}
	if src == nil || dst == nil {
		return apperror.ErrNotFound("asset account")
	}
	if src.Balance < amount {
		return apperror.ErrInsufficientAssetBalance()
	}

	if err := s.assets.UpdateBalance(ctx, tx, from, src.Balance-amount); err != nil {
		return apperror.InternalError(fmt.Errorf("debit asset account: %w", err))
	}
	if err := s.assets.UpdateBalance(ctx, tx, to, dst.Balance+amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit asset account: %w", err))
	}
	return nil
}

func (s *VaultServiceImpl) cachedReceipt(ctx context.Context, idempKey string) (*ports.VaultReceipt, error) {
	// Layer 1: Redis fast path
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return unmarshalReceipt(cached)
	}

	// Layer 2: DB backup
	idempLog, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog != nil {
		return unmarshalReceipt(idempLog.ResponseJSON)
	}
	return nil, nil
}

func (s *VaultServiceImpl) saveReceipt(ctx context.Context, tx pgx.Tx, idempKey string, receipt *ports.VaultReceipt) ([]byte, error) {
	respJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal receipt: %w", err))
	}
	entry := &domain.IdempotencyLog{
		Key:          idempKey,
		ResponseJSON: respJSON,
		CreatedAt:    receipt.CreatedAt,
	}
	if err := s.idempRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}
	return respJSON, nil
}

func (s *VaultServiceImpl) cacheReceipt(ctx context.Context, idempKey string, respJSON []byte) {
	if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache receipt in redis")
	}
}

func (s *VaultServiceImpl) publish(ctx context.Context, evt domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("type", string(evt.Type)).Msg("event publish failed")
	}
}

func unmarshalReceipt(data []byte) (*ports.VaultReceipt, error) {
	receipt := &ports.VaultReceipt{}
	if err := json.Unmarshal(data, receipt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached receipt: %w", err))
	}
	return receipt, nil
}
