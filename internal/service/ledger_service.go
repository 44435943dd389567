package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService.
//
// Every mutating operation samples the clock once, opens one database
// transaction, locks the touched account rows, realizes accrued interest,
// and only then applies the requested principal delta. Failures roll the
// whole transaction back, so no partial mutation is ever visible.
type LedgerServiceImpl struct {
	accounts   ports.AccountRepository
	rates      ports.RateRepository
	entries    ports.EntryRepository
	gate       ports.PermissionGate
	transactor ports.DBTransactor
	clock      ports.Clock
	notifier   ports.Notifier
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accounts ports.AccountRepository,
	rates ports.RateRepository,
	entries ports.EntryRepository,
	gate ports.PermissionGate,
	transactor ports.DBTransactor,
	clock ports.Clock,
	notifier ports.Notifier,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accounts:   accounts,
		rates:      rates,
		entries:    entries,
		gate:       gate,
		transactor: transactor,
		clock:      clock,
		notifier:   notifier,
		log:        log,
	}
}

// Mint creates new units for an account inside its own transaction.
func (s *LedgerServiceImpl) Mint(ctx context.Context, req ports.MintRequest) (*ports.MintResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	result, err := s.MintTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("to", req.To).
		Uint64("amount", req.Amount).
		Msg("mint processed")

	return result, nil
}

// MintTx mints inside a caller-owned transaction (the vault binds a mint
// into its deposit boundary this way). The caller commits or rolls back.
func (s *LedgerServiceImpl) MintTx(ctx context.Context, tx pgx.Tx, req ports.MintRequest) (*ports.MintResult, error) {
	if req.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := s.requireRole(ctx, req.Caller, domain.RoleMintAndBurn); err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()

	acct, err := s.accounts.GetForUpdate(ctx, tx, req.To)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if acct == nil {
		// First-ever mint: the account locks the current global rate and
		// keeps it forever, across burns to zero and later mints.
		rate, err := s.rates.GetInTx(ctx, tx)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("read global rate: %w", err))
		}
		acct = domain.NewAccount(req.To, rate.CurrentRate, now)
		if err := s.accounts.Create(ctx, tx, acct); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
		}
	}

	if err := s.realize(ctx, tx, acct, now); err != nil {
		return nil, err
	}

	if acct.Principal+req.Amount < acct.Principal {
		return nil, apperror.ErrBalanceOverflow()
	}
	acct.Principal += req.Amount
	acct.UpdatedAt = time.Unix(now, 0).UTC()

	if err := s.accounts.Update(ctx, tx, acct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update account: %w", err))
	}
	if err := s.appendEntry(ctx, tx, domain.EntryTypeMint, nil, &acct.Address, req.Amount, now); err != nil {
		return nil, err
	}

	return &ports.MintResult{
		To:         acct.Address,
		Minted:     req.Amount,
		Principal:  acct.Principal,
		LockedRate: acct.LockedRate,
	}, nil
}

// Burn destroys units from an account inside its own transaction.
func (s *LedgerServiceImpl) Burn(ctx context.Context, req ports.BurnRequest) (*ports.BurnResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	result, err := s.BurnTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("from", req.From).
		Uint64("burned", result.Burned).
		Msg("burn processed")

	return result, nil
}

// BurnTx burns inside a caller-owned transaction. An All amount resolves to
// the entire derived balance at this instant, leaving zero principal.
func (s *LedgerServiceImpl) BurnTx(ctx context.Context, tx pgx.Tx, req ports.BurnRequest) (*ports.BurnResult, error) {
	if !req.Amount.IsAll() && req.Amount.Value() == 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := s.requireRole(ctx, req.Caller, domain.RoleMintAndBurn); err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()

	acct, err := s.accounts.GetForUpdate(ctx, tx, req.From)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if acct == nil {
		return nil, apperror.ErrNotFound("account")
	}

	if err := s.realize(ctx, tx, acct, now); err != nil {
		return nil, err
	}

	// After realizing, the derived balance and the principal agree, so the
	// sentinel resolves against principal directly.
	amount := req.Amount.Resolve(acct.Principal)
	if amount > acct.Principal {
		return nil, apperror.ErrInsufficientBalance()
	}
	acct.Principal -= amount
	acct.UpdatedAt = time.Unix(now, 0).UTC()

	if err := s.accounts.Update(ctx, tx, acct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update account: %w", err))
	}
	if err := s.appendEntry(ctx, tx, domain.EntryTypeBurn, &acct.Address, nil, amount, now); err != nil {
		return nil, err
	}

	return &ports.BurnResult{
		From:      acct.Address,
		Burned:    amount,
		Principal: acct.Principal,
	}, nil
}

// Transfer moves principal between two accounts. A recipient holding zero
// principal (never funded or burned to zero) inherits the sender's locked
// rate.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if !req.Amount.IsAll() && req.Amount.Value() == 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.From == req.To {
		return nil, apperror.ErrSelfTransfer()
	}

	now := s.clock.Now().Unix()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	from, to, err := s.lockPair(ctx, dbTx, req.From, req.To)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, apperror.ErrNotFound("sender account")
	}

	if err := s.realize(ctx, dbTx, from, now); err != nil {
		return nil, err
	}

	created := false
	if to == nil {
		to = domain.NewAccount(req.To, from.LockedRate, now)
		created = true
	} else if err := s.realize(ctx, dbTx, to, now); err != nil {
		return nil, err
	}
	if to.Principal == 0 {
		to.LockedRate = from.LockedRate
	}

	amount := req.Amount.Resolve(from.Principal)
	if amount > from.Principal {
		return nil, apperror.ErrInsufficientBalance()
	}
	if to.Principal+amount < to.Principal {
		return nil, apperror.ErrBalanceOverflow()
	}

	from.Principal -= amount
	to.Principal += amount
	updated := time.Unix(now, 0).UTC()
	from.UpdatedAt = updated
	to.UpdatedAt = updated

	if created {
		if err := s.accounts.Create(ctx, dbTx, to); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create recipient: %w", err))
		}
	} else if err := s.accounts.Update(ctx, dbTx, to); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update recipient: %w", err))
	}
	if err := s.accounts.Update(ctx, dbTx, from); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update sender: %w", err))
	}
	if err := s.appendEntry(ctx, dbTx, domain.EntryTypeTransfer, &from.Address, &to.Address, amount, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventTypeTransfer,
		From:   from.Address,
		To:     to.Address,
		Amount: amount,
		At:     time.Unix(now, 0).UTC(),
	})

	s.log.Info().
		Str("from", from.Address).
		Str("to", to.Address).
		Uint64("amount", amount).
		Msg("transfer processed")

	return &ports.TransferResult{
		From:          from.Address,
		To:            to.Address,
		Amount:        amount,
		FromPrincipal: from.Principal,
		ToPrincipal:   to.Principal,
	}, nil
}

// BalanceOf derives the balance at the current instant without touching
// state. An address that never minted reads as zero.
func (s *LedgerServiceImpl) BalanceOf(ctx context.Context, address string) (*ports.BalanceResult, error) {
	now := s.clock.Now().Unix()

	acct, err := s.accounts.Get(ctx, address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if acct == nil {
		return &ports.BalanceResult{Address: address, At: now}, nil
	}

	balance, err := acct.BalanceAt(now)
	if err != nil {
		return nil, apperror.ErrBalanceOverflow()
	}

	return &ports.BalanceResult{
		Address:    acct.Address,
		Balance:    balance,
		Principal:  acct.Principal,
		LockedRate: acct.LockedRate,
		At:         now,
	}, nil
}

// GetAccount returns the raw persisted account record.
func (s *LedgerServiceImpl) GetAccount(ctx context.Context, address string) (*domain.Account, error) {
	acct, err := s.accounts.Get(ctx, address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if acct == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return acct, nil
}

// GetGlobalRate returns the current protocol-wide rate.
func (s *LedgerServiceImpl) GetGlobalRate(ctx context.Context) (*domain.GlobalRate, error) {
	rate, err := s.rates.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get global rate: %w", err))
	}
	return rate, nil
}

// SetGlobalRate lowers the protocol-wide rate and returns the persisted
// record. Increases are rejected: accounts that locked earlier keep their
// higher rate, and no future account can lock above the current one.
func (s *LedgerServiceImpl) SetGlobalRate(ctx context.Context, caller string, newRate uint64) (*domain.GlobalRate, error) {
	isAdmin, err := s.gate.IsAdmin(ctx, caller)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("admin check: %w", err))
	}
	if !isAdmin {
		return nil, apperror.ErrUnauthorized()
	}

	now := s.clock.Now().Unix()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	rate, err := s.rates.GetForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock global rate: %w", err))
	}
	if newRate > rate.CurrentRate {
		return nil, apperror.ErrRateChangeRejected()
	}

	rate.CurrentRate = newRate
	rate.UpdatedAt = time.Unix(now, 0).UTC()
	if err := s.rates.Update(ctx, dbTx, rate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update global rate: %w", err))
	}
	if err := s.appendEntry(ctx, dbTx, domain.EntryTypeRateChange, nil, nil, newRate, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:    domain.EventTypeRateChanged,
		NewRate: newRate,
		At:      time.Unix(now, 0).UTC(),
	})

	s.log.Info().Uint64("new_rate", newRate).Msg("global rate lowered")
	return rate, nil
}

// realize folds accrued interest into principal and records the supply
// increase as an ACCRUAL entry, keeping the entry stream conserved.
func (s *LedgerServiceImpl) realize(ctx context.Context, tx pgx.Tx, acct *domain.Account, now int64) error {
	interest, err := acct.Realize(now)
	if err != nil {
		if errors.Is(err, domain.ErrBalanceRange) {
			return apperror.ErrBalanceOverflow()
		}
		return apperror.InternalError(fmt.Errorf("realize: %w", err))
	}
	if interest == 0 {
		return nil
	}
	return s.appendEntry(ctx, tx, domain.EntryTypeAccrual, nil, &acct.Address, interest, now)
}

// lockPair locks two account rows in address order to avoid deadlocks
// between concurrent transfers.
func (s *LedgerServiceImpl) lockPair(ctx context.Context, tx pgx.Tx, fromAddr, toAddr string) (from, to *domain.Account, err error) {
	first, second := fromAddr, toAddr
	if second < first {
		first, second = second, first
	}

	a, err := s.accounts.GetForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	b, err := s.accounts.GetForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}

	if first == fromAddr {
		return a, b, nil
	}
	return b, a, nil
}

func (s *LedgerServiceImpl) appendEntry(ctx context.Context, tx pgx.Tx, typ domain.EntryType, from, to *string, amount uint64, now int64) error {
	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		Type:      typ,
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedAt: time.Unix(now, 0).UTC(),
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append %s entry: %w", typ, err))
	}
	return nil
}

func (s *LedgerServiceImpl) requireRole(ctx context.Context, caller string, role domain.Role) error {
	ok, err := s.gate.HasRole(ctx, caller, role)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("role check: %w", err))
	}
	if !ok {
		return apperror.ErrUnauthorized()
	}
	return nil
}

// publish emits a post-commit notification; failures are logged, never retried.
func (s *LedgerServiceImpl) publish(ctx context.Context, evt domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("type", string(evt.Type)).Msg("event publish failed")
	}
}
