package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[string]domain.Account)}
}

func (r *inMemoryAccountRepo) Get(ctx context.Context, address string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[address]
	if !ok {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (r *inMemoryAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.Account, error) {
	return r.Get(ctx, address)
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Address]; ok {
		return fmt.Errorf("account already exists")
	}
	r.accounts[account.Address] = *account
	return nil
}

func (r *inMemoryAccountRepo) Update(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Address]; !ok {
		return fmt.Errorf("account not found")
	}
	r.accounts[account.Address] = *account
	return nil
}

func (r *inMemoryAccountRepo) SumPrincipal(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum uint64
	for _, a := range r.accounts {
		sum += a.Principal
	}
	return sum, nil
}

// --- In-Memory Rate Repo ---

type inMemoryRateRepo struct {
	mu   sync.RWMutex
	rate *domain.GlobalRate
}

func newInMemoryRateRepo() *inMemoryRateRepo {
	return &inMemoryRateRepo{}
}

func (r *inMemoryRateRepo) Get(ctx context.Context) (*domain.GlobalRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rate == nil {
		return nil, fmt.Errorf("global rate not initialized")
	}
	copied := *r.rate
	return &copied, nil
}

func (r *inMemoryRateRepo) GetInTx(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error) {
	return r.Get(ctx)
}

func (r *inMemoryRateRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.GlobalRate, error) {
	return r.Get(ctx)
}

func (r *inMemoryRateRepo) Update(ctx context.Context, tx pgx.Tx, rate *domain.GlobalRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rate
	r.rate = &copied
	return nil
}

func (r *inMemoryRateRepo) Init(ctx context.Context, initialRate uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rate == nil {
		r.rate = &domain.GlobalRate{CurrentRate: initialRate, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

// --- In-Memory Entry Repo ---

type inMemoryEntryRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryEntryRepo() *inMemoryEntryRepo {
	return &inMemoryEntryRepo{}
}

func (r *inMemoryEntryRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryEntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		if params.Address != nil {
			matches := (e.From != nil && *e.From == *params.Address) ||
				(e.To != nil && *e.To == *params.Address)
			if !matches {
				continue
			}
		}
		result = append(result, e)
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryEntryRepo) SupplyTotals(ctx context.Context) (minted, burned, accrued uint64, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		switch e.Type {
		case domain.EntryTypeMint:
			minted += e.Amount
		case domain.EntryTypeBurn:
			burned += e.Amount
		case domain.EntryTypeAccrual:
			accrued += e.Amount
		}
	}
	return minted, burned, accrued, nil
}

// --- In-Memory Asset Repo ---

type inMemoryAssetRepo struct {
	mu       sync.RWMutex
	accounts map[string]domain.AssetAccount
}

func newInMemoryAssetRepo() *inMemoryAssetRepo {
	return &inMemoryAssetRepo{accounts: make(map[string]domain.AssetAccount)}
}

func (r *inMemoryAssetRepo) Get(ctx context.Context, address string) (*domain.AssetAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[address]
	if !ok {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (r *inMemoryAssetRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.AssetAccount, error) {
	return r.Get(ctx, address)
}

func (r *inMemoryAssetRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, address string, balance uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[address]
	if !ok {
		return fmt.Errorf("asset account not found")
	}
	a.Balance = balance
	r.accounts[address] = a
	return nil
}

func (r *inMemoryAssetRepo) Create(ctx context.Context, account *domain.AssetAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.Address] = *account
	return nil
}

// --- In-Memory Holder Repo ---

type inMemoryHolderRepo struct {
	mu      sync.RWMutex
	holders map[uuid.UUID]domain.Holder
}

func newInMemoryHolderRepo() *inMemoryHolderRepo {
	return &inMemoryHolderRepo{holders: make(map[uuid.UUID]domain.Holder)}
}

func (r *inMemoryHolderRepo) Create(ctx context.Context, holder *domain.Holder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.holders {
		if h.Username == holder.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.holders[holder.ID] = *holder
	return nil
}

func (r *inMemoryHolderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holders[id]
	if !ok {
		return nil, nil
	}
	copied := h
	return &copied, nil
}

func (r *inMemoryHolderRepo) GetByUsername(ctx context.Context, username string) (*domain.Holder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.holders {
		if h.Username == username {
			copied := h
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *inMemoryHolderRepo) GetByAddress(ctx context.Context, address string) (*domain.Holder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.holders {
		if h.Address == address {
			copied := h
			return &copied, nil
		}
	}
	return nil, nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu   sync.RWMutex
	logs map[string]*domain.IdempotencyLog
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{logs: make(map[string]*domain.IdempotencyLog)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirror the unique key constraint of the real table.
	if _, ok := r.logs[log.Key]; ok {
		return fmt.Errorf("duplicate idempotency key %q", log.Key)
	}
	r.logs[log.Key] = log
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[key]
	if !ok {
		return nil, nil
	}
	return l, nil
}

// --- In-Memory Permission Gate ---

type inMemoryRoleGate struct {
	mu    sync.RWMutex
	roles map[string]map[domain.Role]bool
}

func newInMemoryRoleGate() *inMemoryRoleGate {
	return &inMemoryRoleGate{roles: make(map[string]map[domain.Role]bool)}
}

func (g *inMemoryRoleGate) grant(address string, role domain.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roles[address] == nil {
		g.roles[address] = make(map[domain.Role]bool)
	}
	g.roles[address][role] = true
}

func (g *inMemoryRoleGate) HasRole(ctx context.Context, address string, role domain.Role) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roles[address][role], nil
}

func (g *inMemoryRoleGate) IsAdmin(ctx context.Context, address string) (bool, error) {
	return g.HasRole(ctx, address, domain.RoleAdmin)
}

// --- Fake Clock ---

// fakeClock is a manually advanced clock so accrual is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with one big lock, a coarse
// stand-in for the row locking the postgres repos rely on.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &noopTx{release: &t.mu}, nil
}

// noopTx is a pgx.Tx stand-in for in-memory testing. It holds the
// transactor lock until Commit or Rollback.
type noopTx struct {
	mu       sync.Mutex
	release  *sync.Mutex
	finished bool
}

func (t *noopTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	if t.release != nil {
		t.release.Unlock()
	}
}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
