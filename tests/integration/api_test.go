package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "accruing-ledger/internal/adapter/http/handler"
	redisStorage "accruing-ledger/internal/adapter/storage/redis"
	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/internal/service"
	"accruing-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	halfRate    = domain.RatePrecision / 2
	quarterRate = domain.RatePrecision / 4
	assetGrant  = uint64(1_000_000)
)

// testApp builds the full application stack on in-memory storage: miniredis
// behind the real Redis stores, mutex-guarded repos behind the real services,
// and the real HTTP layer on top. The clock is manually advanced so accrual
// is deterministic.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	client *goredis.Client
	clock  *fakeClock
	gate   *inMemoryRoleGate
	assets *inMemoryAssetRepo
}

func newTestApp(t *testing.T, initialRate uint64) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	clock := newFakeClock(time.Unix(1_700_000_000, 0).UTC())

	accountRepo := newInMemoryAccountRepo()
	rateRepo := newInMemoryRateRepo()
	entryRepo := newInMemoryEntryRepo()
	assetRepo := newInMemoryAssetRepo()
	holderRepo := newInMemoryHolderRepo()
	idempotencyRepo := newInMemoryIdempotencyRepo()
	gate := newInMemoryRoleGate()
	transactor := newInMemoryTransactor()

	require.NoError(t, rateRepo.Init(t.Context(), initialRate))

	// Bootstrap the vault custody account and its mint capability.
	require.NoError(t, assetRepo.Create(t.Context(), &domain.AssetAccount{Address: domain.VaultAddress}))
	gate.grant(domain.VaultAddress, domain.RoleMintAndBurn)

	log := logger.NewWithWriter("error", io.Discard)
	notifier := service.NewFanoutNotifier(redisStorage.NewEventPublisher(rdb))

	ledgerSvc := service.NewLedgerService(accountRepo, rateRepo, entryRepo, gate, transactor, clock, notifier, log)
	vaultSvc := service.NewVaultService(ledgerSvc, assetRepo, idempotencyRepo, idempotencyCache, transactor, clock, notifier, log)
	authSvc := service.NewAuthService(holderRepo, assetRepo, hashSvc, tokenSvc, assetGrant)
	reportingSvc := service.NewReportingService(entryRepo, accountRepo)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		VaultSvc:       vaultSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		rdb.Close()
	})

	return &testApp{
		server: server,
		redis:  mr,
		client: rdb,
		clock:  clock,
		gate:   gate,
		assets: assetRepo,
	}
}

// do sends a JSON request, optionally authenticated, and decodes the
// response envelope.
func (app *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, app.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "missing data field: %v", envelope)
	return d
}

// registerAndLogin creates a holder and returns its address and a JWT.
func (app *testApp) registerAndLogin(t *testing.T, username string) (address, token string) {
	t.Helper()

	code, envelope := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "StrongPass123",
	})
	require.Equal(t, http.StatusCreated, code, "register failed: %v", envelope)
	address = data(t, envelope)["address"].(string)

	code, envelope = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "StrongPass123",
	})
	require.Equal(t, http.StatusOK, code)
	token = data(t, envelope)["token"].(string)
	return address, token
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t, halfRate)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `"status":"healthy"`)
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t, halfRate)

	address, token := app.registerAndLogin(t, "alice")
	assert.Len(t, address, 40)

	// A fresh holder has no ledger account yet; the derived balance is zero.
	code, envelope := app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	d := data(t, envelope)
	assert.Equal(t, "0", d["balance"])

	// The registration grant funds the asset account.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/vault/assets/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000", data(t, envelope)["balance"])
}

func TestIntegration_DuplicateUsername(t *testing.T) {
	app := newTestApp(t, halfRate)

	app.registerAndLogin(t, "alice")

	code, _ := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"password": "AnotherPass456",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestIntegration_JWT_Unauthorized(t *testing.T) {
	app := newTestApp(t, halfRate)

	code, _ := app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

// The full holder lifecycle: deposit mints at the locked rate, the balance
// accrues as the clock advances, a transfer carries value to a fresh
// recipient, and a redemption pays base asset back out. The entry stream
// stays conserved throughout.
func TestIntegration_DepositAccrueTransferRedeem(t *testing.T) {
	app := newTestApp(t, halfRate)

	aliceAddr, aliceToken := app.registerAndLogin(t, "alice")
	bobAddr, bobToken := app.registerAndLogin(t, "bob")

	// Deposit 1000: moves asset into custody, mints 1000 at halfRate.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/vault/deposit", aliceToken, map[string]string{
		"amount":       "1000",
		"reference_id": "dep-1",
	})
	require.Equal(t, http.StatusCreated, code, "deposit failed: %v", envelope)
	d := data(t, envelope)
	assert.Equal(t, "DEPOSIT", d["operation"])
	assert.Equal(t, "1000", d["principal"])

	// Asset moved out of alice's account into the vault.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/vault/assets/balance", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", assetGrant-1000), data(t, envelope)["balance"])

	// At halfRate the balance doubles after two seconds.
	app.clock.Advance(2 * time.Second)
	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, "2000", d["balance"])
	assert.Equal(t, "1000", d["principal"], "reads never mutate stored principal")

	// Transfer 1500 of the accrued 2000 to bob. Bob has no ledger account
	// yet, so he inherits alice's locked rate.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, map[string]string{
		"to":     bobAddr,
		"amount": "1500",
	})
	require.Equal(t, http.StatusOK, code, "transfer failed: %v", envelope)
	d = data(t, envelope)
	assert.Equal(t, "500", d["from_principal"])
	assert.Equal(t, "1500", d["to_principal"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, "1500", d["balance"])
	assert.Equal(t, fmt.Sprintf("%d", halfRate), d["locked_rate"])

	// Bob redeems 500: units burn, base asset comes back out of custody.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/vault/redeem", bobToken, map[string]string{
		"amount":       "500",
		"reference_id": "red-1",
	})
	require.Equal(t, http.StatusCreated, code, "redeem failed: %v", envelope)
	d = data(t, envelope)
	assert.Equal(t, "REDEEM", d["operation"])
	assert.Equal(t, "500", d["amount"])
	assert.Equal(t, "1000", d["principal"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/vault/assets/balance", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", assetGrant+500), data(t, envelope)["balance"])

	// Custody shrank by the redeemed amount.
	vaultAcct, err := app.assets.Get(t.Context(), domain.VaultAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), vaultAcct.Balance)

	// The conservation surface holds after the whole dance.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/ledger/supply", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, true, d["conserved"], "supply stats: %v", d)

	// The entry stream shows the trail, newest first.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/ledger/entries?address="+aliceAddr, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	items := data(t, envelope)["items"].([]any)
	assert.NotEmpty(t, items)
}

func TestIntegration_DepositReplayReturnsSameReceipt(t *testing.T) {
	app := newTestApp(t, halfRate)

	_, token := app.registerAndLogin(t, "alice")

	body := map[string]string{"amount": "700", "reference_id": "dep-once"}
	code, envelope := app.do(t, http.MethodPost, "/api/v1/vault/deposit", token, body)
	require.Equal(t, http.StatusCreated, code)
	first := data(t, envelope)

	code, envelope = app.do(t, http.MethodPost, "/api/v1/vault/deposit", token, body)
	require.Equal(t, http.StatusCreated, code)
	second := data(t, envelope)

	assert.Equal(t, first, second, "replay must return the original receipt")

	// Exactly one mint happened.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "700", data(t, envelope)["principal"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/vault/assets/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", assetGrant-700), data(t, envelope)["balance"])
}

func TestIntegration_SentinelRedeemDrainsEverything(t *testing.T) {
	app := newTestApp(t, halfRate)

	_, token := app.registerAndLogin(t, "alice")

	code, _ := app.do(t, http.MethodPost, "/api/v1/vault/deposit", token, map[string]string{
		"amount":       "800",
		"reference_id": "dep-1",
	})
	require.Equal(t, http.StatusCreated, code)

	app.clock.Advance(2 * time.Second) // 800 -> 1600 at halfRate

	code, envelope := app.do(t, http.MethodPost, "/api/v1/vault/redeem", token, map[string]string{
		"amount":       "18446744073709551615",
		"reference_id": "red-all",
	})
	require.Equal(t, http.StatusCreated, code, "redeem failed: %v", envelope)
	d := data(t, envelope)
	assert.Equal(t, "1600", d["amount"], "sentinel redeems the whole accrued balance")
	assert.Equal(t, "0", d["principal"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", data(t, envelope)["balance"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/vault/assets/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", assetGrant+800), data(t, envelope)["balance"])
}

func TestIntegration_RateGovernance(t *testing.T) {
	app := newTestApp(t, halfRate)

	_, aliceToken := app.registerAndLogin(t, "alice")
	adminAddr, adminToken := app.registerAndLogin(t, "admin")

	// Holders without the admin role cannot touch the rate.
	code, _ := app.do(t, http.MethodPut, "/api/v1/ledger/rate", aliceToken, map[string]string{
		"rate": fmt.Sprintf("%d", quarterRate),
	})
	assert.Equal(t, http.StatusForbidden, code)

	app.gate.grant(adminAddr, domain.RoleAdmin)

	// Raising the rate is rejected even for admins.
	code, _ = app.do(t, http.MethodPut, "/api/v1/ledger/rate", adminToken, map[string]string{
		"rate": fmt.Sprintf("%d", halfRate+1),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	// Alice locks halfRate before the change.
	code, _ = app.do(t, http.MethodPost, "/api/v1/vault/deposit", aliceToken, map[string]string{
		"amount":       "100",
		"reference_id": "dep-pre",
	})
	require.Equal(t, http.StatusCreated, code)

	// Lowering is allowed.
	code, _ = app.do(t, http.MethodPut, "/api/v1/ledger/rate", adminToken, map[string]string{
		"rate": fmt.Sprintf("%d", quarterRate),
	})
	require.Equal(t, http.StatusOK, code)

	code, envelope := app.do(t, http.MethodGet, "/api/v1/ledger/rate", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", quarterRate), data(t, envelope)["rate"])

	// A later depositor locks the lowered rate; alice keeps hers.
	_, bobToken := app.registerAndLogin(t, "bob")
	code, _ = app.do(t, http.MethodPost, "/api/v1/vault/deposit", bobToken, map[string]string{
		"amount":       "100",
		"reference_id": "dep-post",
	})
	require.Equal(t, http.StatusCreated, code)

	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", quarterRate), data(t, envelope)["locked_rate"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/accounts/me/balance", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fmt.Sprintf("%d", halfRate), data(t, envelope)["locked_rate"])
}

func TestIntegration_MintRequiresRole(t *testing.T) {
	app := newTestApp(t, halfRate)

	addr, token := app.registerAndLogin(t, "mallory")

	code, _ := app.do(t, http.MethodPost, "/api/v1/ledger/mint", token, map[string]string{
		"to":     addr,
		"amount": "1000000",
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestIntegration_SelfTransferRejected(t *testing.T) {
	app := newTestApp(t, halfRate)

	addr, token := app.registerAndLogin(t, "alice")

	code, _ := app.do(t, http.MethodPost, "/api/v1/transfers", token, map[string]string{
		"to":     addr,
		"amount": "10",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}
