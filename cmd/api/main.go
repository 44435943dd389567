package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accruing-ledger/config"
	httpHandler "accruing-ledger/internal/adapter/http/handler"
	pgStorage "accruing-ledger/internal/adapter/storage/postgres"
	redisStorage "accruing-ledger/internal/adapter/storage/redis"
	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/internal/service"
	"accruing-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Accruing Ledger")

	ctx := context.Background()

	// Run schema migrations before the pool opens
	if err := pgStorage.RunMigrations(cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	rateRepo := pgStorage.NewRateRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	assetRepo := pgStorage.NewAssetRepo(pool)
	holderRepo := pgStorage.NewHolderRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	roleRepo := pgStorage.NewRoleRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Seed the global rate row on first start
	if err := rateRepo.Init(ctx, cfg.Ledger.InitialRate); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed global rate")
	}

	// Bootstrap the configured admin; re-granting is a no-op
	if addr := cfg.Ledger.AdminAddress; addr != "" {
		if err := roleRepo.Grant(ctx, addr, domain.RoleAdmin); err != nil {
			log.Fatal().Err(err).Msg("Failed to grant admin role")
		}
		log.Info().Str("address", addr).Msg("Admin role granted")
	}

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	clock := service.NewSystemClock()

	// Event fanout: Redis pub/sub always, webhook when configured
	notifier := service.NewFanoutNotifier(
		redisStorage.NewEventPublisher(rdb),
		service.NewWebhookNotifier(cfg.Ledger.WebhookURL, &http.Client{Timeout: 10 * time.Second}, log),
	)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(accountRepo, rateRepo, entryRepo, roleRepo, transactor, clock, notifier, log)
	vaultSvc := service.NewVaultService(ledgerSvc, assetRepo, idempotencyRepo, idempotencyCache, transactor, clock, notifier, log)
	authSvc := service.NewAuthService(holderRepo, assetRepo, hashSvc, tokenSvc, cfg.Ledger.AssetGrant)
	reportingSvc := service.NewReportingService(entryRepo, accountRepo)
	auditRepo := pgStorage.NewAuditRepository(pool)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		VaultSvc:       vaultSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
