package handler

import (
	"accruing-ledger/internal/adapter/http/middleware"
	redisStore "accruing-ledger/internal/adapter/storage/redis"
	"accruing-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	VaultSvc       ports.VaultService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated holder routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	accountHandler := NewAccountHandler(deps.LedgerSvc)
	vaultHandler := NewVaultHandler(deps.VaultSvc)

	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("/me", rl("reports"), accountHandler.Me)
		accounts.GET("/me/balance", rl("reports"), accountHandler.MyBalance)
		accounts.GET("/:address", rl("reports"), accountHandler.GetAccount)
		accounts.GET("/:address/balance", rl("reports"), accountHandler.GetBalance)
	}

	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), accountHandler.Transfer)
	}

	vault := v1.Group("/vault", jwtAuth)
	{
		vault.POST("/deposit", rl("vault"), vaultHandler.Deposit)
		vault.POST("/redeem", rl("vault"), vaultHandler.Redeem)
		vault.GET("/assets/balance", rl("reports"), vaultHandler.AssetBalance)
	}

	// --- Operator routes (role checks in the service layer) ---
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.ReportingSvc)
	ledger := v1.Group("/ledger", jwtAuth)
	{
		ledger.POST("/mint", rl("ledger_admin"), ledgerHandler.Mint)
		ledger.POST("/burn", rl("ledger_admin"), ledgerHandler.Burn)
		ledger.GET("/rate", rl("reports"), ledgerHandler.GetRate)
		ledger.PUT("/rate", rl("ledger_admin"), ledgerHandler.SetRate)
		ledger.GET("/entries", rl("reports"), ledgerHandler.ListEntries)
		ledger.GET("/supply", rl("reports"), ledgerHandler.GetSupply)
	}

	return r
}
