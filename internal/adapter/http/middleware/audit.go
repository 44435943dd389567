package middleware

import (
	"encoding/json"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps HTTP methods and paths to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		var holderID *uuid.UUID
		if hid, exists := c.Get(CtxHolderID); exists {
			if id, ok := hid.(uuid.UUID); ok {
				holderID = &id
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			HolderID:     holderID,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	switch {
	case path == "/api/v1/auth/register" && method == "POST":
		return domain.AuditActionRegister, "holder"
	case path == "/api/v1/auth/login" && method == "POST":
		return domain.AuditActionLogin, "session"
	case path == "/api/v1/transfers" && method == "POST":
		return domain.AuditActionTransfer, "account"
	case path == "/api/v1/vault/deposit" && method == "POST":
		return domain.AuditActionDeposit, "vault"
	case path == "/api/v1/vault/redeem" && method == "POST":
		return domain.AuditActionRedeem, "vault"
	case path == "/api/v1/ledger/mint" && method == "POST":
		return domain.AuditActionMint, "account"
	case path == "/api/v1/ledger/burn" && method == "POST":
		return domain.AuditActionBurn, "account"
	case path == "/api/v1/ledger/rate" && method == "PUT":
		return domain.AuditActionRateChange, "rate"
	}
	return "", ""
}
