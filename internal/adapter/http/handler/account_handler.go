package handler

import (
	"time"

	"accruing-ledger/internal/adapter/http/dto"
	"accruing-ledger/internal/adapter/http/middleware"
	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"
	"accruing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles account and transfer endpoints.
type AccountHandler struct {
	ledgerSvc ports.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledgerSvc ports.LedgerService) *AccountHandler {
	return &AccountHandler{ledgerSvc: ledgerSvc}
}

// callerAddress pulls the authenticated ledger address off the context.
func callerAddress(c *gin.Context) (string, bool) {
	addr, ok := c.Get(middleware.CtxAddress)
	if !ok {
		return "", false
	}
	s, ok := addr.(string)
	return s, ok
}

// Me handles GET /api/v1/accounts/me.
func (h *AccountHandler) Me(c *gin.Context) {
	address, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.ledgerSvc.GetAccount(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// MyBalance handles GET /api/v1/accounts/me/balance.
func (h *AccountHandler) MyBalance(c *gin.Context) {
	address, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.ledgerSvc.BalanceOf(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBalanceResponse(result))
}

// GetAccount handles GET /api/v1/accounts/:address.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	address := c.Param("address")

	account, err := h.ledgerSvc.GetAccount(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// GetBalance handles GET /api/v1/accounts/:address/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	address := c.Param("address")

	result, err := h.ledgerSvc.BalanceOf(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBalanceResponse(result))
}

// Transfer handles POST /api/v1/transfers.
func (h *AccountHandler) Transfer(c *gin.Context) {
	from, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		From:   from,
		To:     req.To,
		Amount: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransferResponse{
		From:          result.From,
		To:            result.To,
		Amount:        domain.FormatAmount(result.Amount),
		FromPrincipal: domain.FormatAmount(result.FromPrincipal),
		ToPrincipal:   domain.FormatAmount(result.ToPrincipal),
	})
}

func toAccountResponse(a *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		Address:       a.Address,
		Principal:     domain.FormatAmount(a.Principal),
		LockedRate:    domain.FormatAmount(a.LockedRate),
		LastAccrualAt: a.LastAccrualAt,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceResponse(r *ports.BalanceResult) dto.BalanceResponse {
	return dto.BalanceResponse{
		Address:    r.Address,
		Balance:    domain.FormatAmount(r.Balance),
		Principal:  domain.FormatAmount(r.Principal),
		LockedRate: domain.FormatAmount(r.LockedRate),
		At:         r.At,
	}
}
