package handler

import (
	"time"

	"accruing-ledger/internal/adapter/http/dto"
	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"
	"accruing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// VaultHandler handles custody vault endpoints.
type VaultHandler struct {
	vaultSvc ports.VaultService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaultSvc ports.VaultService) *VaultHandler {
	return &VaultHandler{vaultSvc: vaultSvc}
}

// Deposit handles POST /api/v1/vault/deposit.
func (h *VaultHandler) Deposit(c *gin.Context) {
	address, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil || amount.IsAll() {
		// Deposits move an exact asset quantity; the sentinel has no
		// meaning here.
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	receipt, err := h.vaultSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		Address:     address,
		Amount:      amount.Value(),
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toReceiptResponse(receipt))
}

// Redeem handles POST /api/v1/vault/redeem.
func (h *VaultHandler) Redeem(c *gin.Context) {
	address, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	receipt, err := h.vaultSvc.Redeem(c.Request.Context(), ports.RedeemRequest{
		Address:     address,
		Amount:      amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toReceiptResponse(receipt))
}

// AssetBalance handles GET /api/v1/vault/assets/balance.
func (h *VaultHandler) AssetBalance(c *gin.Context) {
	address, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.vaultSvc.AssetBalance(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AssetBalanceResponse{
		Address: address,
		Balance: domain.FormatAmount(balance),
	})
}

func toReceiptResponse(r *ports.VaultReceipt) dto.VaultReceiptResponse {
	return dto.VaultReceiptResponse{
		Operation:   r.Operation,
		Address:     r.Address,
		Amount:      domain.FormatAmount(r.Amount),
		ReferenceID: r.ReferenceID,
		Principal:   domain.FormatAmount(r.Principal),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}
