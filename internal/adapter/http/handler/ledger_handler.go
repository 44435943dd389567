package handler

import (
	"strconv"
	"time"

	"accruing-ledger/internal/adapter/http/dto"
	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"
	"accruing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles operator ledger endpoints. Role checks live in the
// service layer; the handler only resolves the caller's address.
type LedgerHandler struct {
	ledgerSvc    ports.LedgerService
	reportingSvc ports.ReportingService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService, reportingSvc ports.ReportingService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, reportingSvc: reportingSvc}
}

// Mint handles POST /api/v1/ledger/mint.
func (h *LedgerHandler) Mint(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil || amount.IsAll() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.ledgerSvc.Mint(c.Request.Context(), ports.MintRequest{
		Caller: caller,
		To:     req.To,
		Amount: amount.Value(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MintResponse{
		To:         result.To,
		Minted:     domain.FormatAmount(result.Minted),
		Principal:  domain.FormatAmount(result.Principal),
		LockedRate: domain.FormatAmount(result.LockedRate),
	})
}

// Burn handles POST /api/v1/ledger/burn.
func (h *LedgerHandler) Burn(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.ledgerSvc.Burn(c.Request.Context(), ports.BurnRequest{
		Caller: caller,
		From:   req.From,
		Amount: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.BurnResponse{
		From:      result.From,
		Burned:    domain.FormatAmount(result.Burned),
		Principal: domain.FormatAmount(result.Principal),
	})
}

// GetRate handles GET /api/v1/ledger/rate.
func (h *LedgerHandler) GetRate(c *gin.Context) {
	rate, err := h.ledgerSvc.GetGlobalRate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RateResponse{
		Rate:      domain.FormatAmount(rate.CurrentRate),
		UpdatedAt: rate.UpdatedAt.Format(time.RFC3339),
	})
}

// SetRate handles PUT /api/v1/ledger/rate.
func (h *LedgerHandler) SetRate(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	rate, err := strconv.ParseUint(req.Rate, 10, 64)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	updated, err := h.ledgerSvc.SetGlobalRate(c.Request.Context(), caller, rate)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RateResponse{
		Rate:      domain.FormatAmount(updated.CurrentRate),
		UpdatedAt: updated.UpdatedAt.Format(time.RFC3339),
	})
}

// ListEntries handles GET /api/v1/ledger/entries.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	params := ports.EntryListParams{}

	if t := c.Query("type"); t != "" {
		entryType := domain.EntryType(t)
		params.Type = &entryType
	}
	if addr := c.Query("address"); addr != "" {
		params.Address = &addr
	}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.reportingSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i]))
	}

	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	response.OK(c, dto.EntryListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetSupply handles GET /api/v1/ledger/supply.
func (h *LedgerHandler) GetSupply(c *gin.Context) {
	stats, err := h.reportingSvc.GetSupplyStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SupplyResponse{
		Minted:         domain.FormatAmount(stats.TotalMinted),
		Burned:         domain.FormatAmount(stats.TotalBurned),
		Accrued:        domain.FormatAmount(stats.TotalAccrued),
		TotalPrincipal: domain.FormatAmount(stats.TotalPrincipal),
		Conserved:      stats.Conserved(),
	})
}

func toEntryResponse(e *domain.LedgerEntry) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Amount:    domain.FormatAmount(e.Amount),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.From != nil {
		resp.From = *e.From
	}
	if e.To != nil {
		resp.To = *e.To
	}
	return resp
}
