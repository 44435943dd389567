package service

import (
	"context"
	"fmt"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	entryRepo   ports.EntryRepository
	accountRepo ports.AccountRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	entryRepo ports.EntryRepository,
	accountRepo ports.AccountRepository,
) ports.ReportingService {
	return &reportingService{
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
	}
}

// ListEntries returns a paginated slice of the ledger entry stream.
func (s *reportingService) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// GetSupplyStats aggregates supply totals from the entry stream and the sum
// of realized principal. A conserved ledger has
// principal == minted + accrued - burned.
func (s *reportingService) GetSupplyStats(ctx context.Context) (*domain.SupplyStats, error) {
	minted, burned, accrued, err := s.entryRepo.SupplyTotals(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("supply totals: %w", err))
	}
	principal, err := s.accountRepo.SumPrincipal(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum principal: %w", err))
	}
	return &domain.SupplyStats{
		TotalMinted:    minted,
		TotalBurned:    burned,
		TotalAccrued:   accrued,
		TotalPrincipal: principal,
	}, nil
}
