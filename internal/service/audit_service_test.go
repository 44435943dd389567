package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"accruing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type capturingAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *capturingAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *capturingAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestAuditService_LogPersistsAsync(t *testing.T) {
	repo := &capturingAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	holderID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		ID:       uuid.New(),
		HolderID: &holderID,
		Action:   domain.AuditActionTransfer,
	})

	assert.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestAuditService_NilRepoDoesNotPanic(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin})
		time.Sleep(20 * time.Millisecond)
	})
}
