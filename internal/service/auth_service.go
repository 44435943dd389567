package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	holderRepo ports.HolderRepository
	assetRepo  ports.AssetRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	assetGrant uint64
}

// NewAuthService creates a new AuthServiceImpl. assetGrant is the base-asset
// balance seeded into each new holder's asset account.
func NewAuthService(
	holderRepo ports.HolderRepository,
	assetRepo ports.AssetRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	assetGrant uint64,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		holderRepo: holderRepo,
		assetRepo:  assetRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		assetGrant: assetGrant,
	}
}

// Register creates a new holder with a fresh ledger address and a seeded
// base-asset account. The ledger account itself is created lazily on the
// holder's first mint.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	existing, err := s.holderRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	address, err := generateRandomHex(20) // 40 hex chars
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate address: %w", err))
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	holder := &domain.Holder{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Address:      address,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.holderRepo.Create(ctx, holder); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create holder: %w", err))
	}

	if err := s.assetRepo.Create(ctx, &domain.AssetAccount{
		Address: address,
		Balance: s.assetGrant,
	}); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create asset account: %w", err))
	}

	return &ports.RegisterResponse{
		HolderID: holder.ID,
		Address:  holder.Address,
	}, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	holder, err := s.holderRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find holder: %w", err))
	}
	if holder == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, holder.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(holder.ID, holder.Address)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
