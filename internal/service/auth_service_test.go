package service

import (
	"context"
	"testing"
	"time"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"
	"accruing-ledger/internal/core/ports/mocks"
	"accruing-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testAssetGrant = uint64(1_000_000)

type authTestDeps struct {
	svc        *AuthServiceImpl
	holderRepo *mocks.MockHolderRepository
	assetRepo  *mocks.MockAssetRepository
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
	ctrl       *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		holderRepo: mocks.NewMockHolderRepository(ctrl),
		assetRepo:  mocks.NewMockAssetRepository(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewAuthService(d.holderRepo, d.assetRepo, d.hashSvc, d.tokenSvc, testAssetGrant)
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.holderRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret").Return("$argon2id$...", nil)

	var created *domain.Holder
	d.holderRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, h *domain.Holder) error {
			created = h
			return nil
		})

	var granted *domain.AssetAccount
	d.assetRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.AssetAccount) error {
			granted = a
			return nil
		})

	resp, err := d.svc.Register(context.Background(), ports.RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, created.ID, resp.HolderID)
	assert.Equal(t, created.Address, resp.Address)
	assert.Len(t, resp.Address, 40, "address is 20 random bytes hex-encoded")
	assert.Equal(t, "$argon2id$...", created.PasswordHash)

	require.NotNil(t, granted)
	assert.Equal(t, created.Address, granted.Address)
	assert.Equal(t, testAssetGrant, granted.Balance)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.holderRepo.EXPECT().GetByUsername(gomock.Any(), "alice").
		Return(&domain.Holder{ID: uuid.New(), Username: "alice"}, nil)

	_, err := d.svc.Register(context.Background(), ports.RegisterRequest{Username: "alice", Password: "x"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	holderID := uuid.New()
	holder := &domain.Holder{ID: holderID, Username: "alice", PasswordHash: "hashed", Address: "addr1"}
	expiry := time.Now().Add(time.Hour)

	d.holderRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(holder, nil)
	d.hashSvc.EXPECT().Verify("s3cret", "hashed").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(holderID, "addr1").Return("jwt-token", expiry, nil)

	token, exp, err := d.svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	holder := &domain.Holder{ID: uuid.New(), Username: "alice", PasswordHash: "hashed"}
	d.holderRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(holder, nil)
	d.hashSvc.EXPECT().Verify("wrong", "hashed").Return(false, nil)

	_, _, err := d.svc.Login(context.Background(), "alice", "wrong")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.holderRepo.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, _, err := d.svc.Login(context.Background(), "ghost", "x")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}
