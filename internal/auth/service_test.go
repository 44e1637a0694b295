package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/users"
	pkgAuth "github.com/jmucavele/pdv-backend/pkg/auth"
	"github.com/jmucavele/pdv-backend/pkg/auth/session"
	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/security"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeSessionManager struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	f.generated = append(f.generated, accessID)
	return "refresh-" + accessID, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if f.rotateErr != nil {
		return "", "", f.rotateErr
	}
	newAccessID := session.NewAccessID()
	return newAccessID, "refresh-" + newAccessID, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	return nil
}

type fixture struct {
	svc     Service
	db      *gorm.DB
	session *fakeSessionManager
	jwtCfg  config.JWTConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.AuditLog{}))

	jwtCfg := config.JWTConfig{
		Secret:            "auth-test-secret",
		Issuer:            "pdv-test",
		ExpirationMinutes: 15,
	}
	manager := &fakeSessionManager{}
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(db),
		SessionManager: manager,
		TxRunner:       gormTxRunner{db: db},
		JWTConfig:      jwtCfg,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, db: db, session: manager, jwtCfg: jwtCfg}
}

func (f *fixture) seedUser(t *testing.T, email, password string, role enums.UserRole, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ana",
		LastName:     "Macamo",
		Role:         role,
		IsActive:     active,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedUser(t, "ana@loja.test", "s3cret-pass", enums.UserRoleSeller, true)

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "Ana@Loja.Test", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, seeded.ID, resp.User.ID)
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(f.jwtCfg, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, claims.UserID)
	require.Equal(t, enums.UserRoleSeller, claims.Role)
	require.Len(t, f.session.generated, 1)
	require.Equal(t, claims.ID, f.session.generated[0])

	var entry models.AuditLog
	require.NoError(t, f.db.Where("action = ?", enums.AuditActionLogin).First(&entry).Error)
	require.Equal(t, "user", entry.EntityType)
	require.Equal(t, seeded.ID, entry.EntityID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "ana@loja.test", "s3cret-pass", enums.UserRoleSeller, true)
	f.seedUser(t, "gone@loja.test", "s3cret-pass", enums.UserRoleSeller, false)

	cases := []struct {
		name string
		req  LoginRequest
	}{
		{name: "wrong password", req: LoginRequest{Email: "ana@loja.test", Password: "wrong"}},
		{name: "unknown email", req: LoginRequest{Email: "nobody@loja.test", Password: "s3cret-pass"}},
		{name: "inactive user", req: LoginRequest{Email: "gone@loja.test", Password: "s3cret-pass"}},
		{name: "blank email", req: LoginRequest{Password: "s3cret-pass"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tc.req)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
		})
	}

	var audits int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Count(&audits).Error)
	require.Zero(t, audits)
}

func TestRefreshRotatesPair(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedUser(t, "ana@loja.test", "s3cret-pass", enums.UserRoleSeller, true)

	login, err := f.svc.Login(ctx, LoginRequest{Email: "ana@loja.test", Password: "s3cret-pass"})
	require.NoError(t, err)

	// Role changes between login and refresh must surface in the new token.
	require.NoError(t, f.db.Model(&models.User{}).
		Where("id = ?", seeded.ID).
		Update("role", enums.UserRoleManager).Error)

	resp, err := f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEqual(t, login.AccessToken, resp.AccessToken)
	require.NotEqual(t, login.RefreshToken, resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(f.jwtCfg, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, claims.UserID)
	require.Equal(t, enums.UserRoleManager, claims.Role)
}

func TestRefreshRejectsInvalidSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "ana@loja.test", "s3cret-pass", enums.UserRoleSeller, true)

	login, err := f.svc.Login(ctx, LoginRequest{Email: "ana@loja.test", Password: "s3cret-pass"})
	require.NoError(t, err)

	f.session.rotateErr = session.ErrInvalidRefreshToken
	_, err = f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "stale-token",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedUser(t, "ana@loja.test", "s3cret-pass", enums.UserRoleSeller, true)

	login, err := f.svc.Login(ctx, LoginRequest{Email: "ana@loja.test", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.User{}).
		Where("id = ?", seeded.ID).
		Update("is_active", false).Error)

	_, err = f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, "access-id"))
	require.Equal(t, []string{"access-id"}, f.session.revoked)

	err := f.svc.Logout(ctx, "  ")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
