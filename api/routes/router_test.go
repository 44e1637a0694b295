package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmucavele/pdv-backend/internal/audit"
	authsvc "github.com/jmucavele/pdv-backend/internal/auth"
	notificationsvc "github.com/jmucavele/pdv-backend/internal/notifications"
	reportsvc "github.com/jmucavele/pdv-backend/internal/reports"
	salesvc "github.com/jmucavele/pdv-backend/internal/sales"
	pkgauth "github.com/jmucavele/pdv-backend/pkg/auth"
	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	"github.com/jmucavele/pdv-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessionManager struct{}

func (stubSessionManager) HasSession(context.Context, string) (bool, error) { return true, nil }

func (stubSessionManager) Rotate(context.Context, string, string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(context.Context, string) error { return nil }

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Refresh(context.Context, authsvc.RefreshRequest) (*authsvc.RefreshResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Logout(context.Context, string) error { return nil }

type stubReportService struct{}

func (stubReportService) Generate(context.Context, int, int) (*reportsvc.ReportDTO, error) {
	return &reportsvc.ReportDTO{}, nil
}

func (stubReportService) Get(context.Context, audit.Actor, int, int) (*reportsvc.ReportDTO, error) {
	return &reportsvc.ReportDTO{}, nil
}

func (stubReportService) List(context.Context, audit.Actor, int) ([]reportsvc.ReportDTO, error) {
	return nil, nil
}

func (stubReportService) PeriodStats(context.Context, audit.Actor, time.Time, time.Time) (*reportsvc.PeriodStatsDTO, error) {
	return &reportsvc.PeriodStatsDTO{}, nil
}

type stubSalesService struct{}

func (stubSalesService) Commit(context.Context, audit.Actor, salesvc.CommitInput) (*salesvc.SaleDTO, error) {
	return &salesvc.SaleDTO{}, nil
}

func (stubSalesService) Cancel(context.Context, audit.Actor, uuid.UUID, string) (*salesvc.SaleDTO, error) {
	return &salesvc.SaleDTO{}, nil
}

func (stubSalesService) Get(context.Context, uuid.UUID) (*salesvc.SaleDTO, error) {
	return &salesvc.SaleDTO{}, nil
}

func (stubSalesService) List(context.Context, salesvc.ListInput) (*salesvc.ListResult, error) {
	return &salesvc.ListResult{}, nil
}

func (stubSalesService) Dashboard(context.Context, audit.Actor) (*salesvc.DashboardDTO, error) {
	return &salesvc.DashboardDTO{}, nil
}

type stubNotificationService struct{}

func (stubNotificationService) List(context.Context, notificationsvc.ListParams) (*notificationsvc.ListResult, error) {
	return &notificationsvc.ListResult{}, nil
}

func (stubNotificationService) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotificationService) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func testRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "pdv-test", ExpirationMinutes: 15}

	logg := logger.New(logger.Options{ServiceName: "routes-test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	handler := NewRouter(cfg, logg, stubPinger{}, nil, stubSessionManager{}, Services{
		Auth:          stubAuthService{},
		Sales:         stubSalesService{},
		Reports:       stubReportService{},
		Notifications: stubNotificationService{},
	})
	return handler, cfg.JWT
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthIsPublic(t *testing.T) {
	handler, _ := testRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterRequiresAuth(t *testing.T) {
	handler, _ := testRouter(t)

	for _, path := range []string{"/api/v1/sales", "/api/v1/products", "/api/v1/notifications"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, rec.Code)
		}
	}
}

func TestRouterAuthenticatedAccess(t *testing.T) {
	handler, jwtCfg := testRouter(t)
	token := mintToken(t, jwtCfg, enums.UserRoleSeller)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestRouterCapabilityGates(t *testing.T) {
	handler, jwtCfg := testRouter(t)

	t.Run("seller blocked from reports", func(t *testing.T) {
		token := mintToken(t, jwtCfg, enums.UserRoleSeller)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for seller, got %d", rec.Code)
		}
	})

	t.Run("manager allowed into reports", func(t *testing.T) {
		token := mintToken(t, jwtCfg, enums.UserRoleManager)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for manager, got %d", rec.Code)
		}
	})
}
