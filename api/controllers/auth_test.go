package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmucavele/pdv-backend/api/middleware"
	"github.com/jmucavele/pdv-backend/internal/auth"
)

type stubAuthService struct {
	loginEmail string
	loggedOut  string
}

func (s *stubAuthService) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.loginEmail = req.Email
	return &auth.LoginResponse{AccessToken: "token", RefreshToken: "refresh"}, nil
}

func (s *stubAuthService) Refresh(_ context.Context, _ auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return &auth.RefreshResponse{AccessToken: "token2", RefreshToken: "refresh2"}, nil
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.loggedOut = accessID
	return nil
}

func TestAuthLogin(t *testing.T) {
	logg := testLogger()

	t.Run("missing body fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ana@example.com"}`))
		rec := httptest.NewRecorder()
		AuthLogin(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 when password missing, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"s3cret-pw"}`))
		rec := httptest.NewRecorder()
		AuthLogin(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on success, got %d", rec.Code)
		}
		if stub.loginEmail != "ana@example.com" {
			t.Fatalf("expected email forwarded, got %q", stub.loginEmail)
		}
	})
}

func TestAuthLogout(t *testing.T) {
	logg := testLogger()

	t.Run("missing session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		rec := httptest.NewRecorder()
		AuthLogout(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 when session missing, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req = req.WithContext(middleware.WithAccessID(context.Background(), "session-123"))
		rec := httptest.NewRecorder()
		AuthLogout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 on success, got %d", rec.Code)
		}
		if stub.loggedOut != "session-123" {
			t.Fatalf("expected session revoked, got %q", stub.loggedOut)
		}
	})
}
