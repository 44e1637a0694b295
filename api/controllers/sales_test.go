package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmucavele/pdv-backend/api/middleware"
	"github.com/jmucavele/pdv-backend/internal/audit"
	salesvc "github.com/jmucavele/pdv-backend/internal/sales"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	"github.com/jmucavele/pdv-backend/pkg/logger"
)

type stubSaleService struct {
	commitInput *salesvc.CommitInput
	commitActor *audit.Actor
	cancelID    uuid.UUID
	reason      string
}

func (s *stubSaleService) Commit(_ context.Context, actor audit.Actor, input salesvc.CommitInput) (*salesvc.SaleDTO, error) {
	s.commitActor = &actor
	s.commitInput = &input
	return &salesvc.SaleDTO{ID: uuid.New(), SaleNumber: "202608290001"}, nil
}

func (s *stubSaleService) Cancel(_ context.Context, _ audit.Actor, saleID uuid.UUID, reason string) (*salesvc.SaleDTO, error) {
	s.cancelID = saleID
	s.reason = reason
	return &salesvc.SaleDTO{ID: saleID}, nil
}

func (s *stubSaleService) Get(_ context.Context, saleID uuid.UUID) (*salesvc.SaleDTO, error) {
	return &salesvc.SaleDTO{ID: saleID}, nil
}

func (s *stubSaleService) List(_ context.Context, _ salesvc.ListInput) (*salesvc.ListResult, error) {
	return &salesvc.ListResult{}, nil
}

func (s *stubSaleService) Dashboard(_ context.Context, _ audit.Actor) (*salesvc.DashboardDTO, error) {
	return &salesvc.DashboardDTO{}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func sellerContext(userID uuid.UUID) context.Context {
	ctx := middleware.WithUserID(context.Background(), userID.String())
	return middleware.WithRole(ctx, string(enums.UserRoleSeller))
}

func TestCommitSale(t *testing.T) {
	logg := testLogger()
	sellerID := uuid.New()
	productID := uuid.New()

	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":"2"}],"payment_method":"cash","amount_paid":"50.00"}`

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CommitSale(&stubSaleService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 when user missing, got %d", rec.Code)
		}
	})

	t.Run("invalid payment method", func(t *testing.T) {
		payload := strings.Replace(body, "cash", "barter", 1)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(payload))
		req = req.WithContext(sellerContext(sellerID))
		rec := httptest.NewRecorder()
		CommitSale(&stubSaleService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid method, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubSaleService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		req = req.WithContext(sellerContext(sellerID))
		rec := httptest.NewRecorder()
		CommitSale(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 on success, got %d", rec.Code)
		}
		if stub.commitInput == nil || len(stub.commitInput.Items) != 1 {
			t.Fatalf("expected one sale item forwarded to the service")
		}
		if stub.commitActor.UserID != sellerID {
			t.Fatalf("expected actor user id %s, got %s", sellerID, stub.commitActor.UserID)
		}
		if stub.commitInput.PaymentMethod != enums.PaymentMethodCash {
			t.Fatalf("expected cash payment method, got %s", stub.commitInput.PaymentMethod)
		}

		var envelope struct {
			Data struct {
				SaleNumber string `json:"sale_number"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if envelope.Data.SaleNumber != "202608290001" {
			t.Fatalf("expected sale number in response, got %q", envelope.Data.SaleNumber)
		}
	})
}

func TestCancelSale(t *testing.T) {
	logg := testLogger()
	sellerID := uuid.New()
	saleID := uuid.New()

	makeRequest := func(stub *stubSaleService, rawID, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+rawID+"/cancel", strings.NewReader(body))
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("saleId", rawID)
		ctx := context.WithValue(sellerContext(sellerID), chi.RouteCtxKey, routeCtx)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CancelSale(stub, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("invalid sale id", func(t *testing.T) {
		rec := makeRequest(&stubSaleService{}, "not-a-uuid", `{"reason":"typo"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid id, got %d", rec.Code)
		}
	})

	t.Run("missing reason", func(t *testing.T) {
		rec := makeRequest(&stubSaleService{}, saleID.String(), `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 when reason missing, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubSaleService{}
		rec := makeRequest(stub, saleID.String(), `{"reason":"customer returned items"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on success, got %d", rec.Code)
		}
		if stub.cancelID != saleID {
			t.Fatalf("expected cancel forwarded for %s, got %s", saleID, stub.cancelID)
		}
		if stub.reason != "customer returned items" {
			t.Fatalf("unexpected reason %q", stub.reason)
		}
	})
}
