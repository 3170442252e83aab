package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/api/middleware"
	"github.com/cantadelicia/estanquillo-backend/internal/reconcile"
	"github.com/cantadelicia/estanquillo-backend/internal/sales"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

type stubSaleRepo struct {
	sales map[uuid.UUID]*models.Sale
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{sales: map[uuid.UUID]*models.Sale{}}
}

func (s *stubSaleRepo) WithTx(*gorm.DB) sales.Repository { return s }

func (s *stubSaleRepo) CreateSale(_ context.Context, sale *models.Sale) (*models.Sale, error) {
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *stubSaleRepo) FindSale(_ context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sale
	return &copied, nil
}

func (s *stubSaleRepo) ListRecent(_ context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error) {
	var out []models.Sale
	for _, sale := range s.sales {
		if sale.VendorID == vendorID && len(out) < limit {
			out = append(out, *sale)
		}
	}
	return out, nil
}

func (s *stubSaleRepo) SearchByProductName(_ context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error) {
	var out []models.Sale
	for _, sale := range s.sales {
		if sale.VendorID != vendorID {
			continue
		}
		for _, productName := range sale.ProductNames {
			if productName == name {
				out = append(out, *sale)
				break
			}
		}
	}
	return out, nil
}

func (s *stubSaleRepo) CountForRange(context.Context, uuid.UUID, time.Time, time.Time) (int64, error) {
	return int64(len(s.sales)), nil
}

func (s *stubSaleRepo) MarkCancelled(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	sale := s.sales[id]
	sale.Status = enums.SaleStatusCancelled
	sale.CancelReason = &reason
	sale.CancelledAt = &at
	return nil
}

type passthroughRunner struct{}

func (passthroughRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type noopStock struct{}

func (noopStock) ApplyTx(context.Context, *gorm.DB, []models.SaleLine, reconcile.Direction) error {
	return nil
}

type openGate struct{}

func (openGate) IsOpenFor(context.Context, uuid.UUID) bool { return true }

func saleTestFactory(t *testing.T, repo *stubSaleRepo) *sales.Factory {
	t.Helper()
	factory, err := sales.NewFactory(sales.FactoryOptions{
		Repo:   repo,
		Runner: passthroughRunner{},
		Stock:  noopStock{},
		Gate:   openGate{},
		Hub:    notify.NewHub(0),
		Logger: logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("build factory: %v", err)
	}
	return factory
}

func completedSale(vendorID uuid.UUID) *models.Sale {
	return &models.Sale{
		ID:           uuid.New(),
		VendorID:     vendorID,
		Folio:        "20260829-001",
		ProductNames: []string{"Queso"},
		TotalCents:   25000,
		Status:       enums.SaleStatusCompleted,
	}
}

func TestSaleCancelSuccess(t *testing.T) {
	vendorID := uuid.New()
	repo := newStubSaleRepo()
	sale := completedSale(vendorID)
	repo.sales[sale.ID] = sale

	handler := SaleCancel(saleTestFactory(t, repo), nil)

	body := strings.NewReader(`{"reason":"cliente se arrepintió"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+sale.ID.String()+"/cancel", body)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("saleId", sale.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if repo.sales[sale.ID].Status != enums.SaleStatusCancelled {
		t.Fatalf("expected sale to be cancelled, got %s", repo.sales[sale.ID].Status)
	}
}

func TestSaleCancelRequiresReason(t *testing.T) {
	vendorID := uuid.New()
	repo := newStubSaleRepo()
	sale := completedSale(vendorID)
	repo.sales[sale.ID] = sale

	handler := SaleCancel(saleTestFactory(t, repo), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+sale.ID.String()+"/cancel", strings.NewReader(`{}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("saleId", sale.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if repo.sales[sale.ID].Status != enums.SaleStatusCompleted {
		t.Fatalf("sale should be untouched, got %s", repo.sales[sale.ID].Status)
	}
}

func TestSaleListScopedToVendor(t *testing.T) {
	vendorID := uuid.New()
	repo := newStubSaleRepo()
	mine := completedSale(vendorID)
	other := completedSale(uuid.New())
	repo.sales[mine.ID] = mine
	repo.sales[other.ID] = other

	handler := SaleList(saleTestFactory(t, repo), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req = req.WithContext(middleware.WithVendorID(req.Context(), vendorID.String()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data []models.Sale `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].ID != mine.ID {
		t.Fatalf("expected only the vendor's sale, got %d entries", len(envelope.Data))
	}
}

func TestSaleListRequiresIdentity(t *testing.T) {
	handler := SaleList(saleTestFactory(t, newStubSaleRepo()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestSaleSearchRequiresProduct(t *testing.T) {
	handler := SaleSearch(saleTestFactory(t, newStubSaleRepo()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/search", nil)
	req = req.WithContext(middleware.WithVendorID(req.Context(), uuid.New().String()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
