package sales

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/internal/reconcile"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// The text[] product-name index keeps the Sale model off sqlite, so these
// tests run against an in-memory repository double instead.
type stubRepo struct {
	sales map[uuid.UUID]*models.Sale
}

func newStubRepo() *stubRepo {
	return &stubRepo{sales: make(map[uuid.UUID]*models.Sale)}
}

func (r *stubRepo) WithTx(*gorm.DB) Repository { return r }

func (r *stubRepo) CreateSale(_ context.Context, sale *models.Sale) (*models.Sale, error) {
	for _, existing := range r.sales {
		if existing.VendorID == sale.VendorID && existing.Folio == sale.Folio {
			return nil, fmt.Errorf("duplicate folio %s for vendor %s", sale.Folio, sale.VendorID)
		}
	}
	clone := *sale
	r.sales[sale.ID] = &clone
	return sale, nil
}

func (r *stubRepo) FindSale(_ context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *sale
	return &clone, nil
}

func (r *stubRepo) ListRecent(_ context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error) {
	var out []models.Sale
	for _, sale := range r.sales {
		if sale.VendorID == vendorID && len(out) < limit {
			out = append(out, *sale)
		}
	}
	return out, nil
}

func (r *stubRepo) SearchByProductName(_ context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error) {
	var out []models.Sale
	for _, sale := range r.sales {
		if sale.VendorID != vendorID {
			continue
		}
		for _, candidate := range sale.ProductNames {
			if candidate == name {
				out = append(out, *sale)
				break
			}
		}
	}
	return out, nil
}

func (r *stubRepo) CountForRange(_ context.Context, vendorID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	for _, sale := range r.sales {
		if sale.VendorID == vendorID && !sale.CreatedAt.Before(from) && sale.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (r *stubRepo) MarkCancelled(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	sale, ok := r.sales[id]
	if !ok || sale.Status == enums.SaleStatusCancelled {
		return nil
	}
	sale.Status = enums.SaleStatusCancelled
	sale.CancelReason = &reason
	cancelledAt := at
	sale.CancelledAt = &cancelledAt
	return nil
}

// stubRunner simulates transactional rollback by restoring the repo map
// when the callback fails.
type stubRunner struct {
	repo *stubRepo
}

func (r *stubRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	snapshot := make(map[uuid.UUID]*models.Sale, len(r.repo.sales))
	for id, sale := range r.repo.sales {
		clone := *sale
		snapshot[id] = &clone
	}
	if err := fn(nil); err != nil {
		r.repo.sales = snapshot
		return err
	}
	return nil
}

type stubStock struct {
	applied  [][]models.SaleLine
	reversed [][]models.SaleLine
	err      error
}

func (s *stubStock) ApplyTx(_ context.Context, _ *gorm.DB, lines []models.SaleLine, dir reconcile.Direction) error {
	if s.err != nil {
		return s.err
	}
	if dir == reconcile.DirectionReverse {
		s.reversed = append(s.reversed, lines)
	} else {
		s.applied = append(s.applied, lines)
	}
	return nil
}

type stubCarts struct {
	active  cart.Cart
	cleared int
}

func (c *stubCarts) Active() cart.Cart { return c.active }

func (c *stubCarts) ClearActive(_ context.Context) { c.cleared++ }

type stubSessions struct {
	sessionID uuid.UUID
	active    bool
	consumed  int
}

func (s *stubSessions) ActiveSessionID() (uuid.UUID, bool) { return s.sessionID, s.active }

func (s *stubSessions) Consume(_ context.Context) (uuid.UUID, bool) {
	if !s.active {
		return uuid.Nil, false
	}
	s.active = false
	s.consumed++
	return s.sessionID, true
}

type stubGate struct {
	open bool
}

func (g *stubGate) IsOpenFor(context.Context, uuid.UUID) bool { return g.open }

type saleFixture struct {
	service  *Service
	repo     *stubRepo
	stock    *stubStock
	carts    *stubCarts
	sessions *stubSessions
	gate     *stubGate
	hub      *notify.Hub
	vendorID uuid.UUID
	now      time.Time
}

func testCart() cart.Cart {
	return cart.Cart{
		ID:          uuid.New(),
		Number:      1,
		DisplayName: "Carrito 1",
		Lines: []cart.Line{
			{
				ProductID:      uuid.New(),
				ProductName:    "Queso",
				Shape:          catalog.ShapeRecord{Kind: string(catalog.ShapeSimple)},
				Quantity:       2,
				UnitPriceCents: 10000,
				UnitCostCents:  7000,
				LineTotalCents: 20000,
				AvailableStock: decimal.NewFromInt(50),
			},
			{
				ProductID:      uuid.New(),
				ProductName:    "Tortillas",
				Shape:          catalog.ShapeRecord{Kind: string(catalog.ShapeSimple)},
				Quantity:       1,
				UnitPriceCents: 5000,
				UnitCostCents:  3500,
				LineTotalCents: 5000,
				AvailableStock: decimal.NewFromInt(30),
			},
		},
		SaleType:      enums.SaleTypeRetail,
		PaymentMethod: enums.PaymentMethodCash,
	}
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()
	repo := newStubRepo()
	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)

	fx := &saleFixture{
		repo:     repo,
		stock:    &stubStock{},
		carts:    &stubCarts{active: testCart()},
		sessions: &stubSessions{},
		gate:     &stubGate{open: true},
		hub:      hub,
		vendorID: uuid.New(),
		now:      time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
	}

	service, err := NewService(ServiceOptions{
		Repo:     repo,
		Runner:   &stubRunner{repo: repo},
		Stock:    fx.stock,
		Carts:    fx.carts,
		Sessions: fx.sessions,
		Gate:     fx.gate,
		Hub:      hub,
		Logger:   logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard}),
		Now:      func() time.Time { return fx.now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fx.service = service
	return fx
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestChangeDue(t *testing.T) {
	if got := ChangeDue(25000, 30000); got != 5000 {
		t.Fatalf("expected change 5000, got %d", got)
	}
	if got := ChangeDue(25000, 20000); got != -5000 {
		t.Fatalf("expected shortfall -5000, got %d", got)
	}
}

func TestSubmitCashSale(t *testing.T) {
	fx := newSaleFixture(t)
	fx.sessions.sessionID = uuid.New()
	fx.sessions.active = true

	sale, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		VendorName:    "Lupita",
		TenderedCents: intPtr(30000),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if sale.Status != enums.SaleStatusCompleted {
		t.Fatalf("expected completed, got %s", sale.Status)
	}
	if sale.Folio != "20260829-001" {
		t.Fatalf("unexpected folio %q", sale.Folio)
	}
	if sale.TotalCents != 25000 || sale.ProfitCents != 7500 {
		t.Fatalf("unexpected totals %d / %d", sale.TotalCents, sale.ProfitCents)
	}
	if sale.ChangeCents == nil || *sale.ChangeCents != 5000 {
		t.Fatalf("unexpected change %v", sale.ChangeCents)
	}
	if len(sale.ProductNames) != 2 || sale.ProductNames[0] != "Queso" {
		t.Fatalf("unexpected product names %v", sale.ProductNames)
	}
	if sale.EditSessionID == nil || *sale.EditSessionID != fx.sessions.sessionID {
		t.Fatalf("edit session not stamped on sale")
	}

	if len(fx.stock.applied) != 1 || len(fx.stock.applied[0]) != 2 {
		t.Fatalf("expected one applied batch of two lines, got %v", fx.stock.applied)
	}
	if fx.sessions.consumed != 1 {
		t.Fatalf("expected session consumption, got %d", fx.sessions.consumed)
	}
	if fx.carts.cleared != 1 {
		t.Fatalf("expected cart reset, got %d", fx.carts.cleared)
	}
	if _, err := fx.repo.FindSale(context.Background(), sale.ID); err != nil {
		t.Fatalf("sale not persisted: %v", err)
	}
}

func TestSubmitFolioSequencePerDay(t *testing.T) {
	fx := newSaleFixture(t)

	first, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID: fx.vendorID, TenderedCents: intPtr(25000),
	})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	fx.carts.active = testCart()
	second, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID: fx.vendorID, TenderedCents: intPtr(25000),
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if first.Folio != "20260829-001" || second.Folio != "20260829-002" {
		t.Fatalf("unexpected folio sequence %q, %q", first.Folio, second.Folio)
	}

	// A new day restarts the sequence.
	fx.carts.active = testCart()
	fx.now = fx.now.AddDate(0, 0, 1)
	third, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID: fx.vendorID, TenderedCents: intPtr(25000),
	})
	if err != nil {
		t.Fatalf("third submit: %v", err)
	}
	if third.Folio != "20260830-001" {
		t.Fatalf("unexpected folio %q", third.Folio)
	}
}

func TestSubmitFolioIndependentAcrossVendors(t *testing.T) {
	fx := newSaleFixture(t)

	first, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID: fx.vendorID, TenderedCents: intPtr(25000),
	})
	if err != nil {
		t.Fatalf("first vendor submit: %v", err)
	}

	// Another vendor's first sale of the day carries the same folio and
	// must still persist. Folios are scoped per vendor, not globally.
	otherVendor := uuid.New()
	fx.carts.active = testCart()
	second, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID: otherVendor, TenderedCents: intPtr(25000),
	})
	if err != nil {
		t.Fatalf("second vendor submit: %v", err)
	}

	if first.Folio != "20260829-001" || second.Folio != "20260829-001" {
		t.Fatalf("unexpected folios %q, %q", first.Folio, second.Folio)
	}
	if first.VendorID == second.VendorID {
		t.Fatal("fixture must use distinct vendors")
	}
	if _, err := fx.repo.FindSale(context.Background(), second.ID); err != nil {
		t.Fatalf("second vendor sale not persisted: %v", err)
	}
}

func TestSubmitBlocksInsufficientTender(t *testing.T) {
	fx := newSaleFixture(t)

	_, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		TenderedCents: intPtr(20000),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation rejection, got %v", err)
	}
	if len(fx.stock.applied) != 0 || fx.carts.cleared != 0 {
		t.Fatal("rejected submission must not touch stock or the cart")
	}
}

func TestSubmitCashRequiresTender(t *testing.T) {
	fx := newSaleFixture(t)

	_, err := fx.service.Submit(context.Background(), SubmitInput{VendorID: fx.vendorID})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation rejection, got %v", err)
	}
}

func TestSubmitCreditSale(t *testing.T) {
	fx := newSaleFixture(t)
	fx.carts.active.PaymentMethod = enums.PaymentMethodCredit

	_, err := fx.service.Submit(context.Background(), SubmitInput{VendorID: fx.vendorID})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("credit without client name should be rejected, got %v", err)
	}

	sale, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:   fx.vendorID,
		ClientName: strPtr("Don Chuy"),
	})
	if err != nil {
		t.Fatalf("credit submit: %v", err)
	}
	if sale.Status != enums.SaleStatusPendingCredit {
		t.Fatalf("expected pending_credit, got %s", sale.Status)
	}
	if sale.TenderedCents != nil || sale.ChangeCents != nil {
		t.Fatal("credit sales carry no tender")
	}
	if len(fx.stock.applied) != 1 {
		t.Fatal("credit sales still drain stock")
	}
}

func TestSubmitRequiresOpenRegister(t *testing.T) {
	fx := newSaleFixture(t)
	fx.gate.open = false

	_, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		TenderedCents: intPtr(30000),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected register-closed rejection, got %v", err)
	}
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	fx := newSaleFixture(t)
	fx.carts.active.Lines = nil

	_, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		TenderedCents: intPtr(30000),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("expected empty-cart rejection, got %v", err)
	}
}

// A failed stock batch rolls the sale back with it: no completed sale
// without its reconciliation.
func TestSubmitRollsBackWhenReconciliationFails(t *testing.T) {
	fx := newSaleFixture(t)
	fx.sessions.sessionID = uuid.New()
	fx.sessions.active = true
	fx.stock.err = fmt.Errorf("stock write failed")

	_, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		TenderedCents: intPtr(30000),
	})
	if err == nil {
		t.Fatal("expected submission to fail")
	}

	if len(fx.repo.sales) != 0 {
		t.Fatal("sale must not survive a failed stock batch")
	}
	if fx.sessions.consumed != 0 {
		t.Fatal("session must not be consumed on failure")
	}
	if fx.carts.cleared != 0 {
		t.Fatal("cart must not be cleared on failure")
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	fx := newSaleFixture(t)

	sale, err := fx.service.Submit(context.Background(), SubmitInput{
		VendorID:      fx.vendorID,
		TenderedCents: intPtr(30000),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancelled, err := fx.service.Cancel(context.Background(), sale.ID, "cliente se arrepintió")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.SaleStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "cliente se arrepintió" {
		t.Fatalf("reason not recorded: %v", cancelled.CancelReason)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("cancellation timestamp missing")
	}
	if len(fx.stock.reversed) != 1 || len(fx.stock.reversed[0]) != 2 {
		t.Fatalf("expected one reverse batch, got %v", fx.stock.reversed)
	}

	// Terminal state: a second cancellation is rejected and never
	// reverses stock again.
	_, err = fx.service.Cancel(context.Background(), sale.ID, "otra vez")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(fx.stock.reversed) != 1 {
		t.Fatal("stock must be restored exactly once")
	}
}

func TestCancelValidation(t *testing.T) {
	fx := newSaleFixture(t)

	_, err := fx.service.Cancel(context.Background(), uuid.New(), "   ")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected mandatory-reason rejection, got %v", err)
	}

	_, err = fx.service.Cancel(context.Background(), uuid.New(), "no existe")
	appErr = pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}
