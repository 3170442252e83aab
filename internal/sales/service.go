package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/internal/reconcile"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockReconciler drains or restores catalog stock inside the caller's
// transaction.
type stockReconciler interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, lines []models.SaleLine, dir reconcile.Direction) error
}

// cartSource is the slice of the device cart store a submission reads
// from and resets afterwards.
type cartSource interface {
	Active() cart.Cart
	ClearActive(ctx context.Context)
}

// sessionConsumer exposes the edit session held by the submitting client.
// The session id is stamped on the sale record; consumption happens only
// after the sale batch committed.
type sessionConsumer interface {
	ActiveSessionID() (uuid.UUID, bool)
	Consume(ctx context.Context) (uuid.UUID, bool)
}

// RegisterGate reports whether the vendor's cash register accepts
// submissions. The register lifecycle itself lives outside this module.
type RegisterGate interface {
	IsOpenFor(ctx context.Context, vendorID uuid.UUID) bool
}

// SubmitInput carries the per-submission data not derivable from the cart.
type SubmitInput struct {
	VendorID      uuid.UUID
	VendorName    string
	TenderedCents *int
	ClientName    *string
}

// Service turns the active cart into a persisted sale and back out again
// on cancellation.
type Service struct {
	repo     Repository
	runner   txRunner
	stock    stockReconciler
	carts    cartSource
	sessions sessionConsumer
	gate     RegisterGate
	hub      *notify.Hub
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceOptions wires a sale service.
type ServiceOptions struct {
	Repo     Repository
	Runner   txRunner
	Stock    stockReconciler
	Carts    cartSource
	Sessions sessionConsumer
	Gate     RegisterGate
	Hub      *notify.Hub
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewService builds a sale service with the required dependencies.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Stock == nil {
		return nil, fmt.Errorf("stock reconciler required")
	}
	if opts.Carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session consumer required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("register gate required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     opts.Repo,
		runner:   opts.Runner,
		stock:    opts.Stock,
		carts:    opts.Carts,
		sessions: opts.Sessions,
		gate:     opts.Gate,
		hub:      opts.Hub,
		logg:     opts.Logger,
		now:      opts.Now,
	}, nil
}

// ChangeDue is the cash arithmetic: what the client gets back. Negative
// means the tender does not cover the total.
func ChangeDue(totalCents, tenderedCents int) int {
	return tenderedCents - totalCents
}

// saleEvent is the payload carried on sale notify events.
type saleEvent struct {
	SaleID     uuid.UUID `json:"sale_id"`
	Folio      string    `json:"folio"`
	TotalCents int       `json:"total_cents"`
	Reason     string    `json:"reason,omitempty"`
}

// Submit validates the active cart, persists the sale and drains stock in
// one transaction, then consumes the edit session and resets the cart.
// The sale is never completed unless its stock batch committed with it.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.Sale, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	active := s.carts.Active()
	if active.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot submit an empty cart")
	}
	if !s.gate.IsOpenFor(ctx, input.VendorID) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "register is closed")
	}

	total := active.SubtotalCents()
	status := enums.SaleStatusCompleted
	var tendered, change *int

	switch active.PaymentMethod {
	case enums.PaymentMethodCash:
		if input.TenderedCents == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount required for cash sales")
		}
		due := ChangeDue(total, *input.TenderedCents)
		if due < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount does not cover the total").
				WithDetails(map[string]any{"total_cents": total, "tendered_cents": *input.TenderedCents})
		}
		tendered = input.TenderedCents
		change = &due
	case enums.PaymentMethodCredit:
		if input.ClientName == nil || strings.TrimSpace(*input.ClientName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name required for credit sales")
		}
		status = enums.SaleStatusPendingCredit
	}

	lines, names, profit := saleLines(active)

	var editSessionID *uuid.UUID
	if id, ok := s.sessions.ActiveSessionID(); ok {
		editSessionID = &id
	}

	now := s.now().UTC()
	sale := &models.Sale{
		ID:            uuid.New(),
		VendorID:      input.VendorID,
		VendorName:    input.VendorName,
		Lines:         lines,
		ProductNames:  pq.StringArray(names),
		SubtotalCents: total,
		TotalCents:    total,
		ProfitCents:   profit,
		Status:        status,
		PaymentMethod: active.PaymentMethod,
		SaleType:      active.SaleType,
		ClientName:    input.ClientName,
		TenderedCents: tendered,
		ChangeCents:   change,
		EditSessionID: editSessionID,
		CreatedAt:     now,
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		folio, err := s.nextFolio(ctx, repo, input.VendorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate folio")
		}
		sale.Folio = folio

		if _, err := repo.CreateSale(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
		}
		return s.stock.ApplyTx(ctx, tx, lines, reconcile.DirectionApply)
	})
	if err != nil {
		return nil, err
	}

	if editSessionID != nil {
		s.sessions.Consume(ctx)
	}
	s.carts.ClearActive(ctx)

	s.publish(notify.KindSaleCompleted, input.VendorID, active.ID, saleEvent{
		SaleID:     sale.ID,
		Folio:      sale.Folio,
		TotalCents: sale.TotalCents,
	})
	s.logg.Info(s.saleCtx(ctx, sale), "sale submitted")
	return sale, nil
}

// Cancel marks a sale cancelled and restores its stock in one
// transaction. The reason is part of the audit record and mandatory.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Sale, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var cancelled *models.Sale
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindSale(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}
		if sale.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale is already cancelled")
		}

		now := s.now().UTC()
		if err := repo.MarkCancelled(ctx, sale.ID, reason, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark sale cancelled")
		}
		if err := s.stock.ApplyTx(ctx, tx, sale.Lines, reconcile.DirectionReverse); err != nil {
			return err
		}

		sale.Status = enums.SaleStatusCancelled
		sale.CancelReason = &reason
		sale.CancelledAt = &now
		cancelled = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(notify.KindSaleCancelled, cancelled.VendorID, uuid.Nil, saleEvent{
		SaleID:     cancelled.ID,
		Folio:      cancelled.Folio,
		TotalCents: cancelled.TotalCents,
		Reason:     reason,
	})
	s.logg.Info(s.saleCtx(ctx, cancelled), "sale cancelled")
	return cancelled, nil
}

// Recent returns the vendor's latest sales, newest first.
func (s *Service) Recent(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, vendorID, limit)
}

// SearchByProduct finds the vendor's sales containing the named product.
func (s *Service) SearchByProduct(ctx context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	return s.repo.SearchByProductName(ctx, vendorID, name)
}

// nextFolio allocates the vendor's date-prefixed sequence number. Collisions
// under concurrent submissions surface through the (vendor_id, folio) unique
// index and roll the transaction back.
func (s *Service) nextFolio(ctx context.Context, repo Repository, vendorID uuid.UUID, now time.Time) (string, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := repo.CountForRange(ctx, vendorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", now.Format("20060102"), count+1), nil
}

func saleLines(c cart.Cart) (lines []models.SaleLine, names []string, profitCents int) {
	lines = make([]models.SaleLine, 0, len(c.Lines))
	names = make([]string, 0, len(c.Lines))
	seen := make(map[string]struct{}, len(c.Lines))

	for _, line := range c.Lines {
		lines = append(lines, models.SaleLine{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			ShapeKind:       line.Shape.Kind,
			VariantIndex:    line.Shape.VariantIndex,
			OptionIndex:     line.Shape.OptionIndex,
			ConversionIndex: line.Shape.ConversionIndex,
			Quantity:        line.Quantity,
			UnitPriceCents:  line.UnitPriceCents,
			UnitCostCents:   line.UnitCostCents,
			LineTotalCents:  line.LineTotalCents,
		})
		profitCents += (line.UnitPriceCents - line.UnitCostCents) * line.Quantity
		if _, ok := seen[line.ProductName]; !ok {
			seen[line.ProductName] = struct{}{}
			names = append(names, line.ProductName)
		}
	}
	return lines, names, profitCents
}

func (s *Service) publish(kind notify.Kind, vendorID, cartID uuid.UUID, payload saleEvent) {
	data, err := notify.Marshal(payload)
	if err != nil {
		return
	}
	event := notify.Event{Kind: kind, VendorID: vendorID, Data: data}
	if cartID != uuid.Nil {
		event.CartID = cartID.String()
	}
	s.hub.Publish(event)
}

func (s *Service) saleCtx(ctx context.Context, sale *models.Sale) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"sale_id": sale.ID.String(),
		"folio":   sale.Folio,
		"status":  string(sale.Status),
	})
}
