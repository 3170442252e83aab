// Package reconcile applies and reverses catalog stock deltas for sale
// lines. A batch touches each referenced product exactly once, all writes
// inside one transaction.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/pkg/db"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
)

// Direction signs a batch: Apply drains stock for a completed sale,
// Reverse restores it for a cancellation.
type Direction int

const (
	DirectionApply Direction = iota
	DirectionReverse
)

func (d Direction) String() string {
	if d == DirectionReverse {
		return "reverse"
	}
	return "apply"
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine consolidates per-product deltas and commits them as one batch.
type Engine struct {
	runner  txRunner
	repo    *catalog.Repository
	logg    *logger.Logger
	metrics *metrics.ReconcileMetrics
}

// NewEngine builds a reconciliation engine.
func NewEngine(client *db.Client, repo *catalog.Repository, logg *logger.Logger, m *metrics.ReconcileMetrics) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{runner: client, repo: repo, logg: logg, metrics: m}, nil
}

// Apply drains stock for the sale's lines in its own transaction.
func (e *Engine) Apply(ctx context.Context, lines []models.SaleLine) error {
	return e.run(ctx, lines, DirectionApply)
}

// Reverse restores stock for a cancelled sale's lines in its own transaction.
func (e *Engine) Reverse(ctx context.Context, lines []models.SaleLine) error {
	return e.run(ctx, lines, DirectionReverse)
}

func (e *Engine) run(ctx context.Context, lines []models.SaleLine, dir Direction) error {
	return e.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return e.ApplyTx(ctx, tx, lines, dir)
	})
}

// ApplyTx folds the lines' deltas into the catalog inside the caller's
// transaction, so sale persistence and stock movement commit together.
//
// Lines are partitioned by product in first-seen order and each product is
// read and written once, so two lines of the same sale can never clobber
// each other. A product missing from the catalog is logged and skipped;
// the rest of the batch still commits. Out-of-range variant, option, and
// conversion indices degrade the same way.
func (e *Engine) ApplyTx(ctx context.Context, tx *gorm.DB, lines []models.SaleLine, dir Direction) error {
	start := time.Now()
	defer func() {
		e.metrics.ObserveBatch(dir.String(), time.Since(start))
	}()

	repo := e.repo.WithTx(tx)
	updated := 0

	for _, productID := range partitionOrder(lines) {
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"product_id": productID.String()}),
					"product missing from catalog, skipping its deltas")
				e.metrics.IncMissing()
				continue
			}
			return fmt.Errorf("reading product %s: %w", productID, err)
		}

		touched := false
		for _, line := range lines {
			if line.ProductID != productID {
				continue
			}
			if e.fold(ctx, product, line, dir) {
				touched = true
			}
		}
		if !touched {
			continue
		}

		if _, err := repo.Update(ctx, product); err != nil {
			return fmt.Errorf("writing product %s: %w", productID, err)
		}
		updated++
	}

	e.metrics.AddUpdated(updated)
	return nil
}

// fold applies one line's delta to the in-memory product record. Returns
// false when the line could not be mapped to a stock location.
func (e *Engine) fold(ctx context.Context, product *models.Product, line models.SaleLine, dir Direction) bool {
	shape, err := catalog.ParseShape(line.ShapeKind, line.VariantIndex, line.OptionIndex, line.ConversionIndex)
	if err != nil {
		e.logg.Warn(e.lineCtx(ctx, product.ID, line), "unmappable line shape, skipping")
		return false
	}

	delta := decimal.NewFromInt(int64(line.Quantity))
	if dir == DirectionApply {
		delta = delta.Neg()
	}

	switch sh := shape.(type) {
	case catalog.Simple:
		product.Stock = product.Stock.Add(delta)
		return true

	case catalog.Variant:
		if sh.Index < 0 || sh.Index >= len(product.Variants) {
			e.logg.Warn(e.lineCtx(ctx, product.ID, line), "variant index out of range, skipping")
			return false
		}
		product.Variants[sh.Index].Stock = product.Variants[sh.Index].Stock.Add(delta)
		return true

	case catalog.VariantOption:
		if sh.Variant < 0 || sh.Variant >= len(product.Variants) {
			e.logg.Warn(e.lineCtx(ctx, product.ID, line), "variant index out of range, skipping")
			return false
		}
		options := product.Variants[sh.Variant].Options
		if sh.Option < 0 || sh.Option >= len(options) {
			e.logg.Warn(e.lineCtx(ctx, product.ID, line), "option index out of range, skipping")
			return false
		}
		options[sh.Option].Stock = options[sh.Option].Stock.Add(delta)
		return true

	case catalog.Conversion:
		if sh.Index < 0 || sh.Index >= len(product.Conversions) {
			e.logg.Warn(e.lineCtx(ctx, product.ID, line), "conversion index out of range, skipping")
			return false
		}
		// Packs move the shared base-unit counter by quantity times factor.
		product.Stock = product.Stock.Add(delta.Mul(product.Conversions[sh.Index].Factor))
		return true
	}

	return false
}

func (e *Engine) lineCtx(ctx context.Context, productID uuid.UUID, line models.SaleLine) context.Context {
	return e.logg.WithFields(ctx, map[string]any{
		"product_id": productID.String(),
		"shape_kind": line.ShapeKind,
	})
}

// partitionOrder returns the distinct product ids in first-seen order.
func partitionOrder(lines []models.SaleLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		order = append(order, line.ProductID)
	}
	return order
}
