package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// Factory wires the shared sale pipeline once and mints a
// submission-scoped Service per device workspace. Cancellation and
// lookups run against the persisted record and need no workspace.
type Factory struct {
	base Service
}

// FactoryOptions carries the workspace-independent dependencies.
type FactoryOptions struct {
	Repo   Repository
	Runner txRunner
	Stock  stockReconciler
	Gate   RegisterGate
	Hub    *notify.Hub
	Logger *logger.Logger
	Now    func() time.Time
}

// NewFactory builds a sale factory with the required dependencies.
func NewFactory(opts FactoryOptions) (*Factory, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Stock == nil {
		return nil, fmt.Errorf("stock reconciler required")
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
	return &Factory{base: Service{
		repo:   opts.Repo,
		runner: opts.Runner,
		stock:  opts.Stock,
		gate:   opts.Gate,
		hub:    opts.Hub,
		logg:   opts.Logger,
		now:    opts.Now,
	}}, nil
}

// For binds the caller's cart store and session manager to the shared
// pipeline.
func (f *Factory) For(carts cartSource, sessions sessionConsumer) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session consumer required")
	}
	svc := f.base
	svc.carts = carts
	svc.sessions = sessions
	return &svc, nil
}

// Cancel marks a sale cancelled and restores its stock.
func (f *Factory) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Sale, error) {
	svc := f.base
	return svc.Cancel(ctx, id, reason)
}

// Recent returns the vendor's latest sales, newest first.
func (f *Factory) Recent(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error) {
	svc := f.base
	return svc.Recent(ctx, vendorID, limit)
}

// SearchByProduct finds the vendor's sales containing the named product.
func (f *Factory) SearchByProduct(ctx context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error) {
	svc := f.base
	return svc.SearchByProduct(ctx, vendorID, name)
}
