// Package register tracks whether a vendor's cash register accepts sale
// submissions. The open flag lives in redis so every API instance and
// device sees the same answer.
package register

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

const (
	statusOpen   = "open"
	statusClosed = "closed"
)

type statusStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Gate is the redis-backed register switch. A missing key counts as
// open so a flushed cache never locks vendors out of selling.
type Gate struct {
	store statusStore
	logg  *logger.Logger
}

func NewGate(store *redis.Client, logg *logger.Logger) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Gate{store: store, logg: logg}, nil
}

func key(vendorID uuid.UUID) string {
	return "register:status:" + vendorID.String()
}

// IsOpenFor reports the vendor's register state.
func (g *Gate) IsOpenFor(ctx context.Context, vendorID uuid.UUID) bool {
	value, err := g.store.Get(ctx, key(vendorID))
	if err != nil {
		if !redis.IsNil(err) {
			g.logg.Warn(ctx, "register status lookup failed, treating as open")
		}
		return true
	}
	return !strings.EqualFold(value, statusClosed)
}

// Open marks the vendor's register as accepting sales.
func (g *Gate) Open(ctx context.Context, vendorID uuid.UUID) error {
	if err := g.store.Set(ctx, key(vendorID), statusOpen, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open register")
	}
	return nil
}

// Close stops the vendor's register from accepting sales.
func (g *Gate) Close(ctx context.Context, vendorID uuid.UUID) error {
	if err := g.store.Set(ctx, key(vendorID), statusClosed, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close register")
	}
	return nil
}

