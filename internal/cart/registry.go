package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

// Registry hands out one Store per (vendor, device). The API layer asks it
// for the caller's store; tests instantiate several devices in one process
// to simulate independent clients.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store

	cfg      config.CartsConfig
	rdb      *redis.Client
	products ProductLoader
	logg     *logger.Logger
}

// NewRegistry builds the store registry.
func NewRegistry(cfg config.CartsConfig, rdb *redis.Client, products ProductLoader, logg *logger.Logger) (*Registry, error) {
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Registry{
		stores:   make(map[string]*Store),
		cfg:      cfg,
		rdb:      rdb,
		products: products,
		logg:     logg,
	}, nil
}

// Get returns the store for the (vendor, device) pair, creating and
// restoring it on first use.
func (r *Registry) Get(ctx context.Context, vendorID uuid.UUID, deviceID string, profile enums.DeviceProfile) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := vendorID.String() + "/" + deviceID
	if store, ok := r.stores[key]; ok {
		return store, nil
	}

	var snapshots SnapshotStore
	if r.rdb != nil {
		var err error
		snapshots, err = NewRedisSnapshots(r.rdb, vendorID.String(), deviceID)
		if err != nil {
			return nil, err
		}
	}

	store, err := NewStore(ctx, StoreOptions{
		VendorID:  vendorID,
		DeviceID:  deviceID,
		Cap:       r.cfg.Cap(string(profile)),
		Snapshots: snapshots,
		Products:  r.products,
		Logger:    r.logg,
	})
	if err != nil {
		return nil, err
	}
	r.stores[key] = store
	return store, nil
}
