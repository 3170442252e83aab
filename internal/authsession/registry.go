package authsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// Registry hands out one Manager per client tab and keeps its
// notification loop running until the tab tears down.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry

	repo    *Repository
	hub     *notify.Hub
	cfg     config.SessionConfig
	logg    *logger.Logger
	metrics *metrics.SessionMetrics
}

type registryEntry struct {
	manager *Manager
	cancel  context.CancelFunc
}

// NewManagerRegistry builds the per-tab manager registry.
func NewManagerRegistry(repo *Repository, hub *notify.Hub, cfg config.SessionConfig, logg *logger.Logger, m *metrics.SessionMetrics) (*Registry, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		repo:    repo,
		hub:     hub,
		cfg:     cfg,
		logg:    logg,
		metrics: m,
	}, nil
}

// Get returns the manager for the client tab, creating it and starting
// its notification loop on first use.
func (r *Registry) Get(client ClientContext, carts cartView) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := client.VendorID.String() + "/" + client.TabID
	if entry, ok := r.entries[key]; ok {
		return entry.manager, nil
	}

	manager, err := NewManager(ManagerOptions{
		Client:  client,
		Repo:    r.repo,
		Hub:     r.hub,
		Carts:   carts,
		Config:  r.cfg,
		Logger:  r.logg,
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go manager.Run(runCtx)
	r.entries[key] = &registryEntry{manager: manager, cancel: cancel}
	return manager, nil
}

// Remove tears the tab's manager down: the held session is released
// best-effort and the notification loop stops.
func (r *Registry) Remove(ctx context.Context, client ClientContext) {
	r.mu.Lock()
	key := client.VendorID.String() + "/" + client.TabID
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	entry.manager.Teardown(ctx)
	entry.cancel()
}

// Close stops every manager loop. Held sessions are left to the sweep.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		entry.cancel()
		delete(r.entries, key)
	}
}
