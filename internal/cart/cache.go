package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

// Snapshot is the durable image of a device's cart state: the full cart
// list, the active index, and the name counter. Written through on every
// mutation so a reload restores exact state.
type Snapshot struct {
	Carts       []Cart `json:"carts"`
	ActiveIndex int    `json:"active_index"`
	NameCounter int    `json:"name_counter"`
}

// SnapshotStore persists one device's Snapshot under a fixed key.
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

type redisSnapshots struct {
	rdb *redis.Client
	key string
}

// NewRedisSnapshots builds the redis-backed snapshot store for one
// (vendor, device) pair.
func NewRedisSnapshots(rdb *redis.Client, vendorID, deviceID string) (SnapshotStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if vendorID == "" || deviceID == "" {
		return nil, fmt.Errorf("vendor and device ids required")
	}
	return &redisSnapshots{rdb: rdb, key: rdb.CartStateKey(vendorID, deviceID)}, nil
}

func (s *redisSnapshots) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cart snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decoding cart snapshot: %w", err)
	}
	return &snap, nil
}

func (s *redisSnapshots) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding cart snapshot: %w", err)
	}
	// No TTL: cart state lives until the device replaces it.
	if err := s.rdb.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("writing cart snapshot: %w", err)
	}
	return nil
}
