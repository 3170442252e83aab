package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

// AuthorizationSession is a time-bounded grant letting one vendor edit unit
// prices inside one specific cart. Rows are never deleted; inactive rows are
// the audit trail.
type AuthorizationSession struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VendorID   uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;index"`
	VendorName string                  `gorm:"column:vendor_name"`
	CartID     uuid.UUID               `gorm:"column:cart_id;type:uuid;not null"`
	CartName   string                  `gorm:"column:cart_name"`
	OwnerTabID *string                 `gorm:"column:owner_tab_id"`
	Active     bool                    `gorm:"column:active;not null;default:false;index"`
	EndReason  *enums.SessionEndReason `gorm:"column:end_reason"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	// ExpiresAt is nullable: records written before expiry stamping rely on
	// the sweep's created_at fallback.
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	EndedAt   *time.Time `gorm:"column:ended_at"`
}
