package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

// EditRequest is a pending ask for an authorization session, awaiting a
// supervisor decision. The snapshot freezes what the cart held at request
// time so the approver sees exactly what would become editable.
type EditRequest struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VendorID            uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;index"`
	VendorName          string                  `gorm:"column:vendor_name"`
	CartID              uuid.UUID               `gorm:"column:cart_id;type:uuid;not null"`
	CartName            string                  `gorm:"column:cart_name"`
	Snapshot            []EditRequestLine       `gorm:"column:snapshot;type:jsonb;serializer:json"`
	RequestedTotalCents int                     `gorm:"column:requested_total_cents;not null;default:0"`
	Status              enums.EditRequestStatus `gorm:"column:status;not null;default:'pending';index"`
	RequestedAt         time.Time               `gorm:"column:requested_at;autoCreateTime"`
	ResolvedAt          *time.Time              `gorm:"column:resolved_at"`
}

// EditRequestLine is the point-in-time summary of one cart line.
type EditRequestLine struct {
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	LineTotalCents int    `json:"line_total_cents"`
}
