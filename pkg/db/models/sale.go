package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

// Sale is the durable record of a submitted cart. Lines are denormalized so
// cancellation can rebuild the reconciliation batch without the cart.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Folio         string              `gorm:"column:folio;not null;uniqueIndex:idx_sales_vendor_folio,priority:2"`
	VendorID      uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index;uniqueIndex:idx_sales_vendor_folio,priority:1"`
	VendorName    string              `gorm:"column:vendor_name"`
	Lines         []SaleLine          `gorm:"column:lines;type:jsonb;serializer:json"`
	ProductNames  pq.StringArray      `gorm:"column:product_names;type:text[]"`
	SubtotalCents int                 `gorm:"column:subtotal_cents;not null;default:0"`
	TotalCents    int                 `gorm:"column:total_cents;not null;default:0"`
	ProfitCents   int                 `gorm:"column:profit_cents;not null;default:0"`
	Status        enums.SaleStatus    `gorm:"column:status;not null;index"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	SaleType      enums.SaleType      `gorm:"column:sale_type;not null"`
	ClientName    *string             `gorm:"column:client_name"`
	TenderedCents *int                `gorm:"column:tendered_cents"`
	ChangeCents   *int                `gorm:"column:change_cents"`
	CancelReason  *string             `gorm:"column:cancel_reason"`
	EditSessionID *uuid.UUID          `gorm:"column:edit_session_id;type:uuid"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
}

// SaleLine stores the raw shape tag plus indices. Older clients wrote the
// bare "variant" tag for option lines, so readers must normalize before
// resolving stock locations.
type SaleLine struct {
	ProductID       uuid.UUID `json:"product_id"`
	ProductName     string    `json:"product_name"`
	ShapeKind       string    `json:"shape_kind"`
	VariantIndex    *int      `json:"variant_index,omitempty"`
	OptionIndex     *int      `json:"option_index,omitempty"`
	ConversionIndex *int      `json:"conversion_index,omitempty"`
	Quantity        int       `json:"quantity"`
	UnitPriceCents  int       `json:"unit_price_cents"`
	UnitCostCents   int       `json:"unit_cost_cents"`
	LineTotalCents  int       `json:"line_total_cents"`
}
