package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

// Product is a catalog record with shape-dependent stock counters.
// Simple products keep a bare counter; variant products track stock per
// variant (and optionally per option); conversion products share one
// base-unit counter across their pack definitions.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name           string              `gorm:"column:name;not null"`
	Kind           enums.ProductKind   `gorm:"column:kind;not null;default:'simple'"`
	Stock          decimal.Decimal     `gorm:"column:stock;type:numeric;not null;default:0"`
	CostCents      int                 `gorm:"column:cost_cents;not null;default:0"`
	PriceCents     int                 `gorm:"column:price_cents;not null;default:0"`
	WholesaleCents int                 `gorm:"column:wholesale_cents;not null;default:0"`
	Variants       []ProductVariant    `gorm:"column:variants;type:jsonb;serializer:json"`
	Conversions    []ProductConversion `gorm:"column:conversions;type:jsonb;serializer:json"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one ranged variant with its own counter and pricing.
type ProductVariant struct {
	Name           string          `json:"name"`
	Stock          decimal.Decimal `json:"stock"`
	CostCents      int             `json:"cost_cents"`
	PriceCents     int             `json:"price_cents"`
	WholesaleCents int             `json:"wholesale_cents"`
	Options        []VariantOption `json:"options,omitempty"`
}

// VariantOption is a sub-option beneath a variant, again with its own counter.
type VariantOption struct {
	Name           string          `json:"name"`
	Stock          decimal.Decimal `json:"stock"`
	CostCents      int             `json:"cost_cents"`
	PriceCents     int             `json:"price_cents"`
	WholesaleCents int             `json:"wholesale_cents"`
}

// ProductConversion is a pack definition priced per pack but stocked in base
// units: selling one pack drains Factor base units from the shared counter.
type ProductConversion struct {
	Name           string          `json:"name"`
	Factor         decimal.Decimal `json:"factor"`
	CostCents      int             `json:"cost_cents"`
	PriceCents     int             `json:"price_cents"`
	WholesaleCents int             `json:"wholesale_cents"`
}
