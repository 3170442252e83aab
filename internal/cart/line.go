// Package cart maintains the concurrently open carts of one vendor device:
// creation, switching, closing, line edits, and the write-through snapshot
// that survives reloads.
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

// Line is one product position inside a cart. AvailableStock is captured
// at line creation; quantity changes are validated against it, not against
// a fresh catalog read.
type Line struct {
	ProductID      uuid.UUID           `json:"product_id"`
	ProductName    string              `json:"product_name"`
	Shape          catalog.ShapeRecord `json:"shape"`
	Quantity       int                 `json:"quantity"`
	UnitPriceCents int                 `json:"unit_price_cents"`
	UnitCostCents  int                 `json:"unit_cost_cents"`
	LineTotalCents int                 `json:"line_total_cents"`
	AvailableStock decimal.Decimal     `json:"available_stock"`
}

func (l *Line) recompute() {
	l.LineTotalCents = l.Quantity * l.UnitPriceCents
}

// Cart is one independently addressable in-progress sale basket.
type Cart struct {
	ID            uuid.UUID           `json:"id"`
	Number        int                 `json:"number"`
	DisplayName   string              `json:"display_name"`
	Lines         []Line              `json:"lines"`
	SaleType      enums.SaleType      `json:"sale_type"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
	ModifiedAt    time.Time           `json:"modified_at"`
}

// SubtotalCents sums the line totals.
func (c *Cart) SubtotalCents() int {
	total := 0
	for i := range c.Lines {
		total += c.Lines[i].LineTotalCents
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func (c *Cart) clone() Cart {
	out := *c
	out.Lines = make([]Line, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}
