package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
)

// Projection is what a cart line needs to know about a stock location:
// how much is available right now, and what one unit costs and sells for
// under the requested sale type.
type Projection struct {
	AvailableStock decimal.Decimal
	UnitPriceCents int
	UnitCostCents  int
}

// Project resolves a product plus shape plus sale type into a Projection.
// Pure: reads the catalog record, touches nothing.
//
// Conversion shapes report availability in whole packs (base stock divided
// by the pack factor, floored), since a cart line sells packs, not base
// units. Custom sale types start from the retail price; the edited price
// lives on the line, not here.
func Project(product *models.Product, shape Shape, saleType enums.SaleType) (Projection, error) {
	if product == nil {
		return Projection{}, pkgerrors.New(pkgerrors.CodeNotFound, "product record missing")
	}

	switch sh := shape.(type) {
	case Simple:
		return Projection{
			AvailableStock: product.Stock,
			UnitPriceCents: priceFor(saleType, product.PriceCents, product.WholesaleCents),
			UnitCostCents:  product.CostCents,
		}, nil

	case Variant:
		v, err := variantAt(product, sh.Index)
		if err != nil {
			return Projection{}, err
		}
		return Projection{
			AvailableStock: v.Stock,
			UnitPriceCents: priceFor(saleType, v.PriceCents, v.WholesaleCents),
			UnitCostCents:  v.CostCents,
		}, nil

	case VariantOption:
		v, err := variantAt(product, sh.Variant)
		if err != nil {
			return Projection{}, err
		}
		if sh.Option < 0 || sh.Option >= len(v.Options) {
			return Projection{}, pkgerrors.New(pkgerrors.CodeOutOfRange,
				fmt.Sprintf("product %s variant %d has no option %d", product.ID, sh.Variant, sh.Option))
		}
		o := v.Options[sh.Option]
		return Projection{
			AvailableStock: o.Stock,
			UnitPriceCents: priceFor(saleType, o.PriceCents, o.WholesaleCents),
			UnitCostCents:  o.CostCents,
		}, nil

	case Conversion:
		if sh.Index < 0 || sh.Index >= len(product.Conversions) {
			return Projection{}, pkgerrors.New(pkgerrors.CodeOutOfRange,
				fmt.Sprintf("product %s has no conversion %d", product.ID, sh.Index))
		}
		c := product.Conversions[sh.Index]
		packs := decimal.Zero
		if c.Factor.IsPositive() {
			packs = product.Stock.Div(c.Factor).Floor()
		}
		return Projection{
			AvailableStock: packs,
			UnitPriceCents: priceFor(saleType, c.PriceCents, c.WholesaleCents),
			UnitCostCents:  c.CostCents,
		}, nil

	default:
		return Projection{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported shape")
	}
}

func variantAt(product *models.Product, index int) (models.ProductVariant, error) {
	if index < 0 || index >= len(product.Variants) {
		return models.ProductVariant{}, pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("product %s has no variant %d", product.ID, index))
	}
	return product.Variants[index], nil
}

func priceFor(saleType enums.SaleType, priceCents, wholesaleCents int) int {
	if saleType == enums.SaleTypeWholesale && wholesaleCents > 0 {
		return wholesaleCents
	}
	return priceCents
}
