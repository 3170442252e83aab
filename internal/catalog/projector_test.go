package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
)

func testProduct() *models.Product {
	return &models.Product{
		ID:             uuid.New(),
		Name:           "Cigarros Rojos",
		Kind:           enums.ProductKindVariant,
		Stock:          decimal.NewFromInt(50),
		CostCents:      4000,
		PriceCents:     7000,
		WholesaleCents: 6000,
		Variants: []models.ProductVariant{
			{
				Name:           "Suave",
				Stock:          decimal.NewFromInt(12),
				CostCents:      4200,
				PriceCents:     7500,
				WholesaleCents: 6500,
				Options: []models.VariantOption{
					{Name: "Caja", Stock: decimal.NewFromInt(4), CostCents: 4400, PriceCents: 8000, WholesaleCents: 7000},
				},
			},
		},
		Conversions: []models.ProductConversion{
			{Name: "Cartón de 10", Factor: decimal.NewFromInt(10), CostCents: 38000, PriceCents: 65000, WholesaleCents: 60000},
		},
	}
}

func TestProjectSimple(t *testing.T) {
	p := testProduct()

	proj, err := Project(p, Simple{}, enums.SaleTypeRetail)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if !proj.AvailableStock.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected stock 50, got %s", proj.AvailableStock)
	}
	if proj.UnitPriceCents != 7000 || proj.UnitCostCents != 4000 {
		t.Fatalf("unexpected pricing %+v", proj)
	}
}

func TestProjectWholesalePricing(t *testing.T) {
	p := testProduct()

	proj, err := Project(p, Variant{Index: 0}, enums.SaleTypeWholesale)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.UnitPriceCents != 6500 {
		t.Fatalf("expected wholesale price 6500, got %d", proj.UnitPriceCents)
	}

	// A zero wholesale price falls back to retail.
	p.Variants[0].WholesaleCents = 0
	proj, err = Project(p, Variant{Index: 0}, enums.SaleTypeWholesale)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.UnitPriceCents != 7500 {
		t.Fatalf("expected retail fallback 7500, got %d", proj.UnitPriceCents)
	}
}

func TestProjectVariantOption(t *testing.T) {
	p := testProduct()

	proj, err := Project(p, VariantOption{Variant: 0, Option: 0}, enums.SaleTypeRetail)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if !proj.AvailableStock.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected option stock 4, got %s", proj.AvailableStock)
	}
	if proj.UnitPriceCents != 8000 || proj.UnitCostCents != 4400 {
		t.Fatalf("unexpected pricing %+v", proj)
	}
}

func TestProjectConversionReportsWholePacks(t *testing.T) {
	p := testProduct()
	p.Stock = decimal.NewFromInt(25)

	proj, err := Project(p, Conversion{Index: 0}, enums.SaleTypeRetail)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	// 25 base units / factor 10 = 2 whole packs.
	if !proj.AvailableStock.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected 2 packs available, got %s", proj.AvailableStock)
	}
	if proj.UnitPriceCents != 65000 {
		t.Fatalf("expected pack price 65000, got %d", proj.UnitPriceCents)
	}
}

func TestProjectOutOfRangeIndices(t *testing.T) {
	p := testProduct()

	cases := []Shape{
		Variant{Index: 5},
		VariantOption{Variant: 0, Option: 9},
		Conversion{Index: 2},
	}
	for _, shape := range cases {
		_, err := Project(p, shape, enums.SaleTypeRetail)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeOutOfRange {
			t.Fatalf("shape %#v: expected out-of-range error, got %v", shape, err)
		}
	}
}

func TestProjectMissingProduct(t *testing.T) {
	_, err := Project(nil, Simple{}, enums.SaleTypeRetail)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
