package controllers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/api/validators"
	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

// ProductList returns the catalog, optionally filtered by ?q= name match.
func ProductList(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			products []models.Product
			err      error
		)
		if query := r.URL.Query().Get("q"); query != "" {
			products, err = repo.SearchByName(r.Context(), query)
		} else {
			products, err = repo.List(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products"))
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductDetail returns one product with its stock counters.
func ProductDetail(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := repo.FindByID(r.Context(), productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product"))
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type productVariantRequest struct {
	Name           string               `json:"name" validate:"required,max=80"`
	Stock          decimal.Decimal      `json:"stock"`
	CostCents      int                  `json:"cost_cents" validate:"min=0"`
	PriceCents     int                  `json:"price_cents" validate:"min=0"`
	WholesaleCents int                  `json:"wholesale_cents" validate:"min=0"`
	Options        []productItemRequest `json:"options,omitempty" validate:"omitempty,dive"`
}

type productItemRequest struct {
	Name           string          `json:"name" validate:"required,max=80"`
	Stock          decimal.Decimal `json:"stock"`
	CostCents      int             `json:"cost_cents" validate:"min=0"`
	PriceCents     int             `json:"price_cents" validate:"min=0"`
	WholesaleCents int             `json:"wholesale_cents" validate:"min=0"`
}

type productConversionRequest struct {
	Name           string          `json:"name" validate:"required,max=80"`
	Factor         decimal.Decimal `json:"factor"`
	CostCents      int             `json:"cost_cents" validate:"min=0"`
	PriceCents     int             `json:"price_cents" validate:"min=0"`
	WholesaleCents int             `json:"wholesale_cents" validate:"min=0"`
}

type productRequest struct {
	Name           string                     `json:"name" validate:"required,max=120"`
	Kind           string                     `json:"kind" validate:"required,oneof=simple variant conversion"`
	Stock          decimal.Decimal            `json:"stock"`
	CostCents      int                        `json:"cost_cents" validate:"min=0"`
	PriceCents     int                        `json:"price_cents" validate:"min=0"`
	WholesaleCents int                        `json:"wholesale_cents" validate:"min=0"`
	Variants       []productVariantRequest    `json:"variants,omitempty" validate:"omitempty,dive"`
	Conversions    []productConversionRequest `json:"conversions,omitempty" validate:"omitempty,dive"`
}

func (req productRequest) apply(product *models.Product) {
	product.Name = req.Name
	product.Kind = enums.ProductKind(req.Kind)
	product.Stock = req.Stock
	product.CostCents = req.CostCents
	product.PriceCents = req.PriceCents
	product.WholesaleCents = req.WholesaleCents

	product.Variants = make([]models.ProductVariant, 0, len(req.Variants))
	for _, v := range req.Variants {
		variant := models.ProductVariant{
			Name:           v.Name,
			Stock:          v.Stock,
			CostCents:      v.CostCents,
			PriceCents:     v.PriceCents,
			WholesaleCents: v.WholesaleCents,
		}
		for _, o := range v.Options {
			variant.Options = append(variant.Options, models.VariantOption{
				Name:           o.Name,
				Stock:          o.Stock,
				CostCents:      o.CostCents,
				PriceCents:     o.PriceCents,
				WholesaleCents: o.WholesaleCents,
			})
		}
		product.Variants = append(product.Variants, variant)
	}

	product.Conversions = make([]models.ProductConversion, 0, len(req.Conversions))
	for _, c := range req.Conversions {
		product.Conversions = append(product.Conversions, models.ProductConversion{
			Name:           c.Name,
			Factor:         c.Factor,
			CostCents:      c.CostCents,
			PriceCents:     c.PriceCents,
			WholesaleCents: c.WholesaleCents,
		})
	}
}

// ProductCreate adds a product to the catalog.
func ProductCreate(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body productRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var product models.Product
		body.apply(&product)
		created, err := repo.Create(r.Context(), &product)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductUpdate replaces a product definition, counters included.
func ProductUpdate(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body productRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.FindByID(r.Context(), productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product"))
			return
		}

		body.apply(product)
		updated, err := repo.Update(r.Context(), product)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product"))
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
