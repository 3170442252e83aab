package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/api/validators"
	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

type cartListResponse struct {
	Carts       []cart.Cart `json:"carts"`
	ActiveIndex int         `json:"active_index"`
	EditMode    bool        `json:"edit_mode"`
}

func listResponse(store *cart.Store) cartListResponse {
	return cartListResponse{
		Carts:       store.Carts(),
		ActiveIndex: store.ActiveIndex(),
		EditMode:    store.EditModeActive(),
	}
}

// CartList returns every open cart on the calling device.
func CartList(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse(store))
	}
}

// CartCreate opens a new cart and makes it active.
func CartCreate(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := store.CreateCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// CartSwitch activates the cart at the path index.
func CartSwitch(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := pathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SwitchCart(r.Context(), index); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse(store))
	}
}

// CartClose removes the cart at the path index. Closing a cart that
// still holds items needs ?confirm=true.
func CartClose(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := pathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		confirmed := r.URL.Query().Get("confirm") == "true"
		if err := store.CloseCart(r.Context(), index, confirmed); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse(store))
	}
}

type renameCartRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
}

// CartRename sets a custom display name on the cart at the path index.
func CartRename(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := pathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload renameCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.RenameCart(r.Context(), index, payload.DisplayName); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse(store))
	}
}

type shapeRequest struct {
	Kind            string `json:"kind" validate:"required"`
	VariantIndex    *int   `json:"variant_index,omitempty"`
	OptionIndex     *int   `json:"option_index,omitempty"`
	ConversionIndex *int   `json:"conversion_index,omitempty"`
}

type addLineRequest struct {
	ProductID string       `json:"product_id" validate:"required,uuid"`
	Shape     shapeRequest `json:"shape" validate:"required"`
	Quantity  int          `json:"quantity" validate:"required,min=1"`
}

// CartAddLine appends a product position to the active cart.
func CartAddLine(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		shape, err := catalog.ParseShape(payload.Shape.Kind, payload.Shape.VariantIndex, payload.Shape.OptionIndex, payload.Shape.ConversionIndex)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.AddLine(r.Context(), productID, shape, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Active())
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// CartSetLineQuantity updates a line's quantity; zero removes the line.
func CartSetLineQuantity(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := pathIndex(r, "line")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SetLineQuantity(r.Context(), index, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Active())
	}
}

type setPriceRequest struct {
	UnitPriceCents int `json:"unit_price_cents" validate:"required,min=1"`
}

// CartSetLinePrice overrides a line's unit price. Requires an active
// authorization session bound to the cart on screen.
func CartSetLinePrice(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := pathIndex(r, "line")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SetLineUnitPrice(r.Context(), index, payload.UnitPriceCents); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Active())
	}
}

type setSaleTypeRequest struct {
	SaleType string `json:"sale_type" validate:"required"`
}

// CartSetSaleType switches the active cart's pricing mode and reprices
// every line.
func CartSetSaleType(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setSaleTypeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleType, err := enums.ParseSaleType(payload.SaleType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale type"))
			return
		}
		if err := store.SetSaleType(r.Context(), saleType); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Active())
	}
}

type setPaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// CartSetPaymentMethod records how the active cart will be settled.
func CartSetPaymentMethod(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setPaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		if err := store.SetPaymentMethod(r.Context(), method); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Active())
	}
}

func pathIndex(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid index")
	}
	return index, nil
}
