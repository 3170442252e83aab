package controllers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/api/middleware"
	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/api/validators"
	"github.com/cantadelicia/estanquillo-backend/internal/sales"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

type submitSaleRequest struct {
	TenderedCents *int    `json:"tendered_cents,omitempty" validate:"omitempty,min=0"`
	ClientName    *string `json:"client_name,omitempty" validate:"omitempty,max=120"`
}

// SaleSubmit turns the caller's active cart into a persisted sale.
func SaleSubmit(deps ClientDeps, factory *sales.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		client, _, _, err := resolveClient(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, manager, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		svc, err := factory.For(store, manager)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.Submit(r.Context(), sales.SubmitInput{
			VendorID:      client.VendorID,
			VendorName:    client.DisplayName,
			TenderedCents: body.TenderedCents,
			ClientName:    body.ClientName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

type cancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}

// SaleCancel voids a completed or pending-credit sale and restores its
// stock.
func SaleCancel(factory *sales.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cancelSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := factory.Cancel(r.Context(), saleID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

// SaleList returns the caller's recent sales, newest first.
func SaleList(factory *sales.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := requestVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a number"))
				return
			}
		}

		list, err := factory.Recent(r.Context(), vendorID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SaleSearch finds the caller's sales containing the named product.
func SaleSearch(factory *sales.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := requestVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := factory.SearchByProduct(r.Context(), vendorID, r.URL.Query().Get("product"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func requestVendorID(r *http.Request) (uuid.UUID, error) {
	vendorID, err := uuid.Parse(middleware.VendorIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor identity")
	}
	return vendorID, nil
}
