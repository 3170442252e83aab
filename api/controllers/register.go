package controllers

import (
	"net/http"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/internal/register"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

type registerStatusResponse struct {
	Open bool `json:"open"`
}

// RegisterStatus reports whether the caller's register accepts sales.
func RegisterStatus(gate *register.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := requestVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registerStatusResponse{Open: gate.IsOpenFor(r.Context(), vendorID)})
	}
}

// RegisterOpen starts accepting sale submissions.
func RegisterOpen(gate *register.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := requestVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := gate.Open(r.Context(), vendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registerStatusResponse{Open: true})
	}
}

// RegisterClose stops accepting sale submissions.
func RegisterClose(gate *register.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := requestVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := gate.Close(r.Context(), vendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registerStatusResponse{Open: false})
	}
}
