package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	pkgAuth "github.com/cantadelicia/estanquillo-backend/pkg/auth"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

const (
	tabIDHeader    = "X-Tab-Id"
	deviceIDHeader = "X-Device-Id"
	profileHeader  = "X-Device-Profile"
)

// Auth validates a bearer token and seeds the request context with the
// vendor claims plus the client headers that identify the calling tab
// and device.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			deviceID := strings.TrimSpace(r.Header.Get(deviceIDHeader))
			if deviceID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing device id header"))
				return
			}
			tabID := strings.TrimSpace(r.Header.Get(tabIDHeader))
			if tabID == "" {
				tabID = deviceID
			}

			ctx := context.WithValue(r.Context(), ctxVendorID, claims.VendorID.String())
			ctx = context.WithValue(ctx, ctxVendorName, claims.DisplayName)
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			ctx = context.WithValue(ctx, ctxTabID, tabID)
			ctx = context.WithValue(ctx, ctxDeviceID, deviceID)
			ctx = context.WithValue(ctx, ctxProfile, strings.TrimSpace(r.Header.Get(profileHeader)))

			if logg != nil {
				ctx = logg.WithVendorID(ctx, claims.VendorID.String())
				ctx = logg.WithTabID(ctx, tabID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSupervisor gates approval endpoints to privileged roles.
func RequireSupervisor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != "supervisor" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "supervisor role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
