// Package controllers exposes the store core to the UI layer: cart
// manipulation, authorization sessions, and sale submission. Every
// handler resolves the calling tab's cart store and session manager from
// the request identity seeded by the auth middleware.
package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/api/middleware"
	"github.com/cantadelicia/estanquillo-backend/internal/authsession"
	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
)

// ClientDeps bundles the per-client registries handlers resolve against.
type ClientDeps struct {
	Carts    *cart.Registry
	Sessions *authsession.Registry
}

// resolveClient rebuilds the calling tab's identity from the request
// context.
func resolveClient(r *http.Request) (authsession.ClientContext, enums.DeviceProfile, string, error) {
	ctx := r.Context()

	vendorID, err := uuid.Parse(middleware.VendorIDFromContext(ctx))
	if err != nil {
		return authsession.ClientContext{}, "", "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor identity")
	}
	role, err := enums.ParseVendorRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return authsession.ClientContext{}, "", "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor role")
	}

	client := authsession.ClientContext{
		TabID:       middleware.TabIDFromContext(ctx),
		VendorID:    vendorID,
		DisplayName: middleware.VendorNameFromContext(ctx),
		Role:        role,
	}

	profile := enums.DeviceProfileFull
	if raw := middleware.DeviceProfileFromContext(ctx); raw != "" {
		parsed, err := enums.ParseDeviceProfile(raw)
		if err != nil {
			return authsession.ClientContext{}, "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid device profile")
		}
		profile = parsed
	}

	return client, profile, middleware.DeviceIDFromContext(ctx), nil
}

// workspace returns the caller's cart store with its session manager
// bound as the edit-rights authority.
func (d ClientDeps) workspace(r *http.Request) (*cart.Store, *authsession.Manager, error) {
	client, profile, deviceID, err := resolveClient(r)
	if err != nil {
		return nil, nil, err
	}

	store, err := d.Carts.Get(r.Context(), client.VendorID, deviceID, profile)
	if err != nil {
		return nil, nil, err
	}
	manager, err := d.Sessions.Get(client, store)
	if err != nil {
		return nil, nil, err
	}
	store.SetBinder(manager)
	return store, manager, nil
}
