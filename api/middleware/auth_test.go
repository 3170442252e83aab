package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/auth"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "estanquillo-test",
		ExpirationMinutes: 60,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.VendorRole) (string, uuid.UUID) {
	t.Helper()
	vendorID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		VendorID:    vendorID,
		DisplayName: "Doña Mary",
		Role:        role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, vendorID
}

func TestAuthSeedsClientIdentity(t *testing.T) {
	cfg := testJWTConfig()
	token, vendorID := mintToken(t, cfg, enums.VendorRoleVendor)

	var seen struct {
		vendorID string
		tabID    string
		deviceID string
		role     string
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.vendorID = VendorIDFromContext(r.Context())
		seen.tabID = TabIDFromContext(r.Context())
		seen.deviceID = DeviceIDFromContext(r.Context())
		seen.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-Id", "caja-1")
	req.Header.Set("X-Tab-Id", "tab-7")

	resp := httptest.NewRecorder()
	Auth(cfg, nil)(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if seen.vendorID != vendorID.String() {
		t.Fatalf("vendor id not seeded, got %q", seen.vendorID)
	}
	if seen.tabID != "tab-7" || seen.deviceID != "caja-1" {
		t.Fatalf("client identity not seeded: tab %q device %q", seen.tabID, seen.deviceID)
	}
	if seen.role != string(enums.VendorRoleVendor) {
		t.Fatalf("role not seeded, got %q", seen.role)
	}
}

func TestAuthTabDefaultsToDevice(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := mintToken(t, cfg, enums.VendorRoleVendor)

	var tabID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tabID = TabIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-Id", "caja-2")

	Auth(cfg, nil)(next).ServeHTTP(httptest.NewRecorder(), req)

	if tabID != "caja-2" {
		t.Fatalf("expected tab to default to device id, got %q", tabID)
	}
}

func TestAuthRequiresDeviceHeader(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := mintToken(t, cfg, enums.VendorRoleVendor)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	Auth(cfg, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	req.Header.Set("X-Device-Id", "caja-1")

	resp := httptest.NewRecorder()
	Auth(testJWTConfig(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireSupervisorBlocksVendors(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := mintToken(t, cfg, enums.VendorRoleVendor)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-Id", "caja-1")

	resp := httptest.NewRecorder()
	chain := Auth(cfg, nil)(RequireSupervisor(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})))
	chain.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequireSupervisorAllowsSupervisors(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := mintToken(t, cfg, enums.VendorRoleSupervisor)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-Id", "caja-1")

	called := false
	resp := httptest.NewRecorder()
	chain := Auth(cfg, nil)(RequireSupervisor(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))
	chain.ServeHTTP(resp, req)

	if !called || resp.Code != http.StatusOK {
		t.Fatalf("expected supervisor through, code %d called %v", resp.Code, called)
	}
}
