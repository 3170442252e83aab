package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "estanquillo",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	vendorID := uuid.New()

	payload := AccessTokenPayload{
		VendorID:    vendorID,
		DisplayName: "Caja Uno",
		Role:        enums.VendorRoleVendor,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.VendorID != vendorID {
		t.Fatalf("expected vendor_id %s, got %s", vendorID, claims.VendorID)
	}
	if claims.DisplayName != "Caja Uno" {
		t.Fatalf("display name not preserved, got %q", claims.DisplayName)
	}
	if claims.Role != enums.VendorRoleVendor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "estanquillo",
		ExpirationMinutes: 10,
	}
	now := time.Now()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		VendorID: uuid.New(),
		Role:     enums.VendorRoleSupervisor,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := config.JWTConfig{Secret: "different", Issuer: "estanquillo"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "estanquillo", ExpirationMinutes: 10}

	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{VendorID: uuid.New(), Role: "owner"}); err == nil || !strings.Contains(err.Error(), "invalid vendor role") {
		t.Fatalf("expected role validation error, got %v", err)
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.VendorRoleVendor}); err == nil || !strings.Contains(err.Error(), "vendor id is required") {
		t.Fatalf("expected vendor id error, got %v", err)
	}
}
