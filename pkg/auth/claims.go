package auth

import (
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	VendorID    uuid.UUID
	DisplayName string
	Role        enums.VendorRole
}

// AccessTokenClaims represents the typed JWT issued to vendor devices.
type AccessTokenClaims struct {
	VendorID    uuid.UUID        `json:"vendor_id"`
	DisplayName string           `json:"display_name"`
	Role        enums.VendorRole `json:"role"`
	jwt.RegisteredClaims
}
