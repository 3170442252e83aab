package enums

import "fmt"

// SaleType selects which price column applies to a cart line.
type SaleType string

const (
	SaleTypeRetail    SaleType = "retail"
	SaleTypeWholesale SaleType = "wholesale"
	SaleTypeCustom    SaleType = "custom"
)

var validSaleTypes = []SaleType{
	SaleTypeRetail,
	SaleTypeWholesale,
	SaleTypeCustom,
}

// IsValid reports whether the value matches the canonical sale type enum.
func (s SaleType) IsValid() bool {
	for _, candidate := range validSaleTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSaleType converts the raw string to SaleType.
func ParseSaleType(value string) (SaleType, error) {
	for _, candidate := range validSaleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale type %q", value)
}
