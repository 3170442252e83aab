package enums

import "fmt"

// ProductKind describes the catalog shape of a product's stock counters.
type ProductKind string

const (
	ProductKindSimple     ProductKind = "simple"
	ProductKindVariant    ProductKind = "variant"
	ProductKindConversion ProductKind = "conversion"
)

var validProductKinds = []ProductKind{
	ProductKindSimple,
	ProductKindVariant,
	ProductKindConversion,
}

func (p ProductKind) IsValid() bool {
	for _, candidate := range validProductKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductKind converts the raw string to ProductKind.
func ParseProductKind(value string) (ProductKind, error) {
	for _, candidate := range validProductKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product kind %q", value)
}
