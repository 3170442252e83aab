// Package catalog resolves product shapes and projects stock and pricing
// for cart lines. Shapes form a closed set decided once at line creation;
// nothing downstream re-infers a shape from optional-field presence.
package catalog

import (
	"fmt"

	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
)

// ShapeKind tags the four stock locations a line can point at.
type ShapeKind string

const (
	ShapeSimple        ShapeKind = "simple"
	ShapeVariant       ShapeKind = "variant"
	ShapeVariantOption ShapeKind = "variant-option"
	ShapeConversion    ShapeKind = "conversion"
)

// Shape is the closed sum over stock locations. The concrete types are
// Simple, Variant, VariantOption, and Conversion; nothing else implements it.
type Shape interface {
	Kind() ShapeKind
	isShape()
}

// Simple points at a product's bare stock counter.
type Simple struct{}

func (Simple) Kind() ShapeKind { return ShapeSimple }
func (Simple) isShape()        {}

// Variant points at one ranged variant's counter.
type Variant struct {
	Index int
}

func (Variant) Kind() ShapeKind { return ShapeVariant }
func (Variant) isShape()        {}

// VariantOption points at a sub-option counter beneath a variant.
type VariantOption struct {
	Variant int
	Option  int
}

func (VariantOption) Kind() ShapeKind { return ShapeVariantOption }
func (VariantOption) isShape()        {}

// Conversion points at the shared base-unit counter through a pack
// definition; stock moves by quantity times the pack factor.
type Conversion struct {
	Index int
}

func (Conversion) Kind() ShapeKind { return ShapeConversion }
func (Conversion) isShape()        {}

// ParseShape builds a Shape from a persisted tag plus indices, normalizing
// legacy records: old writers used the bare "variant" tag for option lines,
// so a "variant" tag with an option index present means VariantOption.
// Normalization happens here, before any stock math, so legacy lines are
// never silently skipped.
func ParseShape(kind string, variantIndex, optionIndex, conversionIndex *int) (Shape, error) {
	switch ShapeKind(kind) {
	case ShapeSimple:
		return Simple{}, nil

	case ShapeVariant:
		if variantIndex == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shape %q requires a variant index", kind))
		}
		if optionIndex != nil {
			return VariantOption{Variant: *variantIndex, Option: *optionIndex}, nil
		}
		return Variant{Index: *variantIndex}, nil

	case ShapeVariantOption:
		if variantIndex == nil || optionIndex == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shape %q requires variant and option indices", kind))
		}
		return VariantOption{Variant: *variantIndex, Option: *optionIndex}, nil

	case ShapeConversion:
		if conversionIndex == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shape %q requires a conversion index", kind))
		}
		return Conversion{Index: *conversionIndex}, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown shape kind %q", kind))
	}
}

// ShapeRecord is the serializable form of a Shape, used wherever a line
// crosses a JSON boundary (cart snapshots, sale records).
type ShapeRecord struct {
	Kind            string `json:"kind"`
	VariantIndex    *int   `json:"variant_index,omitempty"`
	OptionIndex     *int   `json:"option_index,omitempty"`
	ConversionIndex *int   `json:"conversion_index,omitempty"`
}

// RecordOf flattens a Shape into its serializable form.
func RecordOf(s Shape) ShapeRecord {
	kind, v, o, c := EncodeShape(s)
	return ShapeRecord{Kind: kind, VariantIndex: v, OptionIndex: o, ConversionIndex: c}
}

// Resolve rebuilds the Shape, normalizing legacy tags.
func (r ShapeRecord) Resolve() (Shape, error) {
	return ParseShape(r.Kind, r.VariantIndex, r.OptionIndex, r.ConversionIndex)
}

// EncodeShape flattens a Shape back into the persisted tag-plus-indices
// form used by sale line records.
func EncodeShape(s Shape) (kind string, variantIndex, optionIndex, conversionIndex *int) {
	switch sh := s.(type) {
	case Simple:
		return string(ShapeSimple), nil, nil, nil
	case Variant:
		v := sh.Index
		return string(ShapeVariant), &v, nil, nil
	case VariantOption:
		v, o := sh.Variant, sh.Option
		return string(ShapeVariantOption), &v, &o, nil
	case Conversion:
		c := sh.Index
		return string(ShapeConversion), nil, nil, &c
	default:
		return "", nil, nil, nil
	}
}
