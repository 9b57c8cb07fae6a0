// Package convert provides typed <-> meta conversion and the descriptor
// types (property/action/stream) that blueprints attach to members.
package convert

import (
	"fmt"

	"github.com/halcyon-automation/meridian/meta"
)

// Converter is a pure, round-tripping function pair between a Go type and
// meta.Value: Write never fails, Read may fail on a shape mismatch.
// convert(x).Read() == x whenever the underlying shape is representable,
// per the spec's converter round-trip law.
type Converter[T any] struct {
	Write func(T) meta.Value
	Read  func(meta.Value) (T, error)
}

// Convert applies Write.
func (c Converter[T]) Convert(v T) meta.Value { return c.Write(v) }

// ReadValue applies Read.
func (c Converter[T]) ReadValue(v meta.Value) (T, error) { return c.Read(v) }

// Int32Converter converts between int32 and meta.KindInt.
var Int32Converter = Converter[int32]{
	Write: meta.Int,
	Read: func(v meta.Value) (int32, error) {
		i, ok := v.AsInt()
		if !ok {
			return 0, fmt.Errorf("convert: expected int, got %s", v.Kind())
		}
		return i, nil
	},
}

// Int64Converter converts between int64 and meta.KindLong.
var Int64Converter = Converter[int64]{
	Write: meta.Long,
	Read: func(v meta.Value) (int64, error) {
		l, ok := v.AsLong()
		if !ok {
			return 0, fmt.Errorf("convert: expected long, got %s", v.Kind())
		}
		return l, nil
	},
}

// Float64Converter converts between float64 and meta.KindDouble.
var Float64Converter = Converter[float64]{
	Write: meta.Double,
	Read: func(v meta.Value) (float64, error) {
		d, ok := v.AsDouble()
		if !ok {
			return 0, fmt.Errorf("convert: expected double, got %s", v.Kind())
		}
		return d, nil
	},
}

// BoolConverter converts between bool and meta.KindBool.
var BoolConverter = Converter[bool]{
	Write: meta.Bool,
	Read: func(v meta.Value) (bool, error) {
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("convert: expected bool, got %s", v.Kind())
		}
		return b, nil
	},
}

// StringConverter converts between string and meta.KindString.
var StringConverter = Converter[string]{
	Write: meta.String,
	Read: func(v meta.Value) (string, error) {
		s, ok := v.AsString()
		if !ok {
			return "", fmt.Errorf("convert: expected string, got %s", v.Kind())
		}
		return s, nil
	},
}

// EnumConverter builds a Converter for a string-backed enum type, validating
// that Read only accepts one of the allowed values.
func EnumConverter[T ~string](allowed ...T) Converter[T] {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[string(a)] = true
	}
	return Converter[T]{
		Write: func(t T) meta.Value { return meta.Enum(string(t)) },
		Read: func(v meta.Value) (T, error) {
			s, ok := v.AsString()
			if !ok {
				return T(""), fmt.Errorf("convert: expected enum, got %s", v.Kind())
			}
			if !set[s] {
				return T(""), fmt.Errorf("convert: %q is not a valid enum value", s)
			}
			return T(s), nil
		},
	}
}

// RawMetaConverter is the Converter slot for properties whose declared type
// is "raw meta". It does not carry a tree through a scalar Value: Write
// always returns meta.Null() and Read always returns an error.
var RawMetaConverter = Converter[*meta.Tree]{
	Write: func(t *meta.Tree) meta.Value {
		// Raw meta values aren't representable as a scalar meta.Value; callers
		// that need raw-tree properties should use descriptor.ValueTypeName
		// "meta" and bypass Converter, reading the node directly.
		return meta.Null()
	},
	Read: func(v meta.Value) (*meta.Tree, error) {
		return nil, fmt.Errorf("convert: raw meta properties must be read via the tree node, not Converter")
	},
}
