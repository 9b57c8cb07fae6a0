package meta

import "fmt"

// Kind tags the scalar shape carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindLong
	KindDouble
	KindString
	KindList
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar: null, bool, int, long, double, string, a list
// of Values, or an enum carried as its serial string name. It is the
// leaf-level payload of a Tree node.
type Value struct {
	kind   Kind
	b      bool
	i      int32
	l      int64
	d      float64
	s      string
	list   []Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 32-bit integer.
func Int(i int32) Value { return Value{kind: KindInt, i: i} }

// Long wraps a 64-bit integer.
func Long(l int64) Value { return Value{kind: KindLong, l: l} }

// Double wraps a float64.
func Double(d float64) Value { return Value{kind: KindDouble, d: d} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Enum wraps an enum's serial name.
func Enum(name string) Value { return Value{kind: KindEnum, s: name} }

// List wraps a homogeneous or heterogeneous list of Values.
func List(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindList, list: cp}
}

// Kind reports the tag of this Value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null tag.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; ok is false if the kind doesn't match.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the int32 payload.
func (v Value) AsInt() (int32, bool) { return v.i, v.kind == KindInt }

// AsLong returns the int64 payload.
func (v Value) AsLong() (int64, bool) { return v.l, v.kind == KindLong }

// AsDouble returns the float64 payload.
func (v Value) AsDouble() (float64, bool) { return v.d, v.kind == KindDouble }

// AsString returns the string payload (valid for KindString and KindEnum).
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString || v.kind == KindEnum
}

// AsList returns a copy of the list payload.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Equal reports deep equality between two Values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindLong:
		return v.l == o.l
	case KindDouble:
		return v.d == o.d
	case KindString, KindEnum:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a debug representation; not the wire format.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindLong:
		return fmt.Sprintf("%d", v.l)
	case KindDouble:
		return fmt.Sprintf("%g", v.d)
	case KindString:
		return v.s
	case KindEnum:
		return "#" + v.s
	case KindList:
		return fmt.Sprintf("%v", v.list)
	default:
		return "?"
	}
}
