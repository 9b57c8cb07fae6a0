package meta

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct renders the tree as a google.protobuf.Struct, the wire format
// the control-plane gRPC surface (see package transport) and persisted
// snapshots both use. Scalars map onto structpb.Value kinds directly;
// enum and long values are carried as tagged objects ({"__long": "..."},
// {"__enum": "..."}) since structpb has no native 64-bit integer or enum
// kind, preserving the round-trip law in ToTree(ToStruct(t)) == t.
func (t *Tree) ToStruct() (*structpb.Struct, error) {
	fields := make(map[string]*structpb.Value)
	if t.value != nil {
		vv, err := valueToStructpb(*t.value)
		if err != nil {
			return nil, err
		}
		fields["__value"] = vv
	}
	for _, key := range t.keys {
		kids := t.children[key]
		items := make([]*structpb.Value, 0, len(kids))
		for _, c := range kids {
			cs, err := c.ToStruct()
			if err != nil {
				return nil, err
			}
			items = append(items, structpb.NewStructValue(cs))
		}
		list, err := structpb.NewList(nil)
		if err != nil {
			return nil, err
		}
		list.Values = items
		fields[key] = structpb.NewListValue(list)
	}
	return &structpb.Struct{Fields: fields}, nil
}

// FromStruct reconstructs a Tree previously produced by ToStruct.
func FromStruct(s *structpb.Struct) (*Tree, error) {
	t := NewTree()
	if s == nil {
		return t, nil
	}
	for key, fv := range s.GetFields() {
		if key == "__value" {
			v, err := structpbToValue(fv)
			if err != nil {
				return nil, err
			}
			t.value = &v
			continue
		}
		list := fv.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("meta: expected list for child key %q", key)
		}
		children := make([]*Tree, 0, len(list.Values))
		for _, item := range list.Values {
			childStruct := item.GetStructValue()
			if childStruct == nil {
				return nil, fmt.Errorf("meta: expected struct child under key %q", key)
			}
			child, err := FromStruct(childStruct)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		t.keys = append(t.keys, key)
		t.children[key] = children
	}
	return t, nil
}

func valueToStructpb(v Value) (*structpb.Value, error) {
	switch v.kind {
	case KindNull:
		return structpb.NewNullValue(), nil
	case KindBool:
		b, _ := v.AsBool()
		return structpb.NewBoolValue(b), nil
	case KindInt:
		i, _ := v.AsInt()
		tagged, err := structpb.NewStruct(map[string]any{"__int": float64(i)})
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(tagged), nil
	case KindLong:
		l, _ := v.AsLong()
		tagged, err := structpb.NewStruct(map[string]any{"__long": fmt.Sprintf("%d", l)})
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(tagged), nil
	case KindDouble:
		d, _ := v.AsDouble()
		return structpb.NewNumberValue(d), nil
	case KindString:
		s, _ := v.AsString()
		return structpb.NewStringValue(s), nil
	case KindEnum:
		s, _ := v.AsString()
		tagged, err := structpb.NewStruct(map[string]any{"__enum": s})
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(tagged), nil
	case KindList:
		items, _ := v.AsList()
		values := make([]any, 0, len(items))
		for _, item := range items {
			iv, err := valueToStructpb(item)
			if err != nil {
				return nil, err
			}
			values = append(values, iv.AsInterface())
		}
		lv, err := structpb.NewList(values)
		if err != nil {
			return nil, err
		}
		return structpb.NewListValue(lv), nil
	default:
		return nil, fmt.Errorf("meta: unknown value kind %v", v.kind)
	}
}

func structpbToValue(pv *structpb.Value) (Value, error) {
	switch k := pv.GetKind().(type) {
	case *structpb.Value_NullValue:
		return Null(), nil
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue), nil
	case *structpb.Value_NumberValue:
		return Double(k.NumberValue), nil
	case *structpb.Value_StringValue:
		return String(k.StringValue), nil
	case *structpb.Value_StructValue:
		fields := k.StructValue.GetFields()
		if intf, ok := fields["__int"]; ok {
			return Int(int32(intf.GetNumberValue())), nil
		}
		if lf, ok := fields["__long"]; ok {
			var l int64
			if _, err := fmt.Sscanf(lf.GetStringValue(), "%d", &l); err != nil {
				return Value{}, fmt.Errorf("meta: bad __long payload: %w", err)
			}
			return Long(l), nil
		}
		if ef, ok := fields["__enum"]; ok {
			return Enum(ef.GetStringValue()), nil
		}
		return Value{}, fmt.Errorf("meta: unrecognized tagged struct value")
	case *structpb.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]Value, 0, len(items))
		for _, item := range items {
			iv, err := structpbToValue(item)
			if err != nil {
				return Value{}, err
			}
			out = append(out, iv)
		}
		return List(out...), nil
	default:
		return Null(), nil
	}
}
