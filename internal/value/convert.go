package value

import "fmt"

// FromAny converts a generic decoded-JSON5 tree (as produced by
// encoding/json or the json5 decoder: map[string]interface{}, []interface{},
// string, bool, nil, float64, or int64/int for integers) into a Value
// tree. Any other type, json.Number included, panics.
//
// Integer-vs-float discrimination: the JSON5 decoder used by this repo
// (internal/program) decodes numbers via json.Number and then converts
// each to int64 or float64, so that "3" and "3.0" remain distinguishable,
// per §3's "Integers and floats are distinct tags."
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case float64:
		return Float(t)
	case string:
		return Str(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return List(items)
	case map[string]any:
		return fromOrderedAny(t, nil)
	default:
		panic(fmt.Sprintf("value: FromAny: unsupported type %T", x))
	}
}

// fromOrderedAny builds a mapping Value from m, taking keys in the given
// order; a nil order takes them in Go map iteration order, which is not
// deterministic (the standard map[string]any keeps no key order).
func fromOrderedAny(m map[string]any, order []string) Value {
	keys := order
	if keys == nil {
		keys = make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
	}
	om := newOrderedMap()
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		om.set(k, FromAny(v))
	}
	return Value{kind: KindMap, m: om}
}

// ToAny converts a Value tree back into plain Go data suitable for
// encoding/json marshaling (used by show_inserts JSON rendering and
// save-slot splicing).
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = ToAny(e)
		}
		return out
	case KindMap:
		keys := v.MapKeys()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			val, _ := v.MapGet(k)
			out[k] = ToAny(val)
		}
		return out
	default:
		return nil
	}
}
