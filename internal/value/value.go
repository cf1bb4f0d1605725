// Package value implements the tagged-variant program value used
// throughout the interpreter: null, bool, int64, float64, string, ordered
// list, and string-keyed mapping.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged variant. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    *orderedMap
}

// orderedMap preserves insertion order for deterministic iteration
// (show_inserts, mapping-to-string rendering) while still supporting O(1)
// key lookup.
type orderedMap struct {
	keys   []string
	values map[string]Value
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]Value)}
}

func (m *orderedMap) set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *orderedMap) get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Constructors.

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Str(s string) Value { return Value{kind: KindString, s: s} }

func List(items []Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindList, list: out}
}

// Map builds a mapping value from keys in the supplied order.
func Map(keys []string, values map[string]Value) Value {
	om := newOrderedMap()
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		om.set(k, v)
	}
	return Value{kind: KindMap, m: om}
}

// NewMap returns an empty, mutable-via-WithSet mapping value.
func NewMap() Value {
	return Value{kind: KindMap, m: newOrderedMap()}
}

// WithSet returns a copy of a mapping value with key set to v. Panics if v
// is not a mapping.
func (v Value) WithSet(key string, item Value) Value {
	if v.kind != KindMap {
		panic("value: WithSet on non-mapping")
	}
	om := newOrderedMap()
	om.keys = append(om.keys, v.m.keys...)
	for k, val := range v.m.values {
		om.values[k] = val
	}
	om.set(key, item)
	return Value{kind: KindMap, m: om}
}

// Accessors.

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// MapKeys returns the mapping's keys in insertion order. Returns nil if v
// is not a mapping.
func (v Value) MapKeys() []string {
	if v.kind != KindMap || v.m == nil {
		return nil
	}
	out := make([]string, len(v.m.keys))
	copy(out, v.m.keys)
	return out
}

// MapGet looks up key in a mapping value.
func (v Value) MapGet(key string) (Value, bool) {
	if v.kind != KindMap || v.m == nil {
		return Value{}, false
	}
	return v.m.get(key)
}

// Len returns the number of elements for list/mapping/string values, or
// (0, false) for other kinds.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindList:
		return len(v.list), true
	case KindMap:
		if v.m == nil {
			return 0, true
		}
		return len(v.m.keys), true
	case KindString:
		return len([]rune(v.s)), true
	default:
		return 0, false
	}
}

// Equal implements structural equality per spec: int/float compare equal
// iff the float is an exact integral match; bool and int never compare
// equal even when 1/0 vs true/false.
func Equal(a, b Value) bool {
	switch {
	case a.kind == KindInt && b.kind == KindFloat:
		return float64(a.i) == b.f && b.f == float64(int64(b.f))
	case a.kind == KindFloat && b.kind == KindInt:
		return float64(b.i) == a.f && a.f == float64(int64(a.f))
	case a.kind != b.kind:
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ak, bk := a.MapKeys(), b.MapKeys()
		if len(ak) != len(bk) {
			return false
		}
		aset := make(map[string]struct{}, len(ak))
		for _, k := range ak {
			aset[k] = struct{}{}
		}
		for _, k := range bk {
			if _, ok := aset[k]; !ok {
				return false
			}
		}
		for _, k := range ak {
			av, _ := a.MapGet(k)
			bv, ok := b.MapGet(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToDisplay renders v per §4.1: the representation used both for
// interpolation insertion and the trailing "last output" print.
func ToDisplay(v Value) string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatShortestFloat(v.f)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNull:
		return ""
	case KindList:
		var sb strings.Builder
		for _, e := range v.list {
			sb.WriteString(ToDisplay(e))
		}
		return sb.String()
	case KindMap:
		return canonicalText(v)
	default:
		return ""
	}
}

// formatShortestFloat yields the shortest round-trippable decimal with
// trailing fractional zeros trimmed, and the point too when nothing is
// left after it, so an integral float renders with no fraction, per §4.1.
func formatShortestFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// canonicalText renders a JSON5-like (but deterministic, key-order
// preserving) textual form, used by ToDisplay for every mapping value
// (show_inserts among others).
func canonicalText(v Value) string {
	var sb strings.Builder
	writeCanonical(&sb, v)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(formatShortestFloat(v.f))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindList:
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeCanonical(sb, e)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		keys := v.MapKeys()
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			val, _ := v.MapGet(k)
			writeCanonical(sb, val)
		}
		sb.WriteByte('}')
	}
}

// SortedMapKeys is a convenience for callers needing a deterministic
// (non-insertion) key order, e.g. diagnostics.
func SortedMapKeys(v Value) []string {
	keys := v.MapKeys()
	sort.Strings(keys)
	return keys
}

// TypeError is returned by callers (mathexpr, interpreter commands) that
// expected a specific Kind and got another.
type TypeError struct {
	Want Kind
	Got  Kind
	Line int
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}
