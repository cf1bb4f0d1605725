package value

import "testing"

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int_int_equal", Int(3), Int(3), true},
		{"int_float_exact", Int(3), Float(3.0), true},
		{"int_float_inexact", Int(3), Float(3.5), false},
		{"bool_int_never_equal", Bool(true), Int(1), false},
		{"string_equal", Str("a"), Str("a"), true},
		{"list_elementwise", List([]Value{Int(1), Int(2)}), List([]Value{Int(1), Int(2)}), true},
		{"list_length_mismatch", List([]Value{Int(1)}), List([]Value{Int(1), Int(2)}), false},
		{"null_equal", Null(), Null(), true},
		{"different_kinds", Str("1"), Int(1), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Equal(c.a, c.b); got != c.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
			// Equal must be symmetric.
			if got := Equal(c.b, c.a); got != c.want {
				t.Fatalf("Equal(%v, %v) [swapped] = %v, want %v", c.b, c.a, got, c.want)
			}
		})
	}
}

func TestMapEqualIgnoresOrder(t *testing.T) {
	a := Map([]string{"x", "y"}, map[string]Value{"x": Int(1), "y": Int(2)})
	b := Map([]string{"y", "x"}, map[string]Value{"x": Int(1), "y": Int(2)})
	if !Equal(a, b) {
		t.Fatalf("expected key-order-independent equality")
	}
}

func TestToDisplay(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"string", Str("hi"), "hi"},
		{"int", Int(41), "41"},
		{"float_trims_trailing_zero", Float(1.50), "1.5"},
		{"float_integral_keeps_no_fraction", Float(2.0), "2"},
		{"bool_true", Bool(true), "true"},
		{"bool_false", Bool(false), "false"},
		{"null", Null(), ""},
		{"list_no_separator", List([]Value{Str("a"), Int(1), Str("b")}), "a1b"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ToDisplay(c.v); got != c.want {
				t.Fatalf("ToDisplay(%v) = %q, want %q", c.v, got, c.want)
			}
		})
	}
}

func TestLen(t *testing.T) {
	if n, ok := Str("héllo").Len(); !ok || n != 5 {
		t.Fatalf("rune length of 'héllo' = %d, %v, want 5, true", n, ok)
	}
	if n, ok := List([]Value{Int(1), Int(2), Int(3)}).Len(); !ok || n != 3 {
		t.Fatalf("list length = %d, %v, want 3, true", n, ok)
	}
	if _, ok := Int(5).Len(); ok {
		t.Fatalf("Len() on int should report ok=false")
	}
}

func TestWithSetPreservesOrderAndImmutability(t *testing.T) {
	base := Map([]string{"a"}, map[string]Value{"a": Int(1)})
	updated := base.WithSet("b", Int(2))

	if got := base.MapKeys(); len(got) != 1 {
		t.Fatalf("base mutated: keys = %v", got)
	}
	if got := updated.MapKeys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected key order: %v", got)
	}
}

func TestFromAnyToAnyRoundTrip(t *testing.T) {
	original := map[string]any{
		"name": "tom",
		"age":  int64(41),
		"tags": []any{"x", "y"},
	}
	v := FromAny(original)
	back, ok := ToAny(v).(map[string]any)
	if !ok {
		t.Fatalf("ToAny did not yield a map")
	}
	if back["name"] != "tom" || back["age"] != int64(41) {
		t.Fatalf("round trip mismatch: %#v", back)
	}
}
