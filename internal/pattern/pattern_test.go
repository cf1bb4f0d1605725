package pattern

import "testing"

func TestMatchNoWildcardsIsEquality(t *testing.T) {
	if _, ok := Match("hello", "hello"); !ok {
		t.Fatalf("expected literal match")
	}
	if _, ok := Match("hello", "hellx"); ok {
		t.Fatalf("expected literal mismatch")
	}
}

func TestMatchSingleWildcard(t *testing.T) {
	caps, ok := Match("Age *", "Age 41")
	if !ok {
		t.Fatalf("expected match")
	}
	if len(caps) != 1 || caps[0] != "41" {
		t.Fatalf("captures = %v, want [41]", caps)
	}
}

func TestMatchGreedyLeftmost(t *testing.T) {
	// "a*b*c" against "aXbXbXc": the first `*` should greedily capture as
	// much as possible while still letting the rest of the pattern match.
	// "XbXb" is too long (the remaining "Xc" cannot match "b*c"), so per
	// leftmost-longest-first-then-recurse the first * takes "XbX" and the
	// second takes "X".
	caps, ok := Match("a*b*c", "aXbXbXc")
	if !ok {
		t.Fatalf("expected match")
	}
	if len(caps) != 2 {
		t.Fatalf("expected 2 captures, got %v", caps)
	}
	if caps[0] != "XbX" || caps[1] != "X" {
		t.Fatalf("captures = %v, want [XbX X]", caps)
	}
}

func TestMatchEmptyWildcard(t *testing.T) {
	caps, ok := Match("*", "")
	if !ok || len(caps) != 1 || caps[0] != "" {
		t.Fatalf("Match(*, \"\") = %v, %v, want [\"\"] true", caps, ok)
	}
}

func TestMatchNoMatch(t *testing.T) {
	if _, ok := Match("x*y", "zzz"); ok {
		t.Fatalf("expected no match")
	}
}

func TestNullSentinelOnlyMatchesNULLPattern(t *testing.T) {
	if _, ok := Match("NULL", NullSubject()); !ok {
		t.Fatalf("expected NULL sentinel to match literal pattern NULL")
	}
	if _, ok := Match("NU*L", NullSubject()); ok {
		t.Fatalf("NULL sentinel must not match a wildcard pattern")
	}
	if _, ok := Match("NULL", "NULL"); !ok {
		t.Fatalf("the literal string \"NULL\" must still match the pattern \"NULL\"")
	}
}

func TestCaptureLookup(t *testing.T) {
	lookup := CaptureLookup([]string{"41", "tom"})
	if v, ok := lookup("1"); !ok || v != "41" {
		t.Fatalf("lookup(1) = %q, %v", v, ok)
	}
	if v, ok := lookup("2"); !ok || v != "tom" {
		t.Fatalf("lookup(2) = %q, %v", v, ok)
	}
	if _, ok := lookup("3"); ok {
		t.Fatalf("lookup(3) should miss: only 2 captures")
	}
	if _, ok := lookup("name"); ok {
		t.Fatalf("lookup(name) should miss: not numeric")
	}
}
