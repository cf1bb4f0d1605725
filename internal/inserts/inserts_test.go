package inserts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"looma/internal/value"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestSetGetClobbers(t *testing.T) {
	s := New(Options{})
	s.Set("name", value.Str("tom"))
	s.Set("name", value.Str("jerry"))
	v, ok := s.Get("name")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got, _ := v.Str(); got != "jerry" {
		t.Fatalf("got %q, want jerry", got)
	}
}

func TestFileFallbackUsedOnlyOnLocalMiss(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greeting"), []byte("hello from disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Options{FallbackDir: dir})

	v, ok := s.Get("greeting")
	if !ok {
		t.Fatalf("expected fallback hit")
	}
	if got, _ := v.Str(); got != "hello from disk" {
		t.Fatalf("got %q", got)
	}

	s.Set("greeting", value.Str("local wins"))
	v, _ = s.Get("greeting")
	if got, _ := v.Str(); got != "local wins" {
		t.Fatalf("local insert should take priority over fallback file, got %q", got)
	}
}

func TestFallbackRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	s := New(Options{FallbackDir: dir})
	if _, ok := s.Get("../../etc/passwd"); ok {
		t.Fatalf("path traversal must not resolve")
	}
}

func TestTransientClockKeys(t *testing.T) {
	fixed := time.Date(2026, 8, 6, 13, 5, 9, 0, time.UTC)
	s := New(Options{Clock: fixedClock{fixed}})
	v, ok := s.Get("HH:MM")
	if !ok {
		t.Fatalf("expected HH:MM")
	}
	if got, _ := v.Str(); got != "13:05" {
		t.Fatalf("got %q, want 13:05", got)
	}
	v, ok = s.Get("HH:MM:SS")
	if !ok || func() string { s, _ := v.Str(); return s }() != "13:05:09" {
		t.Fatalf("HH:MM:SS mismatch: %v", v)
	}
}

func TestPositionalArguments(t *testing.T) {
	s := New(Options{Args: []string{"first", "second"}})
	v, ok := s.Get("ARG1")
	if !ok {
		t.Fatalf("expected ARG1")
	}
	if got, _ := v.Str(); got != "first" {
		t.Fatalf("got %q", got)
	}
	if _, ok := s.Get("ARG3"); ok {
		t.Fatalf("ARG3 should miss: only 2 args supplied")
	}
}

func TestPositionalArgumentsEscapeBraces(t *testing.T) {
	s := New(Options{Args: []string{"cost: {5}", "plain"}})
	v, ok := s.Get("ARG1")
	if !ok {
		t.Fatalf("expected ARG1")
	}
	if got, _ := v.Str(); got != `cost: \{5\}` {
		t.Fatalf("got %q, want literal braces escaped", got)
	}
	v, ok = s.Get("ARG2")
	if !ok {
		t.Fatalf("expected ARG2")
	}
	if got, _ := v.Str(); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

func TestDeleteMatchingWildcards(t *testing.T) {
	s := New(Options{})
	s.Set("q-1", value.Str("a"))
	s.Set("q-2", value.Str("b"))
	s.Set("keep", value.Str("c"))

	s.DeleteMatching([]string{"q-*"})

	if _, ok := s.Get("q-1"); ok {
		t.Fatalf("q-1 should have been deleted")
	}
	if _, ok := s.Get("q-2"); ok {
		t.Fatalf("q-2 should have been deleted")
	}
	if _, ok := s.Get("keep"); !ok {
		t.Fatalf("keep should survive")
	}
}

func TestDeleteExceptWildcards(t *testing.T) {
	s := New(Options{})
	s.Set("q-1", value.Str("a"))
	s.Set("keep", value.Str("c"))

	s.DeleteExcept([]string{"q-*"})

	if _, ok := s.Get("q-1"); !ok {
		t.Fatalf("q-1 matches the pattern and should survive delete_except")
	}
	if _, ok := s.Get("keep"); ok {
		t.Fatalf("keep does not match and should be removed by delete_except")
	}
}

func TestProtectedKeysSurviveBulkDelete(t *testing.T) {
	s := New(Options{Args: []string{"x"}})
	s.Set("HH:MM", value.Str("overridden"))
	s.DeleteMatching([]string{"*"})
	// A local entry shadowing a special key name is still protected.
	v, ok := s.Get("HH:MM")
	if !ok {
		t.Fatalf("expected HH:MM to still resolve")
	}
	if got, _ := v.Str(); got != "overridden" {
		t.Fatalf("local override of protected key should itself be protected from bulk delete, got %q", got)
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	s := New(Options{})
	s.Set("b", value.Int(2))
	s.Set("a", value.Int(1))
	snap := s.Snapshot()
	keys := snap.MapKeys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("unexpected key order: %v", keys)
	}
}

func TestListIntsAndLength(t *testing.T) {
	s := New(Options{})
	s.Set("scores", value.List([]value.Value{value.Int(3), value.Int(9), value.Float(2.0)}))
	s.Set("name", value.Str("hello"))

	nums, err := s.ListInts("scores")
	if err != nil {
		t.Fatalf("ListInts error: %v", err)
	}
	if len(nums) != 3 || nums[2] != 2 {
		t.Fatalf("got %v", nums)
	}

	n, err := s.Length("name")
	if err != nil || n != 5 {
		t.Fatalf("Length(name) = %d, %v, want 5, nil", n, err)
	}
}
