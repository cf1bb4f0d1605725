// Package inserts implements the keyed, mutable insert store described in
// spec.md §4.5: a local ordered mapping with a read-only file-backed
// fallback, transient computed keys (clock, positional arguments), and
// wildcard bulk delete operations built on the pattern package.
//
// Grounded on the teacher's habit (internal/dag/state.go) of wrapping a
// plain map behind a small struct with a mutex for concurrent-safe
// mutation — here the store is shared across parallel_wait/parallel_race
// sibling goroutines, per spec.md §5's "the insert store is the only
// shared state."
package inserts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"looma/internal/interp"
	"looma/internal/pattern"
	"looma/internal/value"
)

// isProtected reports whether key names a special (transient) key, which
// delete/delete_except must never remove even if a local entry of the
// same name exists, per §4.5's "Special keys are always protected."
func isProtected(key string) bool {
	return key == "HH:MM" || key == "HH:MM:SS" || isTransientKey(key)
}

func isTransientKey(key string) bool {
	if key == "HH:MM" || key == "HH:MM:SS" {
		return true
	}
	if len(key) > 3 && key[:3] == "ARG" {
		for _, r := range key[3:] {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// Clock abstracts the current time for HH:MM/HH:MM:SS lookups, so tests
// can supply a fixed instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store is the insert store. Zero value is not usable; use New.
type Store struct {
	mu         sync.Mutex
	keys       []string
	values     map[string]value.Value
	fallbackDir string
	args       []string
	clock      Clock
}

// Options configures a new Store.
type Options struct {
	FallbackDir string
	Args        []string // positional CLI arguments, 0-indexed; exposed as ARG1, ARG2, ...
	Clock       Clock    // defaults to the system clock if nil.
}

func New(opts Options) *Store {
	clk := opts.Clock
	if clk == nil {
		clk = systemClock{}
	}
	return &Store{
		values:      make(map[string]value.Value),
		fallbackDir: opts.FallbackDir,
		args:        opts.Args,
		clock:       clk,
	}
}

// Get resolves key per §4.5's lookup order: local mapping, then file
// fallback, then special (transient) keys.
func (s *Store) Get(key string) (value.Value, bool) {
	s.mu.Lock()
	if v, ok := s.values[key]; ok {
		s.mu.Unlock()
		return v, true
	}
	fallbackDir := s.fallbackDir
	s.mu.Unlock()

	if fallbackDir != "" {
		if v, ok := s.readFallback(fallbackDir, key); ok {
			return v, true
		}
	}

	return s.getTransient(key)
}

func (s *Store) readFallback(dir, key string) (value.Value, bool) {
	// Reject path traversal / absolute keys: the fallback directory is a
	// flat namespace keyed by insert name, not a filesystem browser.
	if filepath.Base(key) != key {
		return value.Value{}, false
	}
	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil {
		return value.Value{}, false
	}
	return value.Str(string(data)), true
}

func (s *Store) getTransient(key string) (value.Value, bool) {
	switch key {
	case "HH:MM":
		return value.Str(s.clock.Now().Format("15:04")), true
	case "HH:MM:SS":
		return value.Str(s.clock.Now().Format("15:04:05")), true
	}
	if isTransientKey(key) {
		n, ok := parsePositional(key)
		if !ok || n < 1 || n > len(s.args) {
			return value.Value{}, false
		}
		// §3: "{" and "}" in argument text are pre-escaped to "\{"/"\}"
		// before being stored, so a literal brace in an --arg value is
		// never mistaken for interpolation syntax downstream.
		return value.Str(interp.Escape(s.args[n-1])), true
	}
	return value.Value{}, false
}

func parsePositional(key string) (int, bool) {
	if len(key) <= 3 {
		return 0, false
	}
	n := 0
	for _, r := range key[3:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Set stores v under key, clobbering any existing entry, per §4.6's "all
// output_name writes clobber any existing entry."
func (s *Store) Set(key string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Delete removes key from the local mapping (a no-op for file-backed or
// transient keys, and for protected keys).
func (s *Store) Delete(key string) {
	if isProtected(key) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
}

func (s *Store) deleteLocked(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// DeleteMatching removes every local key matching any of patterns, per
// §4.5's delete(patterns). File-backed entries are never deleted, and
// protected keys are never removed.
func (s *Store) DeleteMatching(patterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range append([]string(nil), s.keys...) {
		if isProtected(key) {
			continue
		}
		if matchesAny(patterns, key) {
			s.deleteLocked(key)
		}
	}
}

// DeleteExcept removes every local key matching none of patterns, per
// §4.5's delete_except(patterns).
func (s *Store) DeleteExcept(patterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range append([]string(nil), s.keys...) {
		if isProtected(key) {
			continue
		}
		if !matchesAny(patterns, key) {
			s.deleteLocked(key)
		}
	}
}

func matchesAny(patterns []string, subject string) bool {
	for _, p := range patterns {
		if _, ok := pattern.Match(p, subject); ok {
			return true
		}
	}
	return false
}

// Keys returns the local keys in insertion order (used by show_inserts).
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Snapshot renders the current store as a mapping Value, for show_inserts.
func (s *Store) Snapshot() value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := append([]string(nil), s.keys...)
	vals := make(map[string]value.Value, len(keys))
	for _, k := range keys {
		vals[k] = s.values[k]
	}
	return value.Map(keys, vals)
}

// ListInts implements mathexpr.Lookup: resolves name to a list of
// integers for min(name)/max(name).
func (s *Store) ListInts(name string) ([]int64, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("inserts: unknown list %q", name)
	}
	items, ok := v.List()
	if !ok {
		return nil, fmt.Errorf("inserts: %q is not a list", name)
	}
	out := make([]int64, len(items))
	for i, e := range items {
		switch e.Kind() {
		case value.KindInt:
			n, _ := e.Int()
			out[i] = n
		case value.KindFloat:
			f, _ := e.Float()
			if f != float64(int64(f)) {
				return nil, fmt.Errorf("inserts: %q[%d] is not an integral number", name, i+1)
			}
			out[i] = int64(f)
		default:
			return nil, fmt.Errorf("inserts: %q[%d] is not a number", name, i+1)
		}
	}
	return out, nil
}

// Length implements mathexpr.Lookup: resolves name to a list or string
// and returns its length, per §4.3's "length(name) returns list length or
// string length."
func (s *Store) Length(name string) (int64, error) {
	v, ok := s.Get(name)
	if !ok {
		return 0, fmt.Errorf("inserts: unknown insert %q", name)
	}
	n, ok := v.Len()
	if !ok {
		return 0, fmt.Errorf("inserts: %q has no length", name)
	}
	return int64(n), nil
}
