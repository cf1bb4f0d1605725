// Package interp implements the interpolation engine of spec.md §4.4:
// `{key}` substitution with backslash-brace escapes, recursive key
// resolution, and a failure sentinel that callers (goto_map, replace_map)
// may downgrade to the pattern package's NULL subject instead of treating
// as fatal.
//
// Ported from original_source/rust-project/src/interp.rs's
// interpolate_inserts/get_interpdata/recursive_interpolate, generalized
// so that replacement templates ({1}, {2}, ... positional captures) run
// through this exact same algorithm rather than a separate substitution
// pass — pattern.CaptureLookup supplies the overlay Resolver for that
// case.
package interp

import (
	"fmt"
	"strings"

	"looma/internal/value"
)

// Resolver looks up a single interpolation key and reports whether it
// resolved. Implementations may combine sources (e.g. pattern captures
// shadowing the insert store) by trying each in turn.
type Resolver func(key string) (value.Value, bool)

// MissingKeyError is returned by Interpolate when a `{key}` cannot be
// resolved by any source, per §4.4 step 4.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("interpolation: missing key %q", e.Key)
}

// Interpolate expands every unescaped `{...}` region in s, resolving
// nested keys first, and leaves `\{`/`\}` escapes untouched. It returns a
// *MissingKeyError on the first unresolved key.
func Interpolate(s string, resolve Resolver) (string, error) {
	out, _, err := interpolateFrom([]rune(s), 0, resolve, false)
	return out, err
}

// interpolateFrom scans runes[i:] until it hits an unescaped '}' (only
// when insideKey is true) or the end of input, returning the expanded
// text and the index just past what it consumed.
func interpolateFrom(runes []rune, i int, resolve Resolver, insideKey bool) (string, int, error) {
	var sb strings.Builder
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == '\\' && i+1 < len(runes) && (runes[i+1] == '{' || runes[i+1] == '}'):
			sb.WriteByte('\\')
			sb.WriteRune(runes[i+1])
			i += 2
		case ch == '{':
			keyText, next, err := interpolateFrom(runes, i+1, resolve, true)
			if err != nil {
				return "", 0, err
			}
			if next >= len(runes) || runes[next] != '}' {
				return "", 0, fmt.Errorf("interpolation: unmatched '{' at position %d", i)
			}
			i = next + 1
			v, ok := resolve(keyText)
			if !ok {
				return "", 0, &MissingKeyError{Key: keyText}
			}
			sb.WriteString(value.ToDisplay(v))
		case ch == '}' && insideKey:
			return sb.String(), i, nil
		default:
			sb.WriteRune(ch)
			i++
		}
	}
	if insideKey {
		return "", 0, fmt.Errorf("interpolation: unmatched '{' before end of input")
	}
	return sb.String(), i, nil
}

// Escape replaces every `{` with `\{` and every `}` with `\}`, per §4.4's
// escape(s) primitive, used on raw user input and CLI arguments before
// they are stored as inserts.
func Escape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '{':
			sb.WriteString(`\{`)
		case '}':
			sb.WriteString(`\}`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Unescape fully interpolates s, then replaces `\{`->`{` and `\}`->`}`
// once at the top level, per §4.4's unescape(s) primitive.
func Unescape(s string, resolve Resolver) (string, error) {
	interpolated, err := Interpolate(s, resolve)
	if err != nil {
		return "", err
	}
	return unescapeOnce(interpolated), nil
}

func unescapeOnce(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) && (runes[i+1] == '{' || runes[i+1] == '}') {
			sb.WriteRune(runes[i+1])
			i++
			continue
		}
		sb.WriteRune(runes[i])
	}
	return sb.String()
}

// Chain returns a Resolver that tries each resolver in order, returning
// the first hit. Used to build the "captures shadow inserts" overlay for
// replacement templates (pattern.CaptureLookup first, store.Get second).
func Chain(resolvers ...Resolver) Resolver {
	return func(key string) (value.Value, bool) {
		for _, r := range resolvers {
			if v, ok := r(key); ok {
				return v, ok
			}
		}
		return value.Value{}, false
	}
}

// StringResolver adapts a plain string-keyed lookup (e.g.
// pattern.CaptureLookup) into a Resolver by wrapping hits as string
// Values.
func StringResolver(lookup func(key string) (string, bool)) Resolver {
	return func(key string) (value.Value, bool) {
		s, ok := lookup(key)
		if !ok {
			return value.Value{}, false
		}
		return value.Str(s), true
	}
}
