package interpreter

import (
	"strings"

	"looma/internal/interp"
	"looma/internal/mathexpr"
	"looma/internal/pattern"
	"looma/internal/value"
)

// simpleInsertKey reports whether s is exactly one balanced `{...}` region
// spanning the whole string (no literal text outside it), returning the
// inner key text. Ported from original_source/rust-project/src/interp.rs's
// get_simple_insertkey: a field written as "{items}" and nothing else
// resolves to the insert's native Value (preserving list/map/int shape)
// rather than being flattened through to_display like an ordinary
// embedded reference would be.
func simpleInsertKey(s string) (string, bool) {
	r := []rune(s)
	if len(r) < 2 || r[0] != '{' || r[len(r)-1] != '}' {
		return "", false
	}
	depth := 0
	for i, c := range r {
		if c == '}' {
			depth--
		}
		boundary := i == 0 || i == len(r)-1
		if (depth == 0) != boundary {
			return "", false
		}
		if c == '{' {
			depth++
		}
	}
	return string(r[1 : len(r)-1]), true
}

// resolveTyped resolves a single string field, preserving the resolved
// insert's native type when the field is exactly "{key}", and otherwise
// running the ordinary string interpolation pass.
func (in *Interpreter) resolveTyped(line int, s string) (value.Value, error) {
	if inner, ok := simpleInsertKey(s); ok {
		resolvedKey, err := in.interpolate(line, inner)
		if err != nil {
			return value.Value{}, err
		}
		v, ok := in.resolver(resolvedKey)
		if !ok {
			return value.Value{}, runtimeErr(ErrInterpMissing, line, "missing insert %q", resolvedKey)
		}
		return v, nil
	}
	out, err := in.interpolate(line, s)
	if err != nil {
		return value.Value{}, err
	}
	return value.Str(out), nil
}

// interpolateTree recursively interpolates every string in an arbitrary
// decoded-JSON5 tree, preserving structure, per original_source's
// recursive_interpolate generalized to this repo's fatal-on-failure
// ordinary-field policy (see DESIGN.md).
func (in *Interpreter) interpolateTree(line int, v any) (any, error) {
	switch t := v.(type) {
	case string:
		resolved, err := in.resolveTyped(line, t)
		if err != nil {
			return nil, err
		}
		return value.ToAny(resolved), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := in.interpolateTree(line, e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := in.interpolateTree(line, e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return t, nil
	}
}

// interpItemField implements the "item" field contract shared by set,
// list_append, list_remove, write, etc: interpolate only
// if the raw field is itself a string; otherwise store structurally, per
// spec.md §4.6's "store item (after interpolation if string; otherwise
// structurally)".
func (in *Interpreter) interpItemField(line int, raw any) (value.Value, error) {
	if s, ok := raw.(string); ok {
		return in.resolveTyped(line, s)
	}
	return value.FromAny(raw), nil
}

// resolveListField resolves a field that must produce a list Value: either
// a literal JSON5 array (interpolated element-wise) or a single "{key}"
// reference to a list-valued insert.
func (in *Interpreter) resolveListField(line int, raw any) ([]value.Value, error) {
	switch t := raw.(type) {
	case string:
		v, err := in.resolveTyped(line, t)
		if err != nil {
			return nil, err
		}
		items, ok := v.List()
		if !ok {
			return nil, runtimeErr(ErrType, line, "expected a list, got %s", v.Kind())
		}
		return items, nil
	case []any:
		resolved, err := in.interpolateTree(line, t)
		if err != nil {
			return nil, err
		}
		v := value.FromAny(resolved)
		items, _ := v.List()
		return items, nil
	default:
		return nil, runtimeErr(ErrType, line, "expected a list field, got %T", raw)
	}
}

// resolveStringList resolves a field that must produce a list of strings
// (delete/delete_except's "wildcards", goto_map/replace_map don't use
// this), interpolating each element.
func (in *Interpreter) resolveStringList(line int, raw any) ([]string, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, runtimeErr(ErrType, line, "expected a list of strings")
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, runtimeErr(ErrType, line, "expected a string at index %d", i+1)
		}
		resolved, err := in.interpolate(line, s)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// evalIntField resolves a field documented as "a number or a math
// expression" (list_index/list_slice indices): a literal integer is used
// directly; a string is interpolated and evaluated by mathexpr.
func (in *Interpreter) evalIntField(line int, raw any) (int64, error) {
	switch t := raw.(type) {
	case int64:
		return t, nil
	case float64:
		if t != float64(int64(t)) {
			return 0, runtimeErr(ErrType, line, "expected an integer, got %v", t)
		}
		return int64(t), nil
	case string:
		resolved, err := in.interpolate(line, t)
		if err != nil {
			return 0, err
		}
		v, err := mathexpr.Eval(resolved, in.Store)
		if err != nil {
			return 0, wrapErr(ErrMath, line, err)
		}
		return v, nil
	default:
		return 0, runtimeErr(ErrType, line, "expected a number or math expression, got %T", raw)
	}
}

// evalSecondsField is evalIntField's fractional-seconds counterpart for
// sleep, which spec.md §4.6 documents as accepting "a number" (possibly
// fractional) as well as a (necessarily integer) math expression.
func (in *Interpreter) evalSecondsField(line int, raw any) (float64, error) {
	switch t := raw.(type) {
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		resolved, err := in.interpolate(line, t)
		if err != nil {
			return 0, err
		}
		v, err := mathexpr.Eval(resolved, in.Store)
		if err != nil {
			return 0, wrapErr(ErrMath, line, err)
		}
		return float64(v), nil
	default:
		return 0, runtimeErr(ErrType, line, "expected a number of seconds, got %T", raw)
	}
}

// unescapeBraces replaces `\{`->`{` and `\}`->`}` once, in a single
// left-to-right pass, per spec.md §4.4's unescape(s) primitive.
func unescapeBraces(s string) string {
	return strings.NewReplacer(`\{`, "{", `\}`, "}").Replace(s)
}

// interpolateOrNull interpolates s, downgrading a missing-key failure to
// the pattern package's NULL sentinel instead of propagating it, per
// spec.md §4.6's goto_map/replace_map contract.
func (in *Interpreter) interpolateOrNull(s string) string {
	out, err := interp.Interpolate(s, in.resolver)
	if err != nil {
		return pattern.NullSubject()
	}
	return out
}
