package program

import (
	"fmt"
	"strings"

	"looma/internal/pattern"
)

// Diagnostic is one static-analysis finding.
type Diagnostic struct {
	Message string
	Label   string
	Line    int
}

func (d Diagnostic) String() string {
	loc := ""
	if d.Line > 0 {
		loc = fmt.Sprintf("line %d: ", d.Line)
	}
	if d.Label != "" {
		return fmt.Sprintf("%s%s: %s", loc, d.Label, d.Message)
	}
	return loc + d.Message
}

// AnalyzeError aggregates every diagnostic from a failed Analyze call,
// per spec.md §7's AnalyzeError kind.
type AnalyzeError struct {
	Diagnostics []Diagnostic
}

func (e *AnalyzeError) Error() string {
	var sb strings.Builder
	sb.WriteString("program validation failed:\n")
	for _, d := range e.Diagnostics {
		sb.WriteString(" - ")
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// fieldsByCmd lists the required fields for each known command, mirroring
// analyzer.rs's validate_task match. Container commands additionally
// require "tasks", checked separately.
var fieldsByCmd = map[string][]string{
	"print":        {"text"},
	"clear":        {},
	"sleep":        {"seconds"},
	"set":          {"item", "output_name"},
	"unescape":     {"item", "output_name"},
	"write":        {"item", "path"},
	"show_inserts": {},
	"random_choice": {"list", "output_name"},
	"join_list":     {"list", "before", "between", "after", "output_name"},
	"list_concat":   {"lists", "output_name"},
	"list_append":   {"list", "item", "output_name"},
	"list_remove":   {"list", "item", "output_name"},
	"list_index":    {"list", "index", "output_name"},
	"list_slice":    {"list", "from_index", "to_index", "output_name"},
	"user_input":    {"prompt", "output_name"},
	"user_choice":   {"list", "description", "output_name"},
	"await_insert":  {"name"},
	"label":         {"name"},
	"goto":          {"name"},
	"goto_map":      {"text", "target_maps"},
	"replace_map":   {"item", "output_name", "wildcard_maps"},
	"for":           {"name_list_map", "tasks"},
	"serial":        {"tasks"},
	"parallel_wait": {"tasks"},
	"parallel_race": {"tasks"},
	"run_task":      {"task_name"},
	"delete":        {"wildcards"},
	"delete_except": {"wildcards"},
	"math":          {"input", "output_name"},
	"chat":          {"messages", "output_name"},
}

// Analyze runs the static checks described informally by spec.md §7's
// AnalyzeError: unknown commands, missing required fields, unresolvable
// literal goto/goto_map targets, unknown run_task targets, and
// interpolation keys that can never be defined by anything in the
// program. It never executes the program.
func Analyze(p *Program) error {
	var diags []Diagnostic

	insertKeys := collectPossibleInsertKeys(p)
	labels := collectLabels(p)
	named := make(map[string]struct{}, len(p.NamedTasks))
	for name := range p.NamedTasks {
		named[name] = struct{}{}
	}

	analyzeTaskList(p.Order, "order", named, insertKeys, labels, &diags)
	for name, task := range p.NamedTasks {
		analyzeTaskList([]Task{task}, "named_tasks."+name, named, insertKeys, labels, &diags)
	}

	if len(diags) == 0 {
		return nil
	}
	return &AnalyzeError{Diagnostics: diags}
}

func analyzeTaskList(tasks []Task, scope string, named map[string]struct{}, insertKeys map[string]struct{}, labels map[string]struct{}, diags *[]Diagnostic) {
	for _, t := range tasks {
		validateTask(t, scope, named, insertKeys, labels, diags)
		if sub := t.SubTasks(); len(sub) > 0 {
			analyzeTaskList(sub, scope, named, insertKeys, labels, diags)
		}
	}
}

func validateTask(t Task, scope string, named map[string]struct{}, insertKeys map[string]struct{}, labels map[string]struct{}, diags *[]Diagnostic) {
	cmd, ok := t.Cmd()
	if !ok {
		*diags = append(*diags, diag(t, "task missing 'cmd' string"))
		return
	}

	fields, known := fieldsByCmd[cmd]
	if !known {
		*diags = append(*diags, diag(t, fmt.Sprintf("unknown cmd %q", cmd)))
	} else {
		requireFields(t, fields, diags)
	}

	switch cmd {
	case "goto":
		if target, ok := t["name"].(string); ok {
			if target != "CONTINUE" && !hasLabel(labels, target) {
				*diags = append(*diags, diag(t, fmt.Sprintf("goto target %q not found in %s", target, scope)))
			}
		}
	case "goto_map":
		validateGotoMapTargets(t, scope, labels, diags)
	case "run_task":
		if name, ok := t["task_name"].(string); ok {
			if _, ok := named[name]; !ok {
				*diags = append(*diags, diag(t, fmt.Sprintf("run_task references unknown task %q", name)))
			}
		}
	}

	for key, v := range t {
		if key == "tasks" {
			continue
		}
		for _, ikey := range extractInsertKeys(v) {
			isNumericCapture := cmd == "replace_map" && isAllDigits(ikey)
			if !isPossibleInsert(ikey, insertKeys) && !strings.HasPrefix(ikey, "ARG") && !isNumericCapture {
				*diags = append(*diags, diag(t, fmt.Sprintf("interpolation key %q will never be defined", ikey)))
			}
		}
	}
}

func validateGotoMapTargets(t Task, scope string, labels map[string]struct{}, diags *[]Diagnostic) {
	targetMaps, ok := t["target_maps"].([]any)
	if !ok {
		return
	}
	for _, entry := range targetMaps {
		obj, ok := entry.(map[string]any)
		if !ok {
			*diags = append(*diags, diag(t, "target_maps entries must be objects"))
			continue
		}
		if len(obj) != 1 {
			*diags = append(*diags, diag(t, "target_maps entries must have exactly 1 key"))
			continue
		}
		for _, v := range obj {
			target, ok := v.(string)
			if !ok {
				continue
			}
			if !strings.Contains(target, "{") && target != "CONTINUE" && !hasLabel(labels, target) {
				*diags = append(*diags, diag(t, fmt.Sprintf("goto_map target %q not found in %s", target, scope)))
			}
		}
	}
}

func requireFields(t Task, fields []string, diags *[]Diagnostic) {
	for _, f := range fields {
		if _, ok := t[f]; !ok {
			*diags = append(*diags, diag(t, fmt.Sprintf("missing required field %q", f)))
		}
	}
}

func diag(t Task, message string) Diagnostic {
	return Diagnostic{Message: message, Label: t.TracebackLabel(), Line: t.Line()}
}

func hasLabel(labels map[string]struct{}, name string) bool {
	_, ok := labels[name]
	return ok
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func collectLabels(p *Program) map[string]struct{} {
	labels := make(map[string]struct{})
	var walk func(tasks []Task)
	walk = func(tasks []Task) {
		for _, t := range tasks {
			if cmd, _ := t.Cmd(); cmd == "label" {
				if name, ok := t["name"].(string); ok {
					labels[name] = struct{}{}
				}
			}
			walk(t.SubTasks())
		}
	}
	walk(p.Order)
	for _, t := range p.NamedTasks {
		walk([]Task{t})
	}
	return labels
}

func collectPossibleInsertKeys(p *Program) map[string]struct{} {
	keys := make(map[string]struct{})
	if inserts, ok := p.DefaultState["inserts"].(map[string]any); ok {
		for k := range inserts {
			keys[k] = struct{}{}
		}
	}
	keys["HH:MM"] = struct{}{}
	keys["HH:MM:SS"] = struct{}{}

	var walk func(tasks []Task)
	walk = func(tasks []Task) {
		for _, t := range tasks {
			if name, ok := t["output_name"].(string); ok {
				keys[name] = struct{}{}
			}
			if cmd, _ := t.Cmd(); cmd == "for" {
				if m, ok := t["name_list_map"].(map[string]any); ok {
					for k := range m {
						keys[k] = struct{}{}
					}
				}
			}
			walk(t.SubTasks())
		}
	}
	walk(p.Order)
	for _, t := range p.NamedTasks {
		walk([]Task{t})
	}
	return keys
}

func isPossibleInsert(key string, insertKeys map[string]struct{}) bool {
	if _, ok := insertKeys[key]; ok {
		return true
	}
	if strings.Contains(key, "*") {
		for k := range insertKeys {
			if _, ok := pattern.Match(key, k); ok {
				return true
			}
			if _, ok := pattern.Match(k, key); ok {
				return true
			}
		}
	}
	return false
}

// extractInsertKeys walks an arbitrary decoded JSON5 value (string,
// list, map, or scalar) collecting the raw text of every top-level
// `{...}` region found in any string it contains, per
// original_source/rust-project/src/interp.rs's extract_insert_keys. This
// is a best-effort static scan: for a nested key like `{question-{i}}`
// it yields the literal text "question-{i}" rather than resolving the
// inner reference, matching the original's heuristic (and its false
// negatives on genuinely dynamic keys).
func extractInsertKeys(v any) []string {
	var keys []string
	switch t := v.(type) {
	case string:
		keys = append(keys, extractFromStr(t)...)
	case []any:
		for _, e := range t {
			keys = append(keys, extractInsertKeys(e)...)
		}
	case map[string]any:
		for k, e := range t {
			keys = append(keys, extractFromStr(k)...)
			keys = append(keys, extractInsertKeys(e)...)
		}
	}
	return keys
}

func extractFromStr(s string) []string {
	var keys []string
	depth := 0
	var current strings.Builder
	inKey := false
	escaped := false
	for _, ch := range s {
		if escaped {
			escaped = false
			if inKey {
				current.WriteRune(ch)
			}
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '{' {
			depth++
			if depth == 1 {
				inKey = true
				current.Reset()
				continue
			}
		}
		if ch == '}' {
			if depth == 1 && inKey {
				keys = append(keys, current.String())
				inKey = false
				depth--
				continue
			}
			if depth > 0 {
				depth--
			}
		}
		if inKey {
			current.WriteRune(ch)
		}
	}
	return keys
}
