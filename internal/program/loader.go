package program

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// cmdLineRegex matches a "cmd" key/value pair (bare, double-, or
// single-quoted key; quoted value) so add_line_numbers can splice in a
// sibling "line" field. Ported verbatim from parser.rs's add_line_numbers
// regex; Go's RE2 engine accepts it unchanged since it uses no
// backreferences.
var cmdLineRegex = regexp.MustCompile(
	`(\bcmd\b|"cmd"|'cmd')\s*:\s*("([^"\\]|\\.)*"|'([^'\\]|\\.)*')(\s*(?:,|\}))`,
)

// addLineNumbers rewrites every task's "cmd: <value>" pair as
// "cmd: <value>, line:<N><trailer>", where N is the 1-based source line
// the task's cmd field appears on. This survives JSON5 parsing as an
// ordinary integer field, so no separate side-table is needed to recover
// line numbers for runtime diagnostics.
func addLineNumbers(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lineNo := i + 1
		lines[i] = cmdLineRegex.ReplaceAllStringFunc(line, func(match string) string {
			sub := cmdLineRegex.FindStringSubmatch(match)
			key, val, trail := sub[1], sub[2], sub[5]
			return fmt.Sprintf("%s:%s, line:%d%s", key, val, lineNo, trail)
		})
	}
	return strings.Join(lines, "\n")
}

// decodeJSON5 transcodes JSON5 source to standard JSON via the json5
// library, then decodes that JSON with encoding/json's UseNumber mode so
// integer and float literals remain distinguishable (json5.Unmarshal
// alone, like encoding/json, would otherwise collapse every number to
// float64). json.RawMessage's UnmarshalJSON stores its argument
// unmodified, so routing through it captures the library's internal
// JSON-text transcoding losslessly without depending on any unexported
// API.
func decodeJSON5(src []byte) (map[string]any, error) {
	var raw json.RawMessage
	if err := json5.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("json5: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	normalized := normalizeNumbers(generic)
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("program root must be an object")
	}
	return root, nil
}

// normalizeNumbers walks a decoded tree replacing json.Number leaves with
// int64 (no '.' or exponent in the source text) or float64, matching
// §3's "integers and floats are distinct tags."
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}

// Load reads, line-annotates, and decodes the program at path, without
// running the static analyzer (see Analyze).
func Load(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Msg: fmt.Sprintf("reading program: %v", err), Err: err}
	}
	annotated := addLineNumbers(string(raw))

	root, err := decodeJSON5([]byte(annotated))
	if err != nil {
		return nil, &LoadError{Msg: fmt.Sprintf("parsing program: %v", err), Err: err}
	}

	// "tasks" is accepted as a legacy alias for "named_tasks".
	if _, hasNamed := root["named_tasks"]; !hasNamed {
		if tasks, hasTasks := root["tasks"]; hasTasks {
			root["named_tasks"] = tasks
			delete(root, "tasks")
		}
	}

	defaultState, ok := root["default_state"].(map[string]any)
	if !ok {
		return nil, &LoadError{Msg: "program missing 'default_state' object"}
	}

	orderRaw, ok := root["order"].([]any)
	if !ok {
		return nil, &LoadError{Msg: "program missing 'order' array"}
	}
	order, err := asTaskList(orderRaw)
	if err != nil {
		return nil, &LoadError{Msg: err.Error(), Err: err}
	}

	namedRaw, ok := root["named_tasks"].(map[string]any)
	if !ok {
		return nil, &LoadError{Msg: "program missing 'named_tasks' object"}
	}
	namedTasks := make(map[string]Task, len(namedRaw))
	for name, v := range namedRaw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &LoadError{Msg: fmt.Sprintf("named_tasks.%s must be an object", name)}
		}
		namedTasks[name] = Task(m)
	}

	saveStates, _ := root["save_states"].(map[string]any)
	if saveStates == nil {
		saveStates = map[string]any{}
	}
	completionArgs, _ := root["completion_args"].(map[string]any)
	if completionArgs == nil {
		completionArgs = map[string]any{}
	}

	return &Program{
		Order:          order,
		NamedTasks:     namedTasks,
		DefaultState:   defaultState,
		SaveStates:     saveStates,
		CompletionArgs: completionArgs,
		SourceText:     string(raw),
		SourcePath:     path,
	}, nil
}

func asTaskList(items []any) ([]Task, error) {
	out := make([]Task, 0, len(items))
	for i, v := range items {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("order[%d] must be an object", i)
		}
		out = append(out, Task(m))
	}
	return out, nil
}
