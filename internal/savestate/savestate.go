// Package savestate implements spec.md §6's save-slot persistence: ten
// slots at program.save_states["1".."10"], each the current state value
// plus a user-entered label, written back to the original program file as
// text via splicing rather than JSON5 re-serialization (spec.md §9 rejects
// round-tripping through a serializer, since it would lose comments and
// formatting).
//
// Ported from original_source/rust-project/src/save.rs's
// splice_key_into_json5 and runtime.rs's collect_slots/save_program,
// widened from the original's nine slots to the ten spec.md §6 requires
// (see DESIGN.md's Open Question entry).
package savestate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SlotCount is the number of save slots spec.md §6 defines: slot keys
// "1" through "10".
const SlotCount = 10

// EmptyLabel and UnlabelledLabel mirror collect_slots's placeholder
// strings for an unoccupied slot and an occupied slot with no "label"
// field, respectively.
const (
	EmptyLabel      = "(Empty Slot)"
	UnlabelledLabel = "(Unlabelled Slot)"
)

// Slot is one save_states["N"] entry as shown to a slot picker.
type Slot struct {
	Key   string
	Label string
	Data  map[string]any
	Empty bool
}

// CollectSlots walks slot keys "1".."10" against saveStates (a
// program.save_states-shaped map) and reports one Slot per key, in order.
func CollectSlots(saveStates map[string]any) []Slot {
	slots := make([]Slot, 0, SlotCount)
	for i := 1; i <= SlotCount; i++ {
		key := strconv.Itoa(i)
		raw, ok := saveStates[key]
		obj, isObj := raw.(map[string]any)
		if !ok || !isObj {
			slots = append(slots, Slot{Key: key, Label: EmptyLabel, Data: map[string]any{}, Empty: true})
			continue
		}
		label, _ := obj["label"].(string)
		if label == "" {
			label = UnlabelledLabel
		}
		slots = append(slots, Slot{Key: key, Label: label, Data: obj, Empty: false})
	}
	return slots
}

// ErrInvalidSlot reports a slot key outside "1".."10".
type ErrInvalidSlot struct {
	Slot string
}

func (e *ErrInvalidSlot) Error() string {
	return fmt.Sprintf("savestate: invalid slot %q, must be \"1\"..\"%d\"", e.Slot, SlotCount)
}

// ValidSlot reports whether slot is one of "1".."10".
func ValidSlot(slot string) bool {
	n, err := strconv.Atoi(slot)
	return err == nil && n >= 1 && n <= SlotCount
}

// Store owns a program's save_states map plus the original source text it
// must be spliced back into on disk.
type Store struct {
	SourcePath string
	SourceText string
	SaveStates map[string]any
}

// New builds a Store over a program's existing save_states map (created
// empty if the program had none) and its on-disk source.
func New(sourcePath, sourceText string, saveStates map[string]any) *Store {
	if saveStates == nil {
		saveStates = map[string]any{}
	}
	return &Store{SourcePath: sourcePath, SourceText: sourceText, SaveStates: saveStates}
}

// Save writes data (a deep copy of the interpreter's current state) plus
// label into slot, then persists save_states to SourcePath via splicing.
func (s *Store) Save(slot, label string, data map[string]any) error {
	if !ValidSlot(slot) {
		return &ErrInvalidSlot{Slot: slot}
	}
	saved := make(map[string]any, len(data)+1)
	for k, v := range data {
		saved[k] = v
	}
	saved["label"] = label
	s.SaveStates[slot] = saved
	return s.persist()
}

// Load returns a copy of slot's saved state. ok is false for an empty or
// invalid slot.
func (s *Store) Load(slot string) (data map[string]any, ok bool) {
	raw, exists := s.SaveStates[slot]
	if !exists {
		return nil, false
	}
	obj, isObj := raw.(map[string]any)
	if !isObj {
		return nil, false
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out, true
}

// persist splices the current SaveStates back into SourceText and writes
// the result to SourcePath, then updates SourceText to match so later
// saves splice against the file's latest on-disk shape.
func (s *Store) persist() error {
	updated, err := SpliceKeyIntoJSON5(s.SourceText, "save_states", s.SaveStates)
	if err != nil {
		return fmt.Errorf("savestate: splice save_states: %w", err)
	}
	if err := writeFileAtomicDurable(s.SourcePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("savestate: write %s: %w", s.SourcePath, err)
	}
	s.SourceText = updated
	return nil
}

// keyBraceRegex locates "<key>: {" or "'key': {" or "\"key\": {" — the
// start of an object-valued field named key, bare or quoted. Ported
// verbatim from save.rs's splice_key_into_json5 pattern.
func keyBraceRegex(key string) (*regexp.Regexp, error) {
	pattern := `(['"]?` + regexp.QuoteMeta(key) + `['"]?)\s*:\s*\{`
	return regexp.Compile(pattern)
}

// SpliceKeyIntoJSON5 finds key's object value within content by brace
// matching (not by reparsing the document) and replaces its body with
// newValue, pretty-printed two spaces per level and reindented to match
// the key's own indentation in content, then reinserted as source text.
// Unrelated text — comments, formatting, trailing commas elsewhere in the
// document — is left untouched.
//
// Ported from save.rs's splice_key_into_json5; its unused `indent`
// parameter (serde_json::to_string_pretty's step is always two spaces
// regardless of it) is dropped here rather than carried over dead.
func SpliceKeyIntoJSON5(content, key string, newValue any) (string, error) {
	re, err := keyBraceRegex(key)
	if err != nil {
		return "", err
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return "", fmt.Errorf("savestate: key %q not found or not an object", key)
	}
	matchStart, matchEnd := loc[0], loc[1]

	startPos := matchEnd - 1 // index of the opening '{'
	braceLevel := 1
	endPos := -1
	for i := startPos + 1; i < len(content); i++ {
		switch content[i] {
		case '{':
			braceLevel++
		case '}':
			braceLevel--
		}
		if braceLevel == 0 {
			endPos = i
			break
		}
	}
	if endPos < 0 {
		return "", fmt.Errorf("savestate: could not find matching closing brace for key %q", key)
	}

	lineStart := 0
	if i := strings.LastIndexByte(content[:matchStart], '\n'); i >= 0 {
		lineStart = i + 1
	}
	keyIndent := content[lineStart:matchStart]

	dumped, err := json.MarshalIndent(newValue, "", "  ")
	if err != nil {
		return "", fmt.Errorf("savestate: marshal replacement: %w", err)
	}
	lines := strings.Split(string(dumped), "\n")
	var inner []string
	if len(lines) > 2 {
		inner = lines[1 : len(lines)-1]
	}
	formatted := make([]string, len(inner))
	for i, line := range inner {
		formatted[i] = keyIndent + line
	}
	replacement := "\n" + strings.Join(formatted, "\n") + "\n" + keyIndent

	var out bytes.Buffer
	out.WriteString(content[:startPos+1])
	out.WriteString(replacement)
	out.WriteString(content[endPos:])
	return out.String(), nil
}
