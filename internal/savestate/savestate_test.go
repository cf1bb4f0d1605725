package savestate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpliceKeyIntoJSON5_ReplacesExistingObject(t *testing.T) {
	content := "{\n  order: [],\n  save_states: {\n    \"1\": {old: true},\n  },\n}\n"
	out, err := SpliceKeyIntoJSON5(content, "save_states", map[string]any{
		"1": map[string]any{"label": "checkpoint"},
	})
	if err != nil {
		t.Fatalf("SpliceKeyIntoJSON5: %v", err)
	}
	if !strings.Contains(out, `"label": "checkpoint"`) {
		t.Fatalf("expected replacement body in output, got:\n%s", out)
	}
	if strings.Contains(out, "old: true") {
		t.Fatalf("expected old body to be replaced, got:\n%s", out)
	}
	if !strings.Contains(out, "order: []") {
		t.Fatalf("expected untouched sibling field to survive, got:\n%s", out)
	}
}

func TestSpliceKeyIntoJSON5_PreservesKeyIndentation(t *testing.T) {
	content := "{\n    save_states: {},\n}\n"
	out, err := SpliceKeyIntoJSON5(content, "save_states", map[string]any{
		"1": map[string]any{"label": "x"},
	})
	if err != nil {
		t.Fatalf("SpliceKeyIntoJSON5: %v", err)
	}
	if !strings.Contains(out, "\n      \"1\": {") {
		t.Fatalf("expected replacement lines reindented to the key's own indent, got:\n%s", out)
	}
}

func TestSpliceKeyIntoJSON5_MissingKey(t *testing.T) {
	if _, err := SpliceKeyIntoJSON5("{order: []}", "save_states", map[string]any{}); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}

func TestCollectSlots(t *testing.T) {
	saveStates := map[string]any{
		"1": map[string]any{"label": "alpha"},
		"3": map[string]any{},
	}
	slots := CollectSlots(saveStates)
	if len(slots) != SlotCount {
		t.Fatalf("len(slots) = %d, want %d", len(slots), SlotCount)
	}
	if slots[0].Empty || slots[0].Label != "alpha" {
		t.Fatalf("slot 1 = %+v, want occupied with label alpha", slots[0])
	}
	if slots[2].Empty || slots[2].Label != UnlabelledLabel {
		t.Fatalf("slot 3 = %+v, want occupied unlabelled", slots[2])
	}
	if !slots[1].Empty || slots[1].Label != EmptyLabel {
		t.Fatalf("slot 2 = %+v, want empty", slots[1])
	}
	if !slots[9].Empty {
		t.Fatalf("slot 10 = %+v, want empty", slots[9])
	}
}

func TestValidSlot(t *testing.T) {
	cases := []struct {
		slot string
		want bool
	}{
		{"1", true}, {"10", true}, {"0", false}, {"11", false}, {"abc", false},
	}
	for _, c := range cases {
		if got := ValidSlot(c.slot); got != c.want {
			t.Errorf("ValidSlot(%q) = %v, want %v", c.slot, got, c.want)
		}
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "program.json5")
	content := "{\n  order: [],\n  save_states: {},\n}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := New(path, content, nil)
	if err := store.Save("2", "my save", map[string]any{"score": int64(7)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, ok := store.Load("2")
	if !ok {
		t.Fatal("Load(2) ok = false, want true")
	}
	if data["label"] != "my save" || data["score"] != int64(7) {
		t.Fatalf("Load(2) = %+v", data)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(onDisk), `"label": "my save"`) {
		t.Fatalf("expected persisted file to contain the saved label, got:\n%s", onDisk)
	}

	if _, ok := store.Load("5"); ok {
		t.Fatal("Load(5) ok = true for an empty slot, want false")
	}
}

func TestStore_Save_InvalidSlot(t *testing.T) {
	store := New("/dev/null", "{save_states: {}}", nil)
	err := store.Save("11", "x", map[string]any{})
	if err == nil {
		t.Fatal("expected an error for slot 11")
	}
	if _, ok := err.(*ErrInvalidSlot); !ok {
		t.Fatalf("err = %T, want *ErrInvalidSlot", err)
	}
}
