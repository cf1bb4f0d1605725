// Package trace implements the deterministic execution trace: a
// canonicalized, timestamp-free log of interpreter-level decisions
// (program/task lifecycle, branches, suspension points) that is byte-stable
// across repeated runs of the same program against the same inputs, for
// diffing with `--trace`.
//
// Adapted from the teacher's build-cache ExecutionTrace/TraceEvent/Recorder
// machinery (this file and recorder.go), generalized to this domain's event
// vocabulary, drawn from original_source/rust-project/src/runtime.rs's
// Logger.log call sites.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExecutionTrace is the canonical, deterministic record of one program run.
//
// Invariants:
//   - Must capture ProgramHash and an ordered list of events.
//   - Must contain logical transitions/decisions, not runtime-dependent
//     details (no timestamps, pointers, or goroutine-scheduling artifacts).
type ExecutionTrace struct {
	ProgramHash string
	Events      []TraceEvent
}

// TraceEventKind is the stable, canonical discriminator for TraceEvent. The
// string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	EventProgramStart      TraceEventKind = "ProgramStart"
	EventProgramComplete   TraceEventKind = "ProgramComplete"
	EventProgramTerminated TraceEventKind = "ProgramTerminated"
	EventTaskStart         TraceEventKind = "TaskStart"
	EventTaskFailed        TraceEventKind = "TaskFailed"
	EventUserInput         TraceEventKind = "UserInput"
	EventUserChoice        TraceEventKind = "UserChoice"
	EventRandomChoice      TraceEventKind = "RandomChoice"
	EventGoto              TraceEventKind = "Goto"
	EventGotoMap           TraceEventKind = "GotoMap"
	EventReplaceMap        TraceEventKind = "ReplaceMap"
	EventForIteration      TraceEventKind = "ForIteration"
	EventDelete            TraceEventKind = "Delete"
	EventMath              TraceEventKind = "Math"
	EventChatStart         TraceEventKind = "ChatStart"
	EventChatError         TraceEventKind = "ChatError"
	EventChatDone          TraceEventKind = "ChatDone"
	EventMenuSave          TraceEventKind = "MenuSave"
	EventMenuLoad          TraceEventKind = "MenuLoad"
)

// TraceEvent is a single logical transition/decision.
//
// Determinism constraints: no timestamps, no raw error strings, nothing
// derived from pointer identity or map iteration order.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID identifies the task this event refers to, when applicable: its
	// source line number rendered as a string (the only stable, order-
	// independent task identity the frontend assigns).
	TaskID string

	// Reason is a stable, logical reason code (e.g. "MissingKey",
	// "PatternMatched", "FixedPoint").
	Reason string

	// Detail carries a small amount of additional canonical context, e.g.
	// the matched label name for Goto/GotoMap, or the resolved key for
	// RandomChoice. Never raw user input or secrets.
	Detail string

	// Artifacts is an auxiliary list of stable identifiers (e.g. inserted
	// keys touched by Delete). Always sorted by Canonicalize.
	Artifacts []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ProgramHash == "" {
		return errors.New("programHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form:
// events are stably sorted by (taskId, kindOrder, reason, detail,
// artifactsLex), and empty Artifacts slices are normalized to nil.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Artifacts) == 0 {
			t.Events[i].Artifacts = nil
			continue
		}
		art := make([]string, len(t.Events[i].Artifacts))
		copy(art, t.Events[i].Artifacts)
		sort.Strings(art)
		t.Events[i].Artifacts = art
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.Detail != b.Detail {
			return a.Detail < b.Detail
		}
		return compareStringSlices(a.Artifacts, b.Artifacts)
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventProgramStart:
		return 10
	case EventTaskStart:
		return 20
	case EventUserInput:
		return 30
	case EventUserChoice:
		return 40
	case EventRandomChoice:
		return 50
	case EventGoto:
		return 60
	case EventGotoMap:
		return 70
	case EventReplaceMap:
		return 80
	case EventForIteration:
		return 90
	case EventDelete:
		return 100
	case EventMath:
		return 110
	case EventChatStart:
		return 120
	case EventChatError:
		return 130
	case EventChatDone:
		return 140
	case EventMenuSave:
		return 150
	case EventMenuLoad:
		return 160
	case EventTaskFailed:
		return 170
	case EventProgramComplete:
		return 180
	case EventProgramTerminated:
		return 190
	default:
		return 1000
	}
}

func compareStringSlices(a, b []string) bool {
	la, lb := len(a), len(b)
	min := la
	if lb < min {
		min = lb
	}
	for i := 0; i < min; i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i] < b[i]
	}
	return la < lb
}

// CanonicalJSON returns the canonical JSON encoding of the trace. It
// canonicalizes a copy to avoid mutating the caller's slices.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := ExecutionTrace{ProgramHash: t.ProgramHash}
	copyTrace.Events = make([]TraceEvent, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical
// JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON ensures canonical field ordering and omission rules.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.ProgramHash == "" {
		return nil, errors.New("programHash is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"programHash\":")
	ph, _ := json.Marshal(t.ProgramHash)
	buf.Write(ph)
	buf.WriteByte(',')

	buf.WriteString("\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty
// optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var artifacts []string
	if len(e.Artifacts) > 0 {
		artifacts = make([]string, len(e.Artifacts))
		copy(artifacts, e.Artifacts)
		sort.Strings(artifacts)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.TaskID != "" {
		buf.WriteByte(',')
		buf.WriteString("\"taskId\":")
		tb, _ := json.Marshal(e.TaskID)
		buf.Write(tb)
	}

	if e.Reason != "" {
		buf.WriteByte(',')
		buf.WriteString("\"reason\":")
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}

	if e.Detail != "" {
		buf.WriteByte(',')
		buf.WriteString("\"detail\":")
		db, _ := json.Marshal(e.Detail)
		buf.Write(db)
	}

	if len(artifacts) > 0 {
		buf.WriteByte(',')
		buf.WriteString("\"artifacts\":[")
		for i := range artifacts {
			if i > 0 {
				buf.WriteByte(',')
			}
			ab, _ := json.Marshal(artifacts[i])
			buf.Write(ab)
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
