// Package promptchannel implements the interpreter-to-UI-collaborator
// boundary: the narrow surface the task interpreter uses to ask a human (or
// an agent acting on a human's behalf) for input or a choice among options.
//
// Grounded on original_source/rust-project/src/runtime.rs's Io enum (Stdio
// vs Agent) and spec.md §6's PromptChannel contract. The TUI itself is out
// of scope (spec.md Non-goals); StdioChannel stands in for it.
package promptchannel

import (
	"context"
	"errors"
)

// ErrCancelled is returned by UserInput/UserChoice when a pending prompt is
// interrupted by cooperative cancellation (parent frame cancel, or a
// parallel_race/parallel_wait sibling outcome), per spec.md §5 "waits on the
// prompt channel return cancelled".
var ErrCancelled = errors.New("promptchannel: cancelled")

// Channel is the interpreter's view of a collaborator capable of answering
// prompts. Every implementation must treat ctx cancellation as equivalent to
// ErrCancelled.
type Channel interface {
	// UserInput asks a free-text question and returns the collaborator's raw,
	// un-escaped answer. The interpreter is responsible for escaping the
	// result before storing it as an insert (spec.md §6).
	UserInput(ctx context.Context, prompt string) (string, error)

	// UserChoice presents description and options, and returns the
	// positional key ("1".."9" or "a".."z" beyond nine options) or the
	// literal option text the collaborator chose. An empty options list is
	// legal and blocks until cancellation (spec.md §4.6).
	UserChoice(ctx context.Context, description string, options []string) (string, error)

	// SetOutput replaces the "current screen text" shown to the collaborator
	// alongside the next prompt. Grounded on AgentIo.set_output/write: the
	// agent-mode driver echoes this back in every prompt payload so a
	// file-polling collaborator can see accumulated program output.
	SetOutput(text string)
}

// ChoiceKeys returns the positional key set spec.md §6/§4.6 assigns to a
// list of n options: "1".."9" for n<=9, else "a".."z" (and beyond, if ever
// needed, continuing through the alphabet is undefined by spec.md since no
// program exercises more than 26 options — callers should not rely on it).
func ChoiceKeys(n int) []string {
	keys := make([]string, n)
	if n <= 9 {
		for i := 0; i < n; i++ {
			keys[i] = string([]byte{'1' + byte(i)})
		}
		return keys
	}
	for i := 0; i < n; i++ {
		keys[i] = string([]byte{'a' + byte(i)})
	}
	return keys
}

// ResolveChoice maps a collaborator's raw answer to the chosen option's
// index, accepting either the positional key or the exact option text.
func ResolveChoice(options []string, answer string) (int, bool) {
	keys := ChoiceKeys(len(options))
	for i, k := range keys {
		if k == answer {
			return i, true
		}
	}
	for i, opt := range options {
		if opt == answer {
			return i, true
		}
	}
	return 0, false
}
