// Package cli implements the CLI invocation contract and top-level wiring
// of spec.md §6/§7: flag parsing into a canonical Invocation, and running
// the resulting program through internal/program, internal/interpreter,
// internal/chatclient, internal/savestate, internal/promptchannel,
// internal/trace, internal/diagnostics, and internal/logging.
//
// Adapted from the teacher's internal/cli/input.go: the FlagSet-with-
// ContinueOnError parsing discipline, the canonical-and-deterministic
// Invocation struct (no env vars, no implicit CWD), the InvocationError
// type, and the exit-code contract all carry over; the flags themselves
// and everything Execute wires together are this domain's, not the
// teacher's build-cache DAG's.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Exit codes mirror the teacher's shape (ExitSuccess/ExitInvalidInvocation/
// ExitConfigError/ExitInternalError), plus ExitRuntimeFailure for
// spec.md §7's "non-zero on fatal runtime error" — a task failure during
// execution, as opposed to a bad invocation or a config problem.
const (
	ExitSuccess           = 0
	ExitRuntimeFailure    = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Mode selects the prompt channel implementation.
type Mode string

const (
	ModeUI    Mode = "ui"
	ModeAgent Mode = "agent"
)

const (
	defaultAgentOutputPath = "/tmp/agent_output"
	defaultAgentInputPath  = "/tmp/agent_input"
)

// Invocation is the fully canonicalized, deterministic description of a
// run. ProgramPath, InsertsDir and TracePath are normalized (Clean) and,
// when relative, resolved relative to WorkDir, which must be absolute —
// this prevents any dependency on the process's current working
// directory for them. AgentOutput and AgentInput are stored as given.
type Invocation struct {
	WorkDir      string
	ProgramPath  string
	InsertsDir   string // "" if --inserts-dir was not given
	Mode         Mode
	AgentOutput  string
	AgentInput   string
	TracePath    string // "" if --trace was not given
	Args         []string
	APIURL       string
	APIKey       string

	OriginalProgramPath string
	OriginalInsertsDir  string
	OriginalTracePath   string
}

// InvocationError is a distinct error type so main can map it to a
// process exit code without string matching.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// repeatedFlag collects a repeatable --arg flag's values in order.
type repeatedFlag struct {
	values *[]string
}

func (r repeatedFlag) String() string {
	if r.values == nil {
		return ""
	}
	return strings.Join(*r.values, ",")
}

func (r repeatedFlag) Set(v string) error {
	*r.values = append(*r.values, v)
	return nil
}

// ParseInvocation parses CLI flags into a canonical Invocation.
//
// Determinism goals mirror the teacher's: does not read env vars, does
// not read/assume the process CWD, requires WorkDir to be explicit and
// absolute.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("looma", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var workDir, programPath, insertsDir, mode, agentOutput, agentInput, tracePath, apiURL, apiKey string
	var cliArgs []string

	fs.StringVar(&workDir, "workdir", "", "Absolute working directory. Required.")
	fs.StringVar(&programPath, "program", "", "Program (JSON5) path. Required.")
	fs.StringVar(&insertsDir, "inserts-dir", "", "Fallback directory for the insert store (optional).")
	fs.StringVar(&mode, "mode", string(ModeUI), "Prompt channel: ui|agent")
	fs.StringVar(&agentOutput, "agent-output", defaultAgentOutputPath, "Agent-mode output path.")
	fs.StringVar(&agentInput, "agent-input", defaultAgentInputPath, "Agent-mode input path.")
	fs.StringVar(&tracePath, "trace", "", "Execution trace output path (optional).")
	fs.StringVar(&apiURL, "api-url", "", "Chat completions API URL (optional).")
	fs.StringVar(&apiKey, "api-key", "", "Chat completions API key (optional).")
	fs.Var(repeatedFlag{values: &cliArgs}, "arg", "Positional argument, populates ARG1, ARG2, ... (repeatable).")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	workDir = filepath.Clean(workDir)
	if workDir == "" || workDir == "." {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}

	if programPath == "" {
		return Invocation{}, invalidInvocationf("--program is required")
	}
	resolvedProgram, err := resolveUnderWorkDir(workDir, programPath)
	if err != nil {
		return Invocation{}, err
	}

	parsedMode, err := parseMode(mode)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		WorkDir:             workDir,
		ProgramPath:         resolvedProgram,
		Mode:                parsedMode,
		AgentOutput:         agentOutput,
		AgentInput:          agentInput,
		Args:                cliArgs,
		APIURL:              apiURL,
		APIKey:              apiKey,
		OriginalProgramPath: programPath,
		OriginalInsertsDir:  insertsDir,
		OriginalTracePath:   tracePath,
	}

	if strings.TrimSpace(insertsDir) != "" {
		resolvedInserts, err := resolveUnderWorkDir(workDir, insertsDir)
		if err != nil {
			return Invocation{}, err
		}
		inv.InsertsDir = resolvedInserts
	}
	if strings.TrimSpace(tracePath) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return Invocation{}, err
		}
		inv.TracePath = resolvedTrace
	}

	return inv, nil
}

func parseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeUI, "":
		return ModeUI, nil
	case ModeAgent:
		return ModeAgent, nil
	default:
		return "", invalidInvocationf("invalid --mode %q (expected ui|agent)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	// workDir is required to be absolute, so Join does not consult the
	// process's current working directory.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from a ParseInvocation/Execute
// error. If the error is not a known invocation error, it returns
// ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
