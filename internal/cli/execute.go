package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"looma/internal/chatclient"
	"looma/internal/diagnostics"
	"looma/internal/inserts"
	"looma/internal/interpreter"
	"looma/internal/logging"
	"looma/internal/program"
	"looma/internal/promptchannel"
	"looma/internal/savestate"
	"looma/internal/trace"
	"looma/internal/value"
)

// Execute loads, analyzes, and runs the program named by inv, wiring
// together every ambient component: the insert store, the prompt
// channel, the chat client, save-slot persistence, the execution trace,
// failure diagnostics, and operational logging.
//
// Adapted from the teacher's internal/cli/executor.go: a GraphExecutor
// wired into a dag.TaskGraph becomes an interpreter.Interpreter wired
// into a program.Program; the exit-code mapping discipline (map engine
// outcomes to a semantic Result.ExitCode even on panic) carries over.
func Execute(ctx context.Context, inv Invocation) (res Result, execErr error) {
	res.ExitCode = ExitInternalError

	logger := logging.New(os.Stderr)

	p, err := program.Load(inv.ProgramPath)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("loading program: %w", err)
	}
	if err := program.Analyze(p); err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("analyzing program: %w", err)
	}

	store := inserts.New(inserts.Options{
		FallbackDir: inv.InsertsDir,
		Args:        inv.Args,
	})
	if seed, ok := p.DefaultState["inserts"].(map[string]any); ok {
		for k, v := range seed {
			store.Set(k, value.FromAny(v))
		}
	}

	prompt, promptClose, err := buildPromptChannel(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	if promptClose != nil {
		defer promptClose()
	}

	var traceSink trace.Sink = trace.NopSink{}
	var recorder *trace.Recorder
	if inv.TracePath != "" {
		recorder = trace.NewRecorder()
		traceSink = recorder
	}

	diagStore, err := diagnostics.NewStore(inv.WorkDir)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("opening diagnostics store: %w", err)
	}
	failures := &diagnostics.FailureRecorder{Store: diagStore}
	runID := failures.NewRunID()
	programHash := hashText(p.SourceText)
	if err := failures.StartRun(diagnostics.Run{RunID: runID, ProgramHash: programHash}); err != nil {
		logger.Warn("failed to record run start", "error", err)
	}

	in := interpreter.New(p, store, prompt)
	in.Chat = chatclient.NewClient(coalesce(inv.APIURL, chatclient.DefaultAPIURL), coalesce(inv.APIKey, chatclient.DefaultAPIKey))
	in.Trace = traceSink
	in.ProgramDir = filepath.Dir(p.SourcePath)

	logger.Info("program_start", "program", inv.ProgramPath, "run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during execution", "panic", r)
			_ = failures.RecordFailure(runID, fmt.Errorf("panic: %v", r))
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
		}
		if inv.TracePath != "" && recorder != nil {
			if werr := writeTraceFile(inv.TracePath, recorder, programHash); werr != nil {
				logger.Warn("failed to write trace", "error", werr)
			}
		}
	}()

	output, runErr := in.Run(ctx)
	res.Output = output

	if runErr != nil {
		_ = failures.RecordFailure(runID, runErr)
		logger.Error("program_terminated", "error", runErr)
		var rerr *interpreter.RuntimeError
		if errors.As(runErr, &rerr) && rerr.Line > 0 {
			execErr = fmt.Errorf("Error at line %d: %s", rerr.Line, rerr.Msg)
		} else {
			execErr = fmt.Errorf("Error: %v", runErr)
		}
		res.ExitCode = ExitRuntimeFailure
		return res, execErr
	}

	if err := failures.CompleteRun(runID); err != nil {
		logger.Warn("failed to record run completion", "error", err)
	}
	logger.Info("program_complete", "run_id", runID)

	saveStore := savestate.New(p.SourcePath, p.SourceText, p.SaveStates)
	finalState, _ := value.ToAny(store.Snapshot()).(map[string]any)
	if err := offerSave(ctx, prompt, saveStore, finalState); err != nil {
		logger.Warn("save prompt failed", "error", err)
	}

	res.ExitCode = ExitSuccess
	return res, nil
}

func buildPromptChannel(inv Invocation) (promptchannel.Channel, func(), error) {
	switch inv.Mode {
	case ModeAgent:
		return promptchannel.NewAgentChannel(inv.AgentInput, inv.AgentOutput), nil, nil
	case ModeUI, "":
		return promptchannel.NewStdioChannel(os.Stdin, os.Stdout), nil, nil
	default:
		return nil, nil, invalidInvocationf("invalid --mode %q (expected ui|agent)", inv.Mode)
	}
}

func writeTraceFile(path string, recorder *trace.Recorder, programHash string) error {
	t := recorder.Trace(programHash)
	data, err := t.CanonicalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
