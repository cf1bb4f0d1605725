// Package interpreter implements the task interpreter of spec.md §4.6: the
// dispatch table over the ~28-command vocabulary and the control-flow core
// (label scoping, goto/goto_map, for/serial/run_task, parallel_wait/
// parallel_race with cooperative cancellation).
//
// Frame/cursor design is generalized from internal/dag/types.go + state.go +
// state_machine.go's validated-transition discipline, adapted from "worker
// pool over a DAG's ready set" to "task list with a label map and a
// cursor". parallel_wait is golang.org/x/sync/errgroup's join-all-cancel-
// on-first-error contract directly; parallel_race is hand-rolled (no
// errgroup equivalent exists for first-done-wins) using the same
// done-channel-plus-sync.WaitGroup shape as internal/dag/executor.go's
// RunParallel.
package interpreter

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"looma/internal/inserts"
	"looma/internal/interp"
	"looma/internal/program"
	"looma/internal/promptchannel"
	"looma/internal/trace"
	"looma/internal/value"
)

// ChatClient is the interpreter's view of the HTTP chat transport (see
// internal/chatclient), kept as a narrow interface so this package never
// imports net/http directly.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Interpreter executes one loaded, analyzed program against one insert
// store and prompt channel.
type Interpreter struct {
	Program    *program.Program
	Store      *inserts.Store
	Prompt     promptchannel.Channel
	Chat       ChatClient
	Trace      trace.Sink
	ProgramDir string

	outMu  sync.Mutex
	output strings.Builder
}

// New builds an Interpreter. Trace and Chat may be nil (Trace defaults to
// a no-op sink at call sites via trace.SafeRecord's nil check; Chat being
// nil only matters if the program ever executes a chat task).
func New(p *program.Program, store *inserts.Store, prompt promptchannel.Channel) *Interpreter {
	return &Interpreter{Program: p, Store: store, Prompt: prompt}
}

// Run executes the program's top-level order list to completion and
// returns the final output buffer contents, per spec.md §4.6's
// "Termination" clause.
func (in *Interpreter) Run(ctx context.Context) (string, error) {
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventProgramStart})

	top := newFrame(in.Program.Order)
	ec := execCtx{stack: []*frame{top}}
	err := in.runFrame(ctx, ec, top)

	if err != nil {
		if isCancelled(err) {
			trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventProgramTerminated, Reason: "Cancelled"})
		} else {
			trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventProgramTerminated, Reason: "Failed"})
		}
		return in.snapshotOutput(), err
	}
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventProgramComplete})
	return in.snapshotOutput(), nil
}

// runFrame drives f's cursor across its task list, handling goto signals
// targeted at f itself and propagating everything else (including goto
// signals targeted at an outer frame) to the caller.
func (in *Interpreter) runFrame(ctx context.Context, ec execCtx, f *frame) error {
	for f.cursor < len(f.tasks) {
		select {
		case <-ctx.Done():
			return runtimeErr(ErrCancelled, 0, "cancelled")
		default:
		}

		task := f.tasks[f.cursor]
		err := in.execTask(ctx, ec, task)
		if err != nil {
			if gj, ok := err.(*gotoSignal); ok && gj.frame == f {
				f.cursor = gj.index
				continue
			}
			return err
		}
		f.cursor++
	}
	return nil
}

// execTask dispatches one task by its "cmd" field. It returns nil on
// ordinary completion, *gotoSignal to request a cursor jump somewhere up
// the stack, or any other error to abort the enclosing frame chain.
func (in *Interpreter) execTask(ctx context.Context, ec execCtx, task program.Task) error {
	cmd, ok := task.Cmd()
	if !ok {
		return runtimeErr(ErrType, task.Line(), "task has no cmd")
	}

	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventTaskStart, TaskID: taskID(task), Detail: cmd})

	switch cmd {
	case "print":
		return in.cmdPrint(task)
	case "clear":
		return in.cmdClear(task)
	case "sleep":
		return in.cmdSleep(ctx, task)
	case "set":
		return in.cmdSet(task)
	case "unescape":
		return in.cmdUnescape(task)
	case "write":
		return in.cmdWrite(task)
	case "show_inserts":
		return in.cmdShowInserts(task)
	case "random_choice":
		return in.cmdRandomChoice(task)
	case "join_list":
		return in.cmdJoinList(task)
	case "list_concat":
		return in.cmdListConcat(task)
	case "list_append":
		return in.cmdListAppend(task)
	case "list_remove":
		return in.cmdListRemove(task)
	case "list_index":
		return in.cmdListIndex(task)
	case "list_slice":
		return in.cmdListSlice(task)
	case "user_input":
		return in.cmdUserInput(ctx, task)
	case "user_choice":
		return in.cmdUserChoice(ctx, task)
	case "await_insert":
		return in.cmdAwaitInsert(ctx, task)
	case "label":
		return nil
	case "goto":
		return in.cmdGoto(ec, task)
	case "goto_map":
		return in.cmdGotoMap(ec, task)
	case "replace_map":
		return in.cmdReplaceMap(task)
	case "for":
		return in.cmdFor(ctx, ec, task)
	case "serial":
		return in.cmdSerial(ctx, ec, task)
	case "parallel_wait":
		return in.cmdParallelWait(ctx, ec, task)
	case "parallel_race":
		return in.cmdParallelRace(ctx, ec, task)
	case "run_task":
		return in.cmdRunTask(ctx, ec, task)
	case "delete":
		return in.cmdDelete(task)
	case "delete_except":
		return in.cmdDeleteExcept(task)
	case "math":
		return in.cmdMath(task)
	case "chat":
		return in.cmdChat(ctx, task)
	default:
		return runtimeErr(ErrType, task.Line(), "unknown cmd %q", cmd)
	}
}

func taskID(t program.Task) string {
	if t.Line() > 0 {
		return fmt.Sprintf("%d", t.Line())
	}
	return ""
}

// resolver adapts the insert store into an interp.Resolver.
func (in *Interpreter) resolver(key string) (value.Value, bool) {
	return in.Store.Get(key)
}

// interpolate runs the ordinary, fatal-on-failure interpolation path
// (spec.md §4.4/§7: "fatal otherwise").
func (in *Interpreter) interpolate(line int, s string) (string, error) {
	out, err := interp.Interpolate(s, in.resolver)
	if err != nil {
		if mk, ok := err.(*interp.MissingKeyError); ok {
			return "", runtimeErr(ErrInterpMissing, line, "missing insert %q", mk.Key)
		}
		return "", runtimeErr(ErrInterpMissing, line, "%v", err)
	}
	return out, nil
}

func (in *Interpreter) appendOutput(s string) string {
	in.outMu.Lock()
	defer in.outMu.Unlock()
	in.output.WriteString(s)
	snap := in.output.String()
	return snap
}

func (in *Interpreter) resetOutput() {
	in.outMu.Lock()
	defer in.outMu.Unlock()
	in.output.Reset()
}

func (in *Interpreter) snapshotOutput() string {
	in.outMu.Lock()
	defer in.outMu.Unlock()
	return in.output.String()
}

// rollDice picks a uniformly random index in [0, n). math/rand's
// top-level functions are backed by a mutex-guarded global source, so this
// is safe to call concurrently from parallel_wait/parallel_race siblings.
func rollDice(n int) int { return rand.Intn(n) }
