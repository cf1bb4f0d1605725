package interpreter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"looma/internal/interp"
	"looma/internal/mathexpr"
	"looma/internal/pattern"
	"looma/internal/program"
	"looma/internal/trace"
	"looma/internal/value"
)

func (in *Interpreter) cmdGoto(ec execCtx, task program.Task) error {
	if ec.insideParallel {
		return runtimeErr(ErrScope, task.Line(), "goto: not allowed inside a parallel_* descendant")
	}
	name, _ := stringField(task, "name")
	resolvedName, err := in.interpolate(task.Line(), name)
	if err != nil {
		return err
	}
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventGoto, TaskID: taskID(task), Detail: resolvedName})
	if resolvedName == "CONTINUE" {
		return nil
	}
	f, idx, ok := findLabel(ec.stack, resolvedName)
	if !ok {
		return runtimeErr(ErrName, task.Line(), "goto: unknown label %q", resolvedName)
	}
	return &gotoSignal{frame: f, index: idx + 1}
}

func (in *Interpreter) cmdGotoMap(ec execCtx, task program.Task) error {
	if ec.insideParallel {
		return runtimeErr(ErrScope, task.Line(), "goto_map: not allowed inside a parallel_* descendant")
	}
	text, _ := stringField(task, "text")
	subject := in.interpolateOrNull(text)

	entries, ok := task["target_maps"].([]any)
	if !ok {
		return runtimeErr(ErrType, task.Line(), "goto_map: target_maps must be a list")
	}
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok || len(entry) != 1 {
			return runtimeErr(ErrType, task.Line(), "goto_map: each target_maps entry must be a single-entry mapping")
		}
		for patKey, targetRaw := range entry {
			pat, err := in.interpolate(task.Line(), patKey)
			if err != nil {
				return err
			}
			if _, ok := pattern.Match(pat, subject); !ok {
				continue
			}
			targetStr, ok := targetRaw.(string)
			if !ok {
				return runtimeErr(ErrType, task.Line(), "goto_map: target must be a label name string")
			}
			target, err := in.interpolate(task.Line(), targetStr)
			if err != nil {
				return err
			}
			trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventGotoMap, TaskID: taskID(task), Detail: target})
			if target == "CONTINUE" {
				return nil
			}
			f, idx, ok := findLabel(ec.stack, target)
			if !ok {
				return runtimeErr(ErrName, task.Line(), "goto_map: unknown label %q", target)
			}
			return &gotoSignal{frame: f, index: idx + 1}
		}
	}
	return runtimeErr(ErrName, task.Line(), "goto_map: no target_maps entry matched %q", subject)
}

// cmdReplaceMap implements the repeated-wildcard-substitution command of
// spec.md §4.6. applyOnce tries every wildcard_maps entry in order against
// the current subject and returns the first match's rendered replacement;
// repeat_until_done re-applies it until a fixed point (by value equality)
// or the iteration cap is reached.
func (in *Interpreter) cmdReplaceMap(task program.Task) error {
	item, _ := stringField(task, "item")
	subject := in.interpolateOrNull(item)

	entries, ok := task["wildcard_maps"].([]any)
	if !ok {
		return runtimeErr(ErrType, task.Line(), "replace_map: wildcard_maps must be a list")
	}
	repeat, _ := task["repeat_until_done"].(bool)

	applyOnce := func(subj string) (string, bool, error) {
		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok || len(entry) != 1 {
				return "", false, runtimeErr(ErrType, task.Line(), "replace_map: each wildcard_maps entry must be a single-entry mapping")
			}
			for patKey, templRaw := range entry {
				pat, err := in.interpolate(task.Line(), patKey)
				if err != nil {
					return "", false, err
				}
				caps, ok := pattern.Match(pat, subj)
				if !ok {
					continue
				}
				templ, ok := templRaw.(string)
				if !ok {
					return "", false, runtimeErr(ErrType, task.Line(), "replace_map: replacement must be a template string")
				}
				resolver := interp.Chain(interp.StringResolver(pattern.CaptureLookup(caps)), in.resolver)
				out, err := interp.Interpolate(templ, resolver)
				if err != nil {
					if mk, ok := err.(*interp.MissingKeyError); ok {
						return "", false, runtimeErr(ErrInterpMissing, task.Line(), "missing insert %q", mk.Key)
					}
					return "", false, runtimeErr(ErrInterpMissing, task.Line(), "%v", err)
				}
				return out, true, nil
			}
		}
		return subj, false, nil
	}

	result := subject
	if !repeat {
		out, matched, err := applyOnce(result)
		if err != nil {
			return err
		}
		if matched {
			result = out
		}
	} else {
		const maxIterations = 1000
		reachedFixedPoint := false
		for i := 0; i < maxIterations; i++ {
			out, matched, err := applyOnce(result)
			if err != nil {
				return err
			}
			if !matched || out == result {
				result = out
				reachedFixedPoint = true
				break
			}
			result = out
		}
		if !reachedFixedPoint {
			return runtimeErr(ErrPattern, task.Line(), "replace_map: repeat_until_done did not reach a fixed point within %d iterations", maxIterations)
		}
	}

	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.Str(result))
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventReplaceMap, TaskID: taskID(task), Detail: result})
	return nil
}

// cmdFor binds every name in name_list_map to its i-th element across a
// common length N (all lists must agree), running tasks as a fresh serial
// sub-frame for each i, per spec.md §4.6.
func (in *Interpreter) cmdFor(ctx context.Context, ec execCtx, task program.Task) error {
	raw, ok := task["name_list_map"].(map[string]any)
	if !ok {
		return runtimeErr(ErrType, task.Line(), "for: name_list_map must be a mapping")
	}
	names := make([]string, 0, len(raw))
	lists := make(map[string][]value.Value, len(raw))
	n := -1
	for name, v := range raw {
		items, err := in.resolveListField(task.Line(), v)
		if err != nil {
			return err
		}
		if n == -1 {
			n = len(items)
		} else if len(items) != n {
			return runtimeErr(ErrType, task.Line(), "for: name_list_map lists must all have equal length")
		}
		names = append(names, name)
		lists[name] = items
	}
	if n == -1 {
		n = 0
	}

	subTasks := task.SubTasks()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return runtimeErr(ErrCancelled, task.Line(), "for cancelled")
		default:
		}
		for _, name := range names {
			in.Store.Set(name, lists[name][i])
		}
		child := newFrame(subTasks)
		if err := in.runFrame(ctx, ec.pushFrame(child), child); err != nil {
			return err
		}
		trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventForIteration, TaskID: taskID(task), Detail: fmt.Sprintf("%d/%d", i+1, n)})
	}
	return nil
}

func (in *Interpreter) cmdSerial(ctx context.Context, ec execCtx, task program.Task) error {
	child := newFrame(task.SubTasks())
	return in.runFrame(ctx, ec.pushFrame(child), child)
}

// cmdParallelWait runs every sub-task concurrently and waits for all of
// them, exactly errgroup.WithContext's join-all-cancel-on-first-error
// contract: the first failure cancels the shared context and is returned,
// per spec.md §4.6/§5.
func (in *Interpreter) cmdParallelWait(ctx context.Context, ec execCtx, task program.Task) error {
	subTasks := task.SubTasks()
	g, gctx := errgroup.WithContext(ctx)
	childEC := ec.enterParallel()
	for _, t := range subTasks {
		t := t
		g.Go(func() error {
			child := newFrame([]program.Task{t})
			return in.runFrame(gctx, childEC.pushFrame(child), child)
		})
	}
	return g.Wait()
}

// cmdParallelRace runs every sub-task concurrently and propagates whichever
// finishes first (success or failure), cancelling the rest. There is no
// errgroup equivalent for first-done-wins, so this is hand-rolled with a
// cancellable context and a buffered result channel, per spec.md §4.6.
//
// Each sub-task's frame lives only in its own goroutine's stack; there is
// no task-keyed annotation map to scrub on cancellation, so losing
// goroutines simply unwind once they observe the cancelled context at
// their next suspension point.
func (in *Interpreter) cmdParallelRace(ctx context.Context, ec execCtx, task program.Task) error {
	subTasks := task.SubTasks()
	if len(subTasks) == 0 {
		return nil
	}
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	childEC := ec.enterParallel()

	results := make(chan error, len(subTasks))
	var wg sync.WaitGroup
	for _, t := range subTasks {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			child := newFrame([]program.Task{t})
			results <- in.runFrame(raceCtx, childEC.pushFrame(child), child)
		}()
	}

	var winner error
	select {
	case winner = <-results:
	case <-ctx.Done():
		winner = runtimeErr(ErrCancelled, task.Line(), "parallel_race cancelled")
	}
	cancel()
	wg.Wait()
	return winner
}

// cmdRunTask looks up task_name in named_tasks, shallow-merges the
// invocation's extra fields over it, and recurses into execTask — which
// already dispatches correctly whether the merged task is a container
// command or a leaf command, per spec.md §4.6.
func (in *Interpreter) cmdRunTask(ctx context.Context, ec execCtx, task program.Task) error {
	name, _ := stringField(task, "task_name")
	resolvedName, err := in.interpolate(task.Line(), name)
	if err != nil {
		return err
	}
	named, ok := in.Program.NamedTasks[resolvedName]
	if !ok {
		return runtimeErr(ErrName, task.Line(), "run_task: unknown named task %q", resolvedName)
	}
	merged := named.MergeFrom(task)
	return in.execTask(ctx, ec, merged)
}

func (in *Interpreter) cmdDelete(task program.Task) error {
	patterns, err := in.resolveStringList(task.Line(), task["wildcards"])
	if err != nil {
		return err
	}
	in.Store.DeleteMatching(patterns)
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventDelete, TaskID: taskID(task), Detail: strings.Join(patterns, ",")})
	return nil
}

func (in *Interpreter) cmdDeleteExcept(task program.Task) error {
	patterns, err := in.resolveStringList(task.Line(), task["wildcards"])
	if err != nil {
		return err
	}
	in.Store.DeleteExcept(patterns)
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventDelete, TaskID: taskID(task), Detail: "except:" + strings.Join(patterns, ",")})
	return nil
}

func (in *Interpreter) cmdMath(task program.Task) error {
	input, _ := stringField(task, "input")
	resolved, err := in.interpolate(task.Line(), input)
	if err != nil {
		return err
	}
	result, err := mathexpr.Eval(resolved, in.Store)
	if err != nil {
		return wrapErr(ErrMath, task.Line(), err)
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.Int(result))
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventMath, TaskID: taskID(task), Detail: resolved})
	return nil
}
