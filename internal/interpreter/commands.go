package interpreter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"looma/internal/interp"
	"looma/internal/program"
	"looma/internal/promptchannel"
	"looma/internal/trace"
	"looma/internal/value"
)

func stringField(t program.Task, key string) (string, bool) {
	s, ok := t[key].(string)
	return s, ok
}

func (in *Interpreter) cmdPrint(task program.Task) error {
	text, _ := stringField(task, "text")
	resolved, err := in.interpolate(task.Line(), text)
	if err != nil {
		return err
	}
	snap := in.appendOutput(resolved)
	in.Prompt.SetOutput(snap)
	return nil
}

func (in *Interpreter) cmdClear(task program.Task) error {
	in.resetOutput()
	in.Prompt.SetOutput("")
	return nil
}

func (in *Interpreter) cmdSleep(ctx context.Context, task program.Task) error {
	secs, err := in.evalSecondsField(task.Line(), task["seconds"])
	if err != nil {
		return err
	}
	if secs <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return runtimeErr(ErrCancelled, task.Line(), "sleep cancelled")
	case <-timer.C:
		return nil
	}
}

func (in *Interpreter) cmdSet(task program.Task) error {
	v, err := in.interpItemField(task.Line(), task["item"])
	if err != nil {
		return err
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, v)
	return nil
}

func (in *Interpreter) cmdUnescape(task program.Task) error {
	item, _ := stringField(task, "item")
	pass1, err := in.interpolate(task.Line(), item)
	if err != nil {
		return err
	}
	pass2, err := in.interpolate(task.Line(), unescapeBraces(pass1))
	if err != nil {
		return err
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.Str(pass2))
	return nil
}

// cmdWrite implements the "write" command supplemented from
// original_source/rust-project/src/runtime.rs's execute_task "write" arm
// (see DESIGN.md): writes item, rendered via to_display, to path resolved
// relative to the program's directory.
func (in *Interpreter) cmdWrite(task program.Task) error {
	path, _ := stringField(task, "path")
	resolvedPath, err := in.interpolate(task.Line(), path)
	if err != nil {
		return err
	}
	item, err := in.interpItemField(task.Line(), task["item"])
	if err != nil {
		return err
	}
	full := resolvedPath
	if !filepath.IsAbs(full) {
		full = filepath.Join(in.ProgramDir, resolvedPath)
	}
	if err := os.WriteFile(full, []byte(value.ToDisplay(item)), 0o644); err != nil {
		return runtimeErr(ErrTransport, task.Line(), "write %q: %v", full, err)
	}
	if outputName, ok := stringField(task, "output_name"); ok && outputName != "" {
		in.Store.Set(outputName, value.Bool(true))
	}
	return nil
}

func (in *Interpreter) cmdShowInserts(task program.Task) error {
	snap := in.Store.Snapshot()
	out := in.appendOutput(value.ToDisplay(snap))
	in.Prompt.SetOutput(out)
	return nil
}

func (in *Interpreter) cmdRandomChoice(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return runtimeErr(ErrType, task.Line(), "random_choice: list is empty")
	}
	idx := rollDice(len(items))
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, items[idx])
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventRandomChoice, TaskID: taskID(task), Detail: value.ToDisplay(items[idx])})
	return nil
}

func (in *Interpreter) cmdJoinList(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	before, err := in.fieldOrEmpty(task, "before")
	if err != nil {
		return err
	}
	between, err := in.fieldOrEmpty(task, "between")
	if err != nil {
		return err
	}
	after, err := in.fieldOrEmpty(task, "after")
	if err != nil {
		return err
	}
	parts := make([]string, len(items))
	for i, e := range items {
		parts[i] = value.ToDisplay(e)
	}
	result := before + strings.Join(parts, between) + after
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.Str(result))
	return nil
}

func (in *Interpreter) fieldOrEmpty(task program.Task, key string) (string, error) {
	s, ok := stringField(task, key)
	if !ok {
		return "", nil
	}
	return in.interpolate(task.Line(), s)
}

func (in *Interpreter) cmdListConcat(task program.Task) error {
	raw, ok := task["lists"].([]any)
	if !ok {
		return runtimeErr(ErrType, task.Line(), "list_concat: lists must be an array")
	}
	var out []value.Value
	for _, e := range raw {
		items, err := in.resolveListField(task.Line(), e)
		if err != nil {
			return err
		}
		out = append(out, items...)
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.List(out))
	return nil
}

func (in *Interpreter) cmdListAppend(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	item, err := in.interpItemField(task.Line(), task["item"])
	if err != nil {
		return err
	}
	out := append(append([]value.Value(nil), items...), item)
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.List(out))
	return nil
}

func (in *Interpreter) cmdListRemove(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	item, err := in.interpItemField(task.Line(), task["item"])
	if err != nil {
		return err
	}
	out := make([]value.Value, 0, len(items))
	removed := false
	for _, e := range items {
		if !removed && value.Equal(e, item) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.List(out))
	return nil
}

func (in *Interpreter) cmdListIndex(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	idx, err := in.evalIntField(task.Line(), task["index"])
	if err != nil {
		return err
	}
	pos, ok := resolveOneBasedIndex(idx, len(items))
	if !ok {
		return runtimeErr(ErrIndex, task.Line(), "list_index: index %d out of range for list of length %d", idx, len(items))
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, items[pos])
	return nil
}

// resolveOneBasedIndex maps spec.md §4.6's 1-based, -1-is-last list_index
// convention onto a 0-based slice position.
func resolveOneBasedIndex(idx int64, n int) (int, bool) {
	var pos int64
	if idx < 0 {
		pos = int64(n) + idx
	} else if idx > 0 {
		pos = idx - 1
	} else {
		return 0, false
	}
	if pos < 0 || pos >= int64(n) {
		return 0, false
	}
	return int(pos), true
}

func (in *Interpreter) cmdListSlice(task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	rawFrom, err := in.evalIntField(task.Line(), task["from_index"])
	if err != nil {
		return err
	}
	rawTo, err := in.evalIntField(task.Line(), task["to_index"])
	if err != nil {
		return err
	}
	outputName, _ := stringField(task, "output_name")
	n := int64(len(items))
	if rawTo == 0 {
		in.Store.Set(outputName, value.List(nil))
		return nil
	}
	normalize := func(i int64) int64 {
		if i < 0 {
			return n + i + 1
		}
		return i
	}
	from, to := normalize(rawFrom), normalize(rawTo)
	if to < from {
		in.Store.Set(outputName, value.List(nil))
		return nil
	}
	if from < 1 {
		from = 1
	}
	if to > n {
		to = n
	}
	if from > n || to < 1 {
		in.Store.Set(outputName, value.List(nil))
		return nil
	}
	in.Store.Set(outputName, value.List(items[from-1:to]))
	return nil
}

func (in *Interpreter) cmdUserInput(ctx context.Context, task program.Task) error {
	prompt, _ := stringField(task, "prompt")
	resolvedPrompt, err := in.interpolate(task.Line(), prompt)
	if err != nil {
		return err
	}
	answer, err := in.Prompt.UserInput(ctx, resolvedPrompt)
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return runtimeErr(ErrCancelled, task.Line(), "user_input cancelled")
		}
		return runtimeErr(ErrTransport, task.Line(), "user_input: %v", err)
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, value.Str(interp.Escape(answer)))
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventUserInput, TaskID: taskID(task)})
	return nil
}

func (in *Interpreter) cmdUserChoice(ctx context.Context, task program.Task) error {
	items, err := in.resolveListField(task.Line(), task["list"])
	if err != nil {
		return err
	}
	description, _ := stringField(task, "description")
	resolvedDesc, err := in.interpolate(task.Line(), description)
	if err != nil {
		return err
	}
	options := make([]string, len(items))
	for i, e := range items {
		options[i] = value.ToDisplay(e)
	}
	answer, err := in.Prompt.UserChoice(ctx, resolvedDesc, options)
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return runtimeErr(ErrCancelled, task.Line(), "user_choice cancelled")
		}
		return runtimeErr(ErrTransport, task.Line(), "user_choice: %v", err)
	}
	idx, ok := promptchannel.ResolveChoice(options, answer)
	if !ok {
		return runtimeErr(ErrName, task.Line(), "user_choice: unresolved answer %q", answer)
	}
	outputName, _ := stringField(task, "output_name")
	in.Store.Set(outputName, items[idx])
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventUserChoice, TaskID: taskID(task)})
	return nil
}

const awaitPollInterval = 50 * time.Millisecond

func (in *Interpreter) cmdAwaitInsert(ctx context.Context, task program.Task) error {
	name, _ := stringField(task, "name")
	resolvedName, err := in.interpolate(task.Line(), name)
	if err != nil {
		return err
	}
	if _, ok := in.Store.Get(resolvedName); ok {
		return nil
	}
	ticker := time.NewTicker(awaitPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return runtimeErr(ErrCancelled, task.Line(), "await_insert cancelled")
		case <-ticker.C:
			if _, ok := in.Store.Get(resolvedName); ok {
				return nil
			}
		}
	}
}
