package interpreter

import "looma/internal/program"

// frame is an execution frame per spec.md §4.6: a task list, its
// precomputed label map, and a cursor. Nested frames arise from serial,
// for, run_task, parallel_wait, and parallel_race.
type frame struct {
	tasks  []program.Task
	labels map[string]int
	cursor int
}

func newFrame(tasks []program.Task) *frame {
	f := &frame{tasks: tasks, labels: make(map[string]int)}
	for i, t := range tasks {
		if cmd, _ := t.Cmd(); cmd == "label" {
			if name, ok := t["name"].(string); ok {
				f.labels[name] = i
			}
		}
	}
	return f
}

// gotoSignal is an internal control-flow error: it is caught by the
// runFrame loop owning the targeted frame and never escapes to a caller.
type gotoSignal struct {
	frame *frame
	index int
}

func (g *gotoSignal) Error() string { return "looma: internal goto control signal" }

// execCtx threads the frame stack (for label resolution) and the
// "currently inside a parallel_* descendant" flag (which makes goto/
// goto_map unconditionally fatal, per spec.md §4.6) through recursive
// execution without sharing mutable state across parallel siblings.
type execCtx struct {
	stack          []*frame
	insideParallel bool
}

func (ec execCtx) pushFrame(f *frame) execCtx {
	next := make([]*frame, len(ec.stack)+1)
	copy(next, ec.stack)
	next[len(ec.stack)] = f
	return execCtx{stack: next, insideParallel: ec.insideParallel}
}

func (ec execCtx) enterParallel() execCtx {
	return execCtx{stack: ec.stack, insideParallel: true}
}

// findLabel searches the stack from innermost to outermost frame (the
// "nearest enclosing frame that is not parallel" of spec.md §4.6 — frames
// belonging to a parallel_* descendant are never pushed onto the stack
// callers reach for, since goto is rejected before this search runs).
func findLabel(stack []*frame, name string) (*frame, int, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if idx, ok := stack[i].labels[name]; ok {
			return stack[i], idx, true
		}
	}
	return nil, 0, false
}
