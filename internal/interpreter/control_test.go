package interpreter

import (
	"testing"
	"time"

	"looma/internal/program"
)

func TestCmdGotoJumpsPastIntermediateTasks(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "goto", "name": "@end"},
		{"cmd": "print", "text": "skipped"},
		{"cmd": "label", "name": "@end"},
		{"cmd": "print", "text": "done"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want done", out)
	}
}

func TestCmdGotoUnknownLabelIsNameError(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "goto", "name": "@nowhere"},
	})
	if err == nil {
		t.Fatalf("expected a NameError for an unknown label")
	}
}

// internal/program/analyzer.go treats "goto CONTINUE" as always valid —
// a documented no-op that falls through to the next task, never a literal
// label lookup. A program that passes static analysis on that basis must
// not crash at runtime on the exact construct the analyzer certified.
func TestCmdGotoContinueIsANoOp(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "goto", "name": "CONTINUE"},
		{"cmd": "print", "text": "done"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want done", out)
	}
}

func TestCmdGotoRejectedInsideParallel(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "parallel_wait", "tasks": []any{
			map[string]any{"cmd": "goto", "name": "@x"},
		}},
	})
	if err == nil {
		t.Fatalf("expected goto to be rejected inside a parallel_* descendant")
	}
}

func TestCmdGotoMapJumpsToMatchingTarget(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "label", "name": "@l"},
		{"cmd": "set", "item": int64(1), "output_name": "n"},
		{"cmd": "goto_map", "text": "{n}", "target_maps": []any{
			map[string]any{"1": "@end"},
		}},
		{"cmd": "label", "name": "@end"},
		{"cmd": "print", "text": "done"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want done", out)
	}
}

func TestCmdGotoMapContinueTargetIsANoOp(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "set", "item": int64(1), "output_name": "n"},
		{"cmd": "goto_map", "text": "{n}", "target_maps": []any{
			map[string]any{"1": "CONTINUE"},
		}},
		{"cmd": "print", "text": "done"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want done", out)
	}
}

func TestCmdGotoMapNoMatchIsNameError(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "set", "item": int64(9), "output_name": "n"},
		{"cmd": "goto_map", "text": "{n}", "target_maps": []any{
			map[string]any{"1": "@end"},
		}},
	})
	if err == nil {
		t.Fatalf("expected a NameError when no target_maps entry matches")
	}
}

func TestCmdReplaceMapSingleApplication(t *testing.T) {
	in, store, _ := newTestInterpreter(nil, map[string]any{"x": "Age 41"})
	_, err := run(t, in, []program.Task{
		{"cmd": "replace_map", "item": "{x}", "output_name": "age", "wildcard_maps": []any{
			map[string]any{"Age *": "{1}"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := store.Get("age")
	if got, _ := v.Str(); got != "41" {
		t.Fatalf("got %q, want 41", got)
	}
}

func TestCmdReplaceMapRepeatUntilDoneReachesFixedPoint(t *testing.T) {
	in, store, _ := newTestInterpreter(nil, map[string]any{"x": "a1"})
	_, err := run(t, in, []program.Task{
		{"cmd": "replace_map", "item": "{x}", "output_name": "out", "repeat_until_done": true, "wildcard_maps": []any{
			map[string]any{"a*": "b{1}"},
			map[string]any{"b*": "b{1}"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := store.Get("out")
	if got, _ := v.Str(); got != "b1" {
		t.Fatalf("got %q, want a fixed point of b1", got)
	}
}

func TestCmdForBindsEachElementAcrossIterations(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "for", "name_list_map": map[string]any{"x": []any{int64(1), int64(2), int64(3)}},
			"tasks": []any{map[string]any{"cmd": "print", "text": "{x}"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "123" {
		t.Fatalf("got %q, want 123", out)
	}
}

func TestCmdForRejectsMismatchedListLengths(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "for", "name_list_map": map[string]any{
			"x": []any{int64(1), int64(2)},
			"y": []any{int64(1)},
		}, "tasks": []any{}},
	})
	if err == nil {
		t.Fatalf("expected a type error for mismatched list lengths")
	}
}

func TestCmdSerialRunsNestedTasksInOrder(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "serial", "tasks": []any{
			map[string]any{"cmd": "print", "text": "a"},
			map[string]any{"cmd": "print", "text": "b"},
		}},
		{"cmd": "print", "text": "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "abc" {
		t.Fatalf("got %q, want abc", out)
	}
}

func TestCmdParallelWaitJoinsAllSiblings(t *testing.T) {
	in, store, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "parallel_wait", "tasks": []any{
			map[string]any{"cmd": "set", "item": "1", "output_name": "a"},
			map[string]any{"cmd": "set", "item": "2", "output_name": "b"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("a"); !ok {
		t.Fatalf("expected a to be set")
	}
	if _, ok := store.Get("b"); !ok {
		t.Fatalf("expected b to be set")
	}
}

func TestCmdParallelWaitFirstFailureIsReturned(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "parallel_wait", "tasks": []any{
			map[string]any{"cmd": "bogus"},
			map[string]any{"cmd": "set", "item": "1", "output_name": "a"},
		}},
	})
	if err == nil {
		t.Fatalf("expected the unknown-command failure to surface")
	}
}

func TestCmdRunTaskMergesExtraFieldsOverNamedTask(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, map[string]any{"name": "tom"})
	in.Program.NamedTasks["greet"] = program.Task{"cmd": "print", "text": "hi {name}"}
	out, err := run(t, in, []program.Task{
		{"cmd": "run_task", "task_name": "greet"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi tom" {
		t.Fatalf("got %q, want hi tom", out)
	}
}

func TestCmdRunTaskUnknownNameIsNameError(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "run_task", "task_name": "missing"},
	})
	if err == nil {
		t.Fatalf("expected a NameError for an unknown named task")
	}
}

// TestCmdParallelRaceNoPartialStateFromTheLoser is spec.md §8 scenario 6:
// parallel_race between a fast and a slow sibling completes as soon as the
// fast one does, cancelling the slow one before it commits any further
// writes, and the program resumes from the task after parallel_race.
func TestCmdParallelRaceNoPartialStateFromTheLoser(t *testing.T) {
	in, store, _ := newTestInterpreter(nil, nil)
	start := time.Now()
	out, err := run(t, in, []program.Task{
		{"cmd": "parallel_race", "tasks": []any{
			map[string]any{"cmd": "sleep", "seconds": 0.01},
			map[string]any{"cmd": "serial", "tasks": []any{
				map[string]any{"cmd": "sleep", "seconds": float64(2)},
				map[string]any{"cmd": "set", "item": "ran", "output_name": "loser_ran"},
			}},
		}},
		{"cmd": "print", "text": "done"},
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want done — order_index must resume after parallel_race", out)
	}
	if _, ok := store.Get("loser_ran"); ok {
		t.Fatalf("the cancelled loser must never commit its post-sleep write")
	}
	if elapsed > time.Second {
		t.Fatalf("parallel_race took %v, expected it to finish as soon as the fast sibling did, not wait for the 2s loser", elapsed)
	}
}

func TestCmdParallelRaceReturnsWinnersError(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	_, err := run(t, in, []program.Task{
		{"cmd": "parallel_race", "tasks": []any{
			map[string]any{"cmd": "bogus"},
			map[string]any{"cmd": "serial", "tasks": []any{
				map[string]any{"cmd": "sleep", "seconds": float64(2)},
			}},
		}},
	})
	if err == nil {
		t.Fatalf("expected the fast failing sibling's error to win the race")
	}
}

// The following are spec.md §8's six worked "concrete scenarios", each run
// end to end through Run rather than by dispatching a single command.

func TestScenario1_SetThenPrint(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "set", "item": "tom", "output_name": "name"},
		{"cmd": "print", "text": "hi {name}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi tom" {
		t.Fatalf("got %q, want %q", out, "hi tom")
	}
}

func TestScenario2_NestedInterpolation(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, map[string]any{"i": int64(3), "q-3": "color?"})
	out, err := run(t, in, []program.Task{
		{"cmd": "print", "text": "{q-{i}}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "color?" {
		t.Fatalf("got %q, want %q", out, "color?")
	}
}

func TestScenario3_ReplaceMapCapture(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "set", "item": "Age 41", "output_name": "x"},
		{"cmd": "replace_map", "item": "{x}", "output_name": "age", "wildcard_maps": []any{
			map[string]any{"Age *": "{1}"},
		}},
		{"cmd": "print", "text": "{age}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "41" {
		t.Fatalf("got %q, want %q", out, "41")
	}
}

func TestScenario4_GotoMapToLabel(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, nil)
	out, err := run(t, in, []program.Task{
		{"cmd": "label", "name": "@l"},
		{"cmd": "set", "item": int64(1), "output_name": "n"},
		{"cmd": "goto_map", "text": "{n}", "target_maps": []any{
			map[string]any{"1": "@end"},
		}},
		{"cmd": "label", "name": "@end"},
		{"cmd": "print", "text": "done"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Fatalf("got %q, want %q", out, "done")
	}
}

func TestScenario5_MathWithMaxAndLength(t *testing.T) {
	in, _, _ := newTestInterpreter(nil, map[string]any{"xs": []any{int64(10), int64(20)}})
	out, err := run(t, in, []program.Task{
		{"cmd": "math", "input": "max(1,2,3)+length(xs)", "output_name": "r"},
		{"cmd": "print", "text": "{r}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5" {
		t.Fatalf("got %q, want %q", out, "5")
	}
}

func TestScenario6_ParallelRaceTimingAndNoPartialState(t *testing.T) {
	in, store, _ := newTestInterpreter(nil, nil)
	start := time.Now()
	out, err := run(t, in, []program.Task{
		{"cmd": "parallel_race", "tasks": []any{
			map[string]any{"cmd": "sleep", "seconds": 0.01},
			map[string]any{"cmd": "sleep", "seconds": float64(10)},
		}},
		{"cmd": "set", "item": "resumed", "output_name": "after"},
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("got %q, want empty output (this scenario only checks timing/resumption)", out)
	}
	if _, ok := store.Get("after"); !ok {
		t.Fatalf("expected execution to resume at the task after parallel_race")
	}
	if elapsed > time.Second {
		t.Fatalf("parallel_race took %v, expected ~10ms (the fast sibling), not 10s (the slow one)", elapsed)
	}
}
