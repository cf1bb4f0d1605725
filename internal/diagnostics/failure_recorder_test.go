package diagnostics

import "testing"

func TestFailureRecorder_StartAndRecordFailure(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec := &FailureRecorder{Store: store}

	runID := rec.NewRunID()
	if runID == "" {
		t.Fatalf("expected non-empty run id")
	}

	if err := rec.StartRun(Run{RunID: runID, ProgramHash: "program-abc"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run, err := store.LoadRun(runID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Fatalf("expected running status, got %q", run.Status)
	}

	cause := &fakeTaskFailure{class: FailureClassExecution, resumable: false, taskID: "7", msg: "chat call failed"}
	if err := rec.RecordFailure(runID, cause); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	failure, err := store.LoadFailure(runID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if failure.FailureClass != FailureClassExecution || failure.TaskID == nil || *failure.TaskID != "7" {
		t.Fatalf("unexpected failure record: %+v", failure)
	}

	run, err = store.LoadRun(runID)
	if err != nil {
		t.Fatalf("LoadRun after failure: %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Fatalf("expected failed status after RecordFailure, got %q", run.Status)
	}
}

func TestFailureRecorder_CompleteRun(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec := &FailureRecorder{Store: store}
	runID := rec.NewRunID()
	if err := rec.StartRun(Run{RunID: runID, ProgramHash: "p"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := rec.CompleteRun(runID); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	run, err := store.LoadRun(runID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Fatalf("expected completed status, got %q", run.Status)
	}
}
