package diagnostics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FailureRecorder writes run.json/failure.json artifacts for a program run.
//
// Grounded on the teacher's FailureRecorder: callers provide Run metadata
// and the triggering error, classification happens here, and persistence
// goes through Store (atomic + durable). RunID generation is upgraded from
// the teacher's crypto/rand hex scheme to google/uuid.
type FailureRecorder struct {
	Store *Store
}

func (r *FailureRecorder) NewRunID() string {
	return uuid.NewString()
}

func (r *FailureRecorder) StartRun(run Run) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	return r.Store.SaveRun(run)
}

func (r *FailureRecorder) CompleteRun(runID string) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	run, err := r.Store.LoadRun(runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	run.Status = RunStatusCompleted
	return r.Store.SaveRun(run)
}

func (r *FailureRecorder) RecordFailure(runID string, cause error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	run, err := r.Store.LoadRun(runID)
	if err == nil {
		run.Status = RunStatusFailed
		_ = r.Store.SaveRun(run)
	}
	f := failureFromError(cause)
	return r.Store.SaveFailure(runID, f)
}
