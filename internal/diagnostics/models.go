// Package diagnostics persists run and failure records for a program
// execution, so that a crashed or failed run leaves behind a durable,
// inspectable record under the working directory instead of only a
// stderr message.
//
// Adapted from the teacher's internal/recovery/state package: Run and
// Failure are kept field-for-field (renamed GraphHash to ProgramHash, per
// this domain's trace terminology), and Store's atomic-write, fsync,
// strict-decode persistence is carried over unchanged. Checkpoint and
// ExecutionMode are dropped: this interpreter has no incremental/resume
// concept (spec.md names no caching or resumption behavior), so the
// build-cache checkpoint model has nothing to attach to here (see
// DESIGN.md).
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persistent execution attempt metadata for one program run.
//
// Schema constraints (frozen): must include run_id, program_hash,
// start_time, and status.
type Run struct {
	RunID       string    `json:"run_id"`
	ProgramHash string    `json:"program_hash"`
	StartTime   time.Time `json:"start_time"`
	Status      RunStatus `json:"status"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.ProgramHash) == "" {
		errs = append(errs, errors.New("program_hash is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		errs = append(errs, errors.New("status is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassLoad      FailureClass = "load"
	FailureClassWorkspace FailureClass = "workspace"
	FailureClassExecution FailureClass = "execution"
	FailureClassSystem    FailureClass = "system"
)

// Failure is a recorded run termination reason.
//
// Schema constraints (frozen): must include failure_class, task_id
// (optional), error_code, error_message, and resumable.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	TaskID       *string      `json:"task_id,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
	Resumable    bool         `json:"resumable"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassLoad, FailureClassWorkspace, FailureClassExecution, FailureClassSystem:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.TaskID != nil && strings.TrimSpace(*f.TaskID) == "" {
		errs = append(errs, errors.New("task_id must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
