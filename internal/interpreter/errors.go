package interpreter

import (
	"fmt"
	"strconv"

	"looma/internal/diagnostics"
)

// ErrorKind discriminates the abstract runtime error kinds of spec.md §7
// (InterpolationMissingKey, TypeError, IndexError, NameError, MathError,
// PatternError, TransportError, Cancelled), mirroring mathexpr.Error's
// single-struct-plus-Kind-enum shape rather than one Go type per kind.
type ErrorKind int

const (
	ErrInterpMissing ErrorKind = iota
	ErrType
	ErrIndex
	ErrName
	ErrMath
	ErrPattern
	ErrTransport
	ErrCancelled
	ErrScope
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInterpMissing:
		return "InterpolationMissingKey"
	case ErrType:
		return "TypeError"
	case ErrIndex:
		return "IndexError"
	case ErrName:
		return "NameError"
	case ErrMath:
		return "MathError"
	case ErrPattern:
		return "PatternError"
	case ErrTransport:
		return "TransportError"
	case ErrCancelled:
		return "Cancelled"
	case ErrScope:
		return "ScopeError"
	default:
		return "UnknownError"
	}
}

// RuntimeError is the concrete error type raised by the task interpreter.
// It self-classifies via diagnostics.TaskFailure so internal/diagnostics can
// record a failure without importing this package.
type RuntimeError struct {
	Kind  ErrorKind
	Line  int
	Msg   string
	Cause error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

func (e *RuntimeError) FailureClass() diagnostics.FailureClass {
	return diagnostics.FailureClassExecution
}

// Resumable is always false: this interpreter has no checkpoint/resume
// concept (see DESIGN.md).
func (e *RuntimeError) Resumable() bool { return false }

func (e *RuntimeError) FailingTaskID() string {
	if e.Line > 0 {
		return strconv.Itoa(e.Line)
	}
	return ""
}

func runtimeErr(kind ErrorKind, line int, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind ErrorKind, line int, cause error) *RuntimeError {
	return &RuntimeError{Kind: kind, Line: line, Msg: cause.Error(), Cause: cause}
}

// isCancelled reports whether err is itself a *RuntimeError of kind
// ErrCancelled (a wrapped one is not unwrapped), used at frame boundaries to stop without treating cancellation
// as a user-visible failure unless it escapes the top frame.
func isCancelled(err error) bool {
	re, ok := err.(*RuntimeError)
	return ok && re.Kind == ErrCancelled
}
