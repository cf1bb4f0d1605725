package diagnostics

// Classifiable lets an error self-report its diagnostics bucket, so this
// package can classify errors from internal/program and internal/interpreter
// without importing either (which would be a cycle: both import
// internal/diagnostics to record failures).
//
// Grounded on the teacher's failureFromError, which used errors.As against
// four concrete *XxxFailureError types; generalized here to an interface so
// error producers across packages can opt in without diagnostics depending
// on their types.
type Classifiable interface {
	error
	FailureClass() FailureClass
	Resumable() bool
}

// TaskFailure additionally carries the task/line identity of the failure,
// for the execution bucket.
type TaskFailure interface {
	Classifiable
	FailingTaskID() string
}

func failureFromError(err error) Failure {
	if err == nil {
		return Failure{
			FailureClass: FailureClassSystem,
			ErrorCode:    "NilError",
			ErrorMessage: "nil error",
			Resumable:    false,
		}
	}

	if tf, ok := err.(TaskFailure); ok {
		var taskPtr *string
		if id := tf.FailingTaskID(); id != "" {
			taskPtr = &id
		}
		return Failure{
			FailureClass: tf.FailureClass(),
			TaskID:       taskPtr,
			ErrorCode:    string(tf.FailureClass()),
			ErrorMessage: tf.Error(),
			Resumable:    tf.Resumable(),
		}
	}

	if cf, ok := err.(Classifiable); ok {
		return Failure{
			FailureClass: cf.FailureClass(),
			ErrorCode:    string(cf.FailureClass()),
			ErrorMessage: cf.Error(),
			Resumable:    cf.Resumable(),
		}
	}

	// Unclassified error: most conservative bucket within the taxonomy.
	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
		Resumable:    false,
	}
}
