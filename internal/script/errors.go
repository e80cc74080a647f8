package script

import "errors"

var (
	// ErrStateClosed is returned when using a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTimeout is returned when a script runs longer than its budget.
	ErrTimeout = errors.New("lua execution timeout")

	// ErrUnknownConcept is returned when a script names a concept the
	// language does not have.
	ErrUnknownConcept = errors.New("unknown concept")
)

// ScriptError reports a failure in a script file.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *ScriptError) Unwrap() error { return e.Err }
