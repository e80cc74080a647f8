package app

import "errors"

var (
	// ErrNoDocument is returned when a command names a document that is
	// not loaded.
	ErrNoDocument = errors.New("no such document")

	// ErrEmptyDocument is returned for a document file without a suite
	// line.
	ErrEmptyDocument = errors.New("document has no suite")

	// ErrNodeRequired is returned when a remote edit names no node.
	ErrNodeRequired = errors.New("a node ID is required to edit a remote document")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
