package service

import (
	"errors"
	"fmt"

	"github.com/dshills/cellstorm/internal/protocol"
)

// Service errors.
var (
	// ErrEditorExists indicates an OpenNode for an editor ID that is
	// already open.
	ErrEditorExists = errors.New("editor already open")

	// ErrClosed indicates a call on a closed service.
	ErrClosed = errors.New("service closed")

	// ErrAlreadyStarted indicates a second Start of a running validator.
	ErrAlreadyStarted = errors.New("validator already started")
)

// OperationError is the error of a failed service request. The session of
// the editor stays usable.
type OperationError struct {
	Op     string
	Editor protocol.EditorID
	Err    error
}

func newOpError(op string, editor protocol.EditorID, err error) *OperationError {
	return &OperationError{Op: op, Editor: editor, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Editor == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (editor %s): %v", e.Op, e.Editor, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
