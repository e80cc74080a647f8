package protocol

import "errors"

// Protocol errors.
var (
	// ErrEditorNotFound indicates an editor ID without an open session.
	ErrEditorNotFound = errors.New("editor not found")

	// ErrActionNotFound indicates a completion entry ID that is not in the
	// current completion menu.
	ErrActionNotFound = errors.New("completion action not found")

	// ErrInvalidMessage indicates a JSON message that does not decode to a
	// protocol value.
	ErrInvalidMessage = errors.New("invalid protocol message")
)
