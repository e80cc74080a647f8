package frontend

import "errors"

// Frontend errors.
var (
	// ErrClosed indicates use of a closed editor.
	ErrClosed = errors.New("editor closed")

	// ErrNotOpen indicates a request before a node was opened.
	ErrNotOpen = errors.New("no node open")

	// ErrNotStarted indicates use of an editor before Start.
	ErrNotStarted = errors.New("editor not started")

	// ErrAlreadyStarted indicates a second Start.
	ErrAlreadyStarted = errors.New("editor already started")
)
