package celltree

import "errors"

// Cell tree errors.
var (
	// ErrCellNotFound indicates an ID that is not (or no longer) in the tree.
	ErrCellNotFound = errors.New("cell not found")

	// ErrAlreadyUpdating indicates RunUpdate was entered while another
	// update pass on the same tree was still running.
	ErrAlreadyUpdating = errors.New("cell tree is already updating")

	// ErrInvalidMove indicates a move that would create a cycle, or a
	// MoveTo onto the cell's current parent.
	ErrInvalidMove = errors.New("invalid cell move")

	// ErrIndexOutOfRange indicates a child index outside the parent's children.
	ErrIndexOutOfRange = errors.New("child index out of range")

	// ErrRootImmutable indicates an attempt to detach, delete or move the root.
	ErrRootImmutable = errors.New("root cell cannot be detached or deleted")
)
