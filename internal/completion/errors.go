package completion

import "errors"

var (
	// ErrNoSuchEntry indicates a menu entry index outside the current entries.
	ErrNoSuchEntry = errors.New("no such completion entry")

	// ErrEmptyItem indicates an Item carrying neither an action nor a provider.
	ErrEmptyItem = errors.New("completion item is empty")
)
