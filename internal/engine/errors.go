package engine

import "errors"

var (
	// ErrNoTemplate indicates a concept without an applicable editor.
	ErrNoTemplate = errors.New("no template for concept")

	// ErrLocation indicates a node location that cannot be created, such as
	// a child of a removed node.
	ErrLocation = errors.New("invalid node location")

	// ErrNotInstantiable indicates a link whose target has no concrete
	// concept.
	ErrNotInstantiable = errors.New("no instantiable concept")
)
