package model

import "errors"

// Model errors.
var (
	// ErrNodeNotFound indicates a node ID that is not in the model.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotWriting indicates a mutation outside of a Write scope.
	ErrNotWriting = errors.New("mutation outside of a write transaction")

	// ErrUnknownLink indicates a link the node's concept does not declare.
	ErrUnknownLink = errors.New("unknown link")

	// ErrConceptMismatch indicates a child or target whose concept is not
	// compatible with the link.
	ErrConceptMismatch = errors.New("concept does not match link")

	// ErrAbstractConcept indicates an attempt to instantiate an abstract
	// concept.
	ErrAbstractConcept = errors.New("cannot instantiate abstract concept")

	// ErrCardinality indicates a second child in a single-valued link.
	ErrCardinality = errors.New("link already has a child")

	// ErrInvalidMove indicates a move of a node into its own subtree.
	ErrInvalidMove = errors.New("invalid node move")
)
