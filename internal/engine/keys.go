package engine

import (
	"context"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/protocol"
)

// CellAction is an action bound to a cell, such as deleting its node.
// Actions that change the model must run inside a model Write scope.
type CellAction interface {
	Execute(ctx context.Context) (protocol.CaretPolicy, error)
}

// CellActionFunc adapts a function to a CellAction.
type CellActionFunc func(ctx context.Context) (protocol.CaretPolicy, error)

// Execute implements CellAction.
func (f CellActionFunc) Execute(ctx context.Context) (protocol.CaretPolicy, error) { return f(ctx) }

// TextAction turns edited cell text into a change.
type TextAction interface {
	// Valid reports whether text is acceptable.
	Valid(text string) bool
	// ReplaceText applies newText, the cell text after replacing r with
	// replacement. It reports whether the edit was taken.
	ReplaceText(ctx context.Context, r protocol.Range, replacement, newText string) (bool, error)
}

// Backend-only cell keys.
var (
	// NodeKey is set on the root cell of every node.
	NodeKey = celltree.NewOpaqueKey[Location]("node")

	ReplaceTextKey = celltree.NewOpaqueKey[TextAction]("replace-text")
	InsertKey      = celltree.NewOpaqueKey[CellAction]("insert")
	DeleteKey      = celltree.NewOpaqueKey[CellAction]("delete")

	// SubstituteKey offers the actions that replace the cell's node or fill
	// its placeholder.
	SubstituteKey = celltree.NewOpaqueKey[completion.Provider]("substitute")
	// TransformBeforeKey and TransformAfterKey offer actions for text typed
	// at the start or end of the cell.
	TransformBeforeKey = celltree.NewOpaqueKey[completion.Provider]("transform-before")
	TransformAfterKey  = celltree.NewOpaqueKey[completion.Provider]("transform-after")
	// ShowKey is set on hidden optional parts.
	ShowKey = celltree.NewOpaqueKey[completion.Provider]("show")
)
