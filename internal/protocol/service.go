package protocol

import (
	"context"

	"github.com/dshills/cellstorm/internal/celltree"
)

// Service is the backend API a frontend talks to. Every call is scoped to
// an editor opened with OpenNode. Calls that change the model return the
// resulting update so the frontend can apply it in order with the pushed
// updates.
type Service interface {
	// OpenNode opens an editor for node and returns the stream of pushed
	// updates. The first update builds the whole tree. The channel is
	// closed when ctx is done or the editor is closed.
	OpenNode(ctx context.Context, editor EditorID, node string) (<-chan *EditorUpdate, error)

	// CloseEditor ends the session of editor.
	CloseEditor(ctx context.Context, editor EditorID) error

	// NavigateTab moves the caret to the next or previous tab target after
	// cell, showing hidden optionals on the way.
	NavigateTab(ctx context.Context, editor EditorID, cell celltree.ID, forward bool) (*EditorUpdate, error)

	// ExecuteDelete runs the delete action of the nearest ancestor of cell,
	// or of the adjacent leaf in the given direction.
	ExecuteDelete(ctx context.Context, editor EditorID, cell celltree.ID, forward bool) (*EditorUpdate, error)

	// ExecuteInsert runs the insert action of cell or of the nearest
	// boundary after it.
	ExecuteInsert(ctx context.Context, editor EditorID, cell celltree.ID) (*EditorUpdate, error)

	// ProcessTypedText handles text typed over r of cell. At a text
	// boundary side transforms are tried first.
	ProcessTypedText(ctx context.Context, editor EditorID, cell celltree.ID, r Range, text string) (*EditorUpdate, error)

	// ReplaceText replaces r of cell's text. Result reports whether any
	// action accepted the new text.
	ReplaceText(ctx context.Context, editor EditorID, cell celltree.ID, r Range, text string, triggerCompletion bool) (ServiceResult, error)

	// TriggerCodeCompletion opens a completion menu for the text of cell
	// before caret.
	TriggerCodeCompletion(ctx context.Context, editor EditorID, cell celltree.ID, caret int) (*EditorUpdate, error)

	// UpdateCodeCompletionActions recomputes the entries of the open menu
	// for pattern.
	UpdateCodeCompletionActions(ctx context.Context, editor EditorID, cell celltree.ID, pattern string) (*EditorUpdate, error)

	// HasCodeCompletionActions reports whether the open menu has entries
	// for pattern.
	HasCodeCompletionActions(ctx context.Context, editor EditorID, cell celltree.ID, pattern string) (bool, error)

	// ExecuteCodeCompletionAction runs entry id of the open menu.
	ExecuteCodeCompletionAction(ctx context.Context, editor EditorID, id int) (*EditorUpdate, error)

	// ResetState drops pending text replacements and shown optionals.
	ResetState(ctx context.Context, editor EditorID) (*EditorUpdate, error)

	// Flush returns the changes made since the last update.
	Flush(ctx context.Context, editor EditorID) (*EditorUpdate, error)
}
