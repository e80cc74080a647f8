package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/cellstorm/internal/celltree"
)

// EditorID identifies one open editor session.
type EditorID string

// NewEditorID returns a random editor ID.
func NewEditorID() EditorID {
	return EditorID(uuid.NewString())
}

// Range is a caret range [Start, End) within a cell's selectable text,
// in grapheme clusters.
type Range struct {
	Start int
	End   int
}

// Caret returns the empty range at offset.
func Caret(offset int) Range { return Range{Start: offset, End: offset} }

// IsEmpty reports whether the range selects nothing.
func (r Range) IsEmpty() bool { return r.Start == r.End }

// Normalize returns the range with Start <= End.
func (r Range) Normalize() Range {
	if r.End < r.Start {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// CompletionPosition is where a completion menu applies relative to its
// anchor cell.
type CompletionPosition string

// Completion positions.
const (
	CompletionLeft   CompletionPosition = "LEFT"
	CompletionCenter CompletionPosition = "CENTER"
	CompletionRight  CompletionPosition = "RIGHT"
)

// CompletionMenuTrigger asks the frontend to open a completion menu.
type CompletionMenuTrigger struct {
	Anchor        celltree.ID
	Position      CompletionPosition
	Pattern       string
	CaretPosition int
}

// CompletionEntry is one row of a completion menu. ID is the index the
// backend uses to execute the entry.
type CompletionEntry struct {
	ID           int
	MatchingText string
	Description  string
}

// Matches reports whether the entry should be listed for pattern.
func (e CompletionEntry) Matches(pattern string) bool {
	return strings.Contains(e.MatchingText, pattern)
}

// MatchesExactly reports whether pattern is the entry's full text.
func (e CompletionEntry) MatchesExactly(pattern string) bool {
	return e.MatchingText == pattern
}

// EditorUpdate is one message from the backend to a frontend.
//
// A nil Entries leaves an open menu unchanged; an empty, non-nil Entries
// clears it.
//
// Seq orders the updates of one editor session. Pushed updates and call
// results share the sequence, starting at 1, so a frontend can apply them in
// the order the backend produced them. Zero marks an unsequenced update.
type EditorUpdate struct {
	Seq       uint64
	Changes   []celltree.Op
	Selection CaretPolicy
	Menu      *CompletionMenuTrigger
	Entries   []CompletionEntry
}

// IsEmpty reports whether the update carries nothing.
func (u *EditorUpdate) IsEmpty() bool {
	return u == nil || (len(u.Changes) == 0 && u.Selection == nil && u.Menu == nil && u.Entries == nil)
}

// WithSelection returns a copy of u with its selection replaced by p.
// A nil p keeps the current selection.
func (u *EditorUpdate) WithSelection(p CaretPolicy) *EditorUpdate {
	out := *u
	if p != nil {
		out.Selection = p
	}
	return &out
}

func (u *EditorUpdate) String() string {
	if u == nil {
		return "update(nil)"
	}
	return fmt.Sprintf("update(#%d, %d ops, selection=%v, menu=%v, entries=%d)",
		u.Seq, len(u.Changes), u.Selection, u.Menu != nil, len(u.Entries))
}

// ServiceResult is the result of a call that reports success in addition to
// an update.
type ServiceResult struct {
	Result bool
	Update *EditorUpdate
}
