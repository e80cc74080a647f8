package engine

import (
	"github.com/google/uuid"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/incremental"
)

// State is the per-editor state that influences cell creation but is not
// part of the model. Reads through an incremental.Frame are tracked and
// writes invalidate the specs that read them.
type State struct {
	id string

	// TextReplacements holds typed text that did not become a model change
	// yet, keyed by the first reference of the text cell.
	TextReplacements *incremental.TrackableMap[celltree.Reference, string]
	// ForceShown lists optional parts that are shown although empty.
	ForceShown *incremental.TrackableMap[celltree.Reference, bool]
	// Placeholders maps a list to the index at which an insertion
	// placeholder is shown.
	Placeholders *incremental.TrackableMap[celltree.Reference, int]
}

// NewState creates an empty state tracked by memo.
func NewState(memo *incremental.Engine) *State {
	id := uuid.NewString()
	return &State{
		id:               id,
		TextReplacements: incremental.NewTrackableMap[celltree.Reference, string](memo, "state/"+id+"/text"),
		ForceShown:       incremental.NewTrackableMap[celltree.Reference, bool](memo, "state/"+id+"/shown"),
		Placeholders:     incremental.NewTrackableMap[celltree.Reference, int](memo, "state/"+id+"/placeholder"),
	}
}

// ID identifies the state in memo keys.
func (s *State) ID() string { return s.id }

// Reset drops all state.
func (s *State) Reset() {
	s.TextReplacements.Clear()
	s.ForceShown.Clear()
	s.Placeholders.Clear()
}

// ClearTextReplacement drops the replacement of every reference of c.
func (s *State) ClearTextReplacement(c *celltree.Cell) {
	for _, r := range c.References() {
		s.TextReplacements.Delete(r)
	}
}
