package frontend

import (
	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// CompletionMenu is an open code completion menu. It edits its own pattern;
// the entries come from the backend and are filtered locally.
type CompletionMenu struct {
	Anchor   celltree.ID
	Position protocol.CompletionPosition

	pattern  string
	caret    int
	selected int
	all      []protocol.CompletionEntry
	filtered []protocol.CompletionEntry
}

func newCompletionMenu(trigger *protocol.CompletionMenuTrigger, entries []protocol.CompletionEntry) *CompletionMenu {
	m := &CompletionMenu{
		Anchor:   trigger.Anchor,
		Position: trigger.Position,
		pattern:  trigger.Pattern,
		caret:    textutil.Clamp(trigger.Pattern, trigger.CaretPosition),
	}
	m.Load(entries)
	return m
}

// Pattern returns the text typed into the menu.
func (m *CompletionMenu) Pattern() string { return m.pattern }

// Caret returns the caret offset within the pattern.
func (m *CompletionMenu) Caret() int { return m.caret }

// Load replaces the entries.
func (m *CompletionMenu) Load(entries []protocol.CompletionEntry) {
	m.all = entries
	m.filter()
}

func (m *CompletionMenu) filter() {
	var filtered []protocol.CompletionEntry
	for _, e := range m.all {
		if e.Matches(m.pattern) {
			filtered = append(filtered, e)
		}
	}
	m.filtered = filtered
	if m.selected >= len(m.filtered) {
		m.selected = 0
	}
}

// Entries returns the entries matching the pattern.
func (m *CompletionMenu) Entries() []protocol.CompletionEntry { return m.filtered }

// SelectedIndex returns the index of the highlighted entry.
func (m *CompletionMenu) SelectedIndex() int { return m.selected }

// Selected returns the highlighted entry.
func (m *CompletionMenu) Selected() (protocol.CompletionEntry, bool) {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		return protocol.CompletionEntry{}, false
	}
	return m.filtered[m.selected], true
}

// SelectNext highlights the next entry, wrapping around.
func (m *CompletionMenu) SelectNext() {
	m.selected++
	if m.selected >= len(m.filtered) {
		m.selected = 0
	}
}

// SelectPrevious highlights the previous entry, wrapping around.
func (m *CompletionMenu) SelectPrevious() {
	m.selected--
	if m.selected < 0 {
		m.selected = max(len(m.filtered)-1, 0)
	}
}

// textBeforeCaret returns the pattern up to the caret.
func (m *CompletionMenu) textBeforeCaret() string {
	return textutil.Slice(m.pattern, 0, m.caret)
}

// moveCaret moves the pattern caret by delta.
func (m *CompletionMenu) moveCaret(delta int) {
	m.caret = textutil.Clamp(m.pattern, m.caret+delta)
}

// insert types text at the caret. It returns the text that was before the
// caret and the text from the insertion point to the end.
func (m *CompletionMenu) insert(text string) (before, rest string) {
	before = m.textBeforeCaret()
	m.pattern = textutil.ReplaceRange(m.pattern, m.caret, m.caret, text)
	rest = textutil.Slice(m.pattern, m.caret, textutil.Len(m.pattern))
	m.caret += textutil.Len(text)
	m.filter()
	return before, rest
}

// delete removes the grapheme before (or after) the caret. It reports
// false if there is none.
func (m *CompletionMenu) delete(before bool) bool {
	n := textutil.Len(m.pattern)
	switch {
	case before && m.caret > 0:
		m.pattern = textutil.ReplaceRange(m.pattern, m.caret-1, m.caret, "")
		m.caret--
	case !before && m.caret < n:
		m.pattern = textutil.ReplaceRange(m.pattern, m.caret, m.caret+1, "")
	default:
		return false
	}
	m.filter()
	return true
}

// exactMatches returns the entries whose full text is pattern.
func (m *CompletionMenu) exactMatches(pattern string) []protocol.CompletionEntry {
	var out []protocol.CompletionEntry
	for _, e := range m.all {
		if e.MatchesExactly(pattern) {
			out = append(out, e)
		}
	}
	return out
}

// singleExactMatch returns the only listed entry if it matches the whole
// pattern.
func (m *CompletionMenu) singleExactMatch() (protocol.CompletionEntry, bool) {
	if len(m.filtered) == 1 && m.filtered[0].MatchesExactly(m.pattern) {
		return m.filtered[0], true
	}
	return protocol.CompletionEntry{}, false
}
