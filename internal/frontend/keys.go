package frontend

import (
	"context"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/input"
	"github.com/dshills/cellstorm/internal/layout"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// request is a backend call prepared while the editor state was locked.
type request func(context.Context) (*protocol.EditorUpdate, error)

// perform runs req and applies its update.
func (e *Editor) perform(ctx context.Context, req request) error {
	if req == nil {
		return nil
	}
	u, err := req(ctx)
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

// locked runs fn with the editor state locked and notifies listeners
// afterwards.
func (e *Editor) locked(fn func() request) request {
	e.mu.Lock()
	req := fn()
	e.mu.Unlock()
	e.changed()
	return req
}

func (e *Editor) handleKey(ctx context.Context, ev input.KeyEvent) error {
	if ev.Key == input.KeyF5 {
		e.ClearLayoutCache()
		return nil
	}
	if handled, err := e.menuKey(ctx, ev); handled || err != nil {
		return err
	}
	return e.perform(ctx, e.locked(func() request { return e.keyRequest(ev) }))
}

// keyRequest handles ev for the current selection. Must run with e.mu held.
func (e *Editor) keyRequest(ev input.KeyEvent) request {
	switch s := e.selection.(type) {
	case CaretSelection:
		return e.caretKey(s, ev)
	case CellSelection:
		return e.cellKey(s, ev)
	default:
		return nil
	}
}

// caretKey handles ev for caret s. Must run with e.mu held.
func (e *Editor) caretKey(s CaretSelection, ev input.KeyEvent) request {
	c, err := e.tree.Cell(s.Cell)
	if err != nil {
		return nil
	}
	shift := ev.Modifiers.HasShift()
	switch ev.Key {
	case input.KeyLeft:
		if s.End > 0 {
			if shift {
				e.selectLocked(CaretRange(c, s.Start, s.End-1))
			} else {
				e.selectLocked(Caret(c, s.End-1))
			}
			return nil
		}
		prev := e.tree.adjacentWord(c.ID(), false)
		if prev == nil {
			return nil
		}
		if shift {
			e.extendLocked(c, prev, true, s)
		} else {
			e.selectLocked(Caret(prev, maxCaret(prev)))
		}
		return nil

	case input.KeyRight:
		if s.End < maxCaret(c) {
			if shift {
				e.selectLocked(CaretRange(c, s.Start, s.End+1))
			} else {
				e.selectLocked(Caret(c, s.End+1))
			}
			return nil
		}
		next := e.tree.adjacentWord(c.ID(), true)
		if next == nil {
			return nil
		}
		if shift {
			e.extendLocked(c, next, false, s)
		} else {
			e.selectLocked(Caret(next, 0))
		}
		return nil

	case input.KeyUp:
		if ev.Modifiers.HasMeta() {
			e.selectLocked(SelectCell(c, true, s))
			return nil
		}
		if up, ok := e.tree.verticalCaret(s, false); ok {
			e.selectLocked(up)
		}
		return nil

	case input.KeyDown:
		if down, ok := e.tree.verticalCaret(s, true); ok {
			e.selectLocked(down)
		}
		return nil

	case input.KeyHome:
		e.selectLocked(Caret(c, 0))
		return nil

	case input.KeyEnd:
		e.selectLocked(Caret(c, maxCaret(c)))
		return nil

	case input.KeyTab:
		id, forward := c.ID(), !shift
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.NavigateTab(ctx, e.id, id, forward)
		}

	case input.KeyDelete, input.KeyBackspace:
		if !s.IsEmpty() {
			return e.deleteRange(c, s.Range())
		}
		pos := s.End
		if ev.Key == input.KeyBackspace {
			pos--
		}
		if pos >= 0 && pos < maxCaret(c) {
			return e.deleteRange(c, protocol.Range{Start: pos, End: pos + 1})
		}
		return e.deleteCell(c, ev.Key == input.KeyDelete)

	case input.KeyEnter:
		id := c.ID()
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.ExecuteInsert(ctx, e.id, id)
		}
	}

	id, r := c.ID(), s.Range()
	if ev.IsCompletionTrigger() {
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.TriggerCodeCompletion(ctx, e.id, id, r.Start)
		}
	}
	if text := ev.TypedText(); text != "" {
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.ProcessTypedText(ctx, e.id, id, r, text)
		}
	}
	return nil
}

func (e *Editor) deleteRange(c *celltree.Cell, r protocol.Range) request {
	id := c.ID()
	return func(ctx context.Context) (*protocol.EditorUpdate, error) {
		res, err := e.service.ReplaceText(ctx, e.id, id, r, "", true)
		return res.Update, err
	}
}

// deleteCell deletes the structure around c. The caret returns to where c
// was unless the backend placed it.
func (e *Editor) deleteCell(c *celltree.Cell, forward bool) request {
	id := c.ID()
	saved := protocol.SaveCaretPosition(c)
	return func(ctx context.Context) (*protocol.EditorUpdate, error) {
		u, err := e.service.ExecuteDelete(ctx, e.id, id, forward)
		if err != nil || u == nil {
			return u, err
		}
		if u.Selection == nil {
			u = u.WithSelection(saved)
		}
		return u, nil
	}
}

// extendLocked grows a caret into a selection of the nearest selectable
// cell containing both from and to.
func (e *Editor) extendLocked(from, to *celltree.Cell, left bool, prev Selection) {
	common := celltree.CommonAncestor(from, to)
	if common == nil {
		return
	}
	if a := selectableAncestor(common, true); a != nil {
		e.selectLocked(SelectCell(a, left, prev))
	}
}

// cellKey handles ev for the cell selection s. Must run with e.mu held.
func (e *Editor) cellKey(s CellSelection, ev input.KeyEvent) request {
	c, err := e.tree.Cell(s.Cell)
	if err != nil {
		return nil
	}
	switch ev.Key {
	case input.KeyUp:
		if ev.Modifiers.HasMeta() {
			if a := selectableAncestor(c, false); a != nil {
				e.selectLocked(SelectCell(a, s.Left, s))
			}
			return nil
		}
		if inner, ok := s.innerCaret(); ok {
			if up, ok := e.tree.verticalCaret(inner, false); ok {
				e.selectLocked(up)
			}
		}
		return nil

	case input.KeyDown:
		if ev.Modifiers == input.ModMeta && s.Previous != nil {
			if prev := e.tree.revalidate(s.Previous); prev != nil {
				e.selectLocked(prev)
			}
			return nil
		}
		if inner, ok := s.innerCaret(); ok {
			if down, ok := e.tree.verticalCaret(inner, true); ok {
				e.selectLocked(down)
			}
		}
		return nil

	case input.KeyLeft, input.KeyRight:
		left := ev.Key == input.KeyLeft
		if ev.Modifiers == input.ModShift {
			if left == s.Left {
				if a := selectableAncestor(c, false); a != nil {
					e.selectLocked(SelectCell(a, s.Left, s))
				}
			} else if s.Previous != nil {
				if prev := e.tree.revalidate(s.Previous); prev != nil {
					e.selectLocked(prev)
				}
			}
			return nil
		}
		if inner, ok := s.innerCaret(); ok {
			if ic, err := e.tree.Cell(inner.Cell); err == nil {
				e.selectLocked(Caret(ic, min(inner.Start, maxCaret(ic))))
			}
			return nil
		}
		targets := e.tree.tabTargets(c)
		if len(targets) == 0 {
			return nil
		}
		if left {
			e.selectLocked(Caret(targets[0], 0))
		} else {
			last := targets[len(targets)-1]
			e.selectLocked(Caret(last, maxCaret(last)))
		}
		return nil

	case input.KeyDelete, input.KeyBackspace:
		return e.deleteCell(c, ev.Key == input.KeyDelete)
	}

	anchor := e.tree.firstWord(c)
	if anchor == nil {
		return nil
	}
	id := anchor.ID()
	if ev.IsCompletionTrigger() {
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.TriggerCodeCompletion(ctx, e.id, id, 0)
		}
	}
	if text := ev.TypedText(); text != "" {
		r := protocol.Range{Start: 0, End: maxCaret(anchor)}
		return func(ctx context.Context) (*protocol.EditorUpdate, error) {
			return e.service.ProcessTypedText(ctx, e.id, id, r, text)
		}
	}
	return nil
}

// menuKey offers ev to the open completion menu. handled is false if there
// is no menu or the menu ignores the key.
func (e *Editor) menuKey(ctx context.Context, ev input.KeyEvent) (handled bool, err error) {
	e.mu.Lock()
	m := e.menu
	if m == nil {
		e.mu.Unlock()
		return false, nil
	}
	anchor := m.Anchor

	switch ev.Key {
	case input.KeyUp:
		m.SelectPrevious()
		e.mu.Unlock()
		e.changed()
		return true, nil

	case input.KeyDown:
		m.SelectNext()
		e.mu.Unlock()
		e.changed()
		return true, nil

	case input.KeyLeft, input.KeyRight:
		delta := 1
		if ev.Key == input.KeyLeft {
			delta = -1
		}
		m.moveCaret(delta)
		pattern := m.pattern
		e.mu.Unlock()
		return true, e.updateEntries(ctx, anchor, pattern)

	case input.KeyEscape:
		e.menu = nil
		e.mu.Unlock()
		e.changed()
		return true, nil

	case input.KeyEnter:
		entry, ok := m.Selected()
		e.mu.Unlock()
		if !ok {
			return true, nil
		}
		return true, e.executeEntry(ctx, m, entry)

	case input.KeyBackspace, input.KeyDelete:
		ok := m.delete(ev.Key == input.KeyBackspace)
		pattern := m.pattern
		e.mu.Unlock()
		if !ok {
			return true, nil
		}
		if err := e.updateEntries(ctx, anchor, pattern); err != nil {
			return true, err
		}
		return true, e.executeSingleMatch(ctx)
	}

	text := ev.TypedText()
	if text == "" {
		e.mu.Unlock()
		return false, nil
	}
	before, rest := m.insert(text)
	pattern, typed := m.pattern, m.textBeforeCaret()
	exact := m.exactMatches(before)
	e.mu.Unlock()
	e.changed()

	if len(exact) == 1 {
		has, err := e.service.HasCodeCompletionActions(ctx, e.id, anchor, typed)
		if err != nil {
			return true, err
		}
		if !has {
			// The text before the typed character named a complete entry
			// and nothing continues it: run the entry and type on.
			if err := e.executeEntry(ctx, m, exact[0]); err != nil {
				return true, err
			}
			return true, e.typeText(ctx, rest)
		}
	}
	if err := e.updateEntries(ctx, anchor, pattern); err != nil {
		return true, err
	}
	return true, e.executeSingleMatch(ctx)
}

func (e *Editor) updateEntries(ctx context.Context, anchor celltree.ID, pattern string) error {
	u, err := e.service.UpdateCodeCompletionActions(ctx, e.id, anchor, pattern)
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

// executeEntry runs entry of menu m and closes m.
func (e *Editor) executeEntry(ctx context.Context, m *CompletionMenu, entry protocol.CompletionEntry) error {
	u, err := e.service.ExecuteCodeCompletionAction(ctx, e.id, entry.ID)
	e.mu.Lock()
	if e.menu == m {
		e.menu = nil
	}
	e.mu.Unlock()
	e.changed()
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

// executeSingleMatch runs the only listed entry if it matches the whole
// pattern.
func (e *Editor) executeSingleMatch(ctx context.Context) error {
	e.mu.Lock()
	m := e.menu
	if m == nil {
		e.mu.Unlock()
		return nil
	}
	entry, ok := m.singleExactMatch()
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return e.executeEntry(ctx, m, entry)
}

// typeText types text at the current caret.
func (e *Editor) typeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	e.mu.Lock()
	s, ok := e.selection.(CaretSelection)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	u, err := e.service.ProcessTypedText(ctx, e.id, s.Cell, s.Range(), text)
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

// handleClick places the caret at the clicked position. X and Y are the
// column and line within the document.
func (e *Editor) handleClick(ev input.MouseEvent) {
	if ev.Button != input.ButtonLeft {
		return
	}
	e.mu.Lock()
	defer e.changed()
	defer e.mu.Unlock()
	line := e.tree.Line(ev.Y)
	if line == nil {
		return
	}
	i := line.WordAt(ev.X)
	if i < 0 {
		return
	}
	if cw, ok := line.Words[i].(*layout.CellWord); ok {
		if c, err := e.tree.Cell(cw.Cell); err == nil {
			pos := textutil.OffsetAt(cw.Text(), ev.X-line.WordColumn(i))
			e.selectLocked(Caret(c, min(pos, maxCaret(c))))
			return
		}
	}
	e.selectClosest(line, ev.X)
}

// selectClosest puts the caret on the cell word of line nearest to x: at
// its start if x is left of it, else at its end.
func (e *Editor) selectClosest(line *layout.TextLine, x int) {
	var best *celltree.Cell
	bestDist, bestStart := -1, 0
	for i, w := range line.Words {
		cw, ok := w.(*layout.CellWord)
		if !ok {
			continue
		}
		c, err := e.tree.Cell(cw.Cell)
		if err != nil {
			continue
		}
		start := line.WordColumn(i)
		end := start + w.Width()
		d := min(abs(x-start), abs(x-end))
		if best == nil || d < bestDist {
			best, bestDist, bestStart = c, d, start
		}
	}
	if best == nil {
		return
	}
	if x <= bestStart {
		e.selectLocked(Caret(best, 0))
	} else {
		e.selectLocked(Caret(best, maxCaret(best)))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
