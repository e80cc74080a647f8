package frontend

import (
	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/layout"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// View is a snapshot of what an editor shows, for renderers.
type View struct {
	Lines  []ViewLine
	Cursor Cursor
	// Marks are the highlighted extents of the selection.
	Marks []Mark
	Menu  *MenuView
}

// ViewLine is one rendered line.
type ViewLine struct {
	Indent int
	Spans  []Span
}

// Span is one word of a line. Spaces between cells have no Cell.
type Span struct {
	Cell        celltree.ID
	Text        string
	Column      int
	Color       string
	Background  string
	Placeholder bool
}

// Cursor is the caret position. Visible is false without a caret.
type Cursor struct {
	Line    int
	Column  int
	Visible bool
}

// Mark is a highlighted column range [From, To) of a line.
type Mark struct {
	Line int
	From int
	To   int
}

// MenuView is an open completion menu anchored below Line at Column.
type MenuView struct {
	Line     int
	Column   int
	Pattern  string
	Caret    int
	Entries  []protocol.CompletionEntry
	Selected int
}

// View returns a snapshot of the editor.
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.view(e.selection, e.menu)
}

func (t *Tree) view(sel Selection, menu *CompletionMenu) View {
	root := t.RootLayout()
	v := View{Lines: make([]ViewLine, len(root.Lines))}
	for li, line := range root.Lines {
		vl := ViewLine{Indent: line.Indent}
		col := line.Indent * layout.IndentWidth
		for _, w := range line.Words {
			span := Span{Text: w.Text(), Column: col}
			if cw, ok := w.(*layout.CellWord); ok {
				span.Cell = cw.Cell
				if c, err := t.Cell(cw.Cell); err == nil {
					span.Placeholder = isPlaceholder(c)
					span.Background = celltree.Get(c, celltree.BackgroundColorKey)
					if span.Placeholder {
						span.Color = celltree.GetInherited(c, celltree.PlaceholderTextColorKey)
					} else {
						span.Color = celltree.GetInherited(c, celltree.TextColorKey)
					}
				}
			}
			vl.Spans = append(vl.Spans, span)
			col += w.Width()
		}
		v.Lines[li] = vl
	}

	switch s := sel.(type) {
	case CaretSelection:
		if x, ok := t.caretX(s); ok {
			p, _ := t.Position(s.Cell)
			v.Cursor = Cursor{Line: p.Line, Column: x, Visible: true}
			if !s.IsEmpty() {
				if c, err := t.Cell(s.Cell); err == nil {
					text := layout.VisibleText(c)
					r := s.Range()
					v.Marks = append(v.Marks, Mark{
						Line: p.Line,
						From: p.Column + textutil.ColumnOf(text, r.Start),
						To:   p.Column + textutil.ColumnOf(text, r.End),
					})
				}
			}
		}
	case CellSelection:
		if c, err := t.Cell(s.Cell); err == nil {
			for d := range celltree.Descendants(c, true) {
				if p, ok := t.Position(d.ID()); ok {
					v.Marks = append(v.Marks, Mark{Line: p.Line, From: p.Column, To: p.End()})
				}
			}
		}
	}

	if menu != nil {
		if p, ok := t.Position(menu.Anchor); ok {
			col := p.Column
			if menu.Position == protocol.CompletionRight {
				col = p.End()
			}
			v.Menu = &MenuView{
				Line:     p.Line,
				Column:   col,
				Pattern:  menu.pattern,
				Caret:    menu.caret,
				Entries:  append([]protocol.CompletionEntry(nil), menu.filtered...),
				Selected: menu.selected,
			}
		}
	}
	return v
}

// isPlaceholder reports whether c shows its placeholder text.
func isPlaceholder(c *celltree.Cell) bool {
	if _, ok := celltree.Lookup(c, celltree.TextReplacementKey); ok {
		return false
	}
	return celltree.Get(c, celltree.TextKey) == ""
}
