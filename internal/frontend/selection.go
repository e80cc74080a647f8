package frontend

import (
	"fmt"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/layout"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// Selection is a CaretSelection or a CellSelection.
type Selection interface {
	fmt.Stringer
	// SelectedCell returns the cell the selection is in.
	SelectedCell() celltree.ID
	selection()
}

// noDesiredX marks a caret without a remembered column.
const noDesiredX = -1

// CaretSelection is a caret, or a text range from Start to End, within one
// text cell. Offsets count grapheme clusters of the cell's selectable text.
// DesiredX is the column vertical movement aims for.
type CaretSelection struct {
	Cell     celltree.ID
	Start    int
	End      int
	DesiredX int

	// refs lets the caret find its cell again after the cell was rebuilt.
	refs []celltree.Reference
}

// Caret returns a caret at pos of c.
func Caret(c *celltree.Cell, pos int) CaretSelection {
	return CaretSelection{Cell: c.ID(), Start: pos, End: pos, DesiredX: noDesiredX, refs: c.References()}
}

// CaretRange returns a selection of [start, end) of c. end is where the
// caret is.
func CaretRange(c *celltree.Cell, start, end int) CaretSelection {
	s := Caret(c, end)
	s.Start = start
	return s
}

// SelectedCell implements Selection.
func (s CaretSelection) SelectedCell() celltree.ID { return s.Cell }

// Range returns the selected range in ascending order.
func (s CaretSelection) Range() protocol.Range {
	return protocol.Range{Start: s.Start, End: s.End}.Normalize()
}

// IsEmpty reports whether nothing but a caret is selected.
func (s CaretSelection) IsEmpty() bool { return s.Start == s.End }

func (s CaretSelection) String() string {
	if s.IsEmpty() {
		return fmt.Sprintf("caret(%d@%d)", s.Cell, s.End)
	}
	return fmt.Sprintf("caret(%d@%d..%d)", s.Cell, s.Start, s.End)
}

// CellSelection selects a whole cell. Left records the direction the
// selection grew in; Previous is the selection it grew from.
type CellSelection struct {
	Cell     celltree.ID
	Left     bool
	Previous Selection

	refs []celltree.Reference
}

// SelectCell returns a selection of c.
func SelectCell(c *celltree.Cell, left bool, previous Selection) CellSelection {
	return CellSelection{Cell: c.ID(), Left: left, Previous: previous, refs: c.References()}
}

// SelectedCell implements Selection.
func (s CellSelection) SelectedCell() celltree.ID { return s.Cell }

func (s CellSelection) String() string {
	return fmt.Sprintf("cell(%d)", s.Cell)
}

// innerCaret returns the caret the selection was grown from, if any.
func (s CellSelection) innerCaret() (CaretSelection, bool) {
	var cur Selection = s
	for {
		switch sel := cur.(type) {
		case CellSelection:
			if sel.Previous == nil {
				return CaretSelection{}, false
			}
			cur = sel.Previous
		case CaretSelection:
			return sel, true
		default:
			return CaretSelection{}, false
		}
	}
}

func (CaretSelection) selection() {}
func (CellSelection) selection()  {}

// maxCaret returns the caret offset at the end of c's selectable text.
func maxCaret(c *celltree.Cell) int {
	text, _ := layout.SelectableText(c)
	return textutil.Len(text)
}

// revalidate returns sel adapted to the current tree: unchanged if its cell
// is still shown, else moved to a cell carrying one of its references, else
// nil.
func (t *Tree) revalidate(sel Selection) Selection {
	switch s := sel.(type) {
	case CaretSelection:
		c := t.find(s.Cell, s.refs, true)
		if c == nil {
			return nil
		}
		n := maxCaret(c)
		out := s
		out.Cell = c.ID()
		out.refs = c.References()
		out.Start = min(s.Start, n)
		out.End = min(s.End, n)
		return out
	case CellSelection:
		c := t.find(s.Cell, s.refs, false)
		if c == nil {
			return nil
		}
		out := s
		out.Cell = c.ID()
		out.refs = c.References()
		if s.Previous != nil {
			out.Previous = t.revalidate(s.Previous)
		}
		return out
	default:
		return nil
	}
}

// find returns cell id if it is still usable, else the first cell that
// carries one of refs. shown requires the cell to be a word of the layout.
func (t *Tree) find(id celltree.ID, refs []celltree.Reference, shown bool) *celltree.Cell {
	usable := func(c *celltree.Cell) bool {
		if shown {
			return t.IsShown(c)
		}
		return c.IsAttached()
	}
	if c, err := t.Cell(id); err == nil && usable(c) {
		return c
	}
	for _, ref := range refs {
		for _, c := range t.Resolve(ref) {
			if usable(c) {
				return c
			}
		}
	}
	return nil
}

// caretX returns the absolute column of the caret.
func (t *Tree) caretX(s CaretSelection) (int, bool) {
	c, err := t.Cell(s.Cell)
	if err != nil {
		return 0, false
	}
	p, ok := t.Position(s.Cell)
	if !ok {
		return 0, false
	}
	return p.Column + textutil.ColumnOf(layout.VisibleText(c), s.End), true
}

// lineCaret returns the caret on line that best matches column x: inside
// the word containing x, else at the start of the first word right of x,
// else at the end of the last word.
func (t *Tree) lineCaret(line *layout.TextLine, x int) (CaretSelection, bool) {
	col := line.Indent * layout.IndentWidth
	var last *celltree.Cell
	for _, w := range line.Words {
		start := col
		col += w.Width()
		cw, ok := w.(*layout.CellWord)
		if !ok {
			continue
		}
		c, err := t.Cell(cw.Cell)
		if err != nil {
			continue
		}
		last = c
		if x < start {
			return withDesiredX(Caret(c, 0), x), true
		}
		if x <= col {
			pos := min(textutil.OffsetAt(cw.Text(), x-start), maxCaret(c))
			return withDesiredX(Caret(c, pos), x), true
		}
	}
	if last == nil {
		return CaretSelection{}, false
	}
	return withDesiredX(Caret(last, maxCaret(last)), x), true
}

func withDesiredX(s CaretSelection, x int) CaretSelection {
	s.DesiredX = x
	return s
}

// verticalCaret moves s to the nearest line above or below that has a
// cell word.
func (t *Tree) verticalCaret(s CaretSelection, down bool) (CaretSelection, bool) {
	p, ok := t.Position(s.Cell)
	if !ok {
		return CaretSelection{}, false
	}
	x := s.DesiredX
	if x == noDesiredX {
		if x, ok = t.caretX(s); !ok {
			return CaretSelection{}, false
		}
	}
	step := 1
	if !down {
		step = -1
	}
	for i := p.Line + step; i >= 0 && i < t.Lines(); i += step {
		if next, ok := t.lineCaret(t.Line(i), x); ok {
			return next, true
		}
	}
	return CaretSelection{}, false
}

// selectableAncestor returns the nearest cell from c upwards that can be
// selected as a whole.
func selectableAncestor(c *celltree.Cell, includeSelf bool) *celltree.Cell {
	for a := range celltree.Ancestors(c, includeSelf) {
		if celltree.Get(a, celltree.SelectableKey) {
			return a
		}
	}
	return nil
}

// tabTargets returns the shown tab target cells of c's subtree.
func (t *Tree) tabTargets(c *celltree.Cell) []*celltree.Cell {
	var out []*celltree.Cell
	for d := range celltree.Descendants(c, true) {
		if celltree.Get(d, celltree.TabTargetKey) && t.IsShown(d) {
			out = append(out, d)
		}
	}
	return out
}

// firstWord returns the first shown text cell of c's subtree.
func (t *Tree) firstWord(c *celltree.Cell) *celltree.Cell {
	for d := range celltree.Descendants(c, true) {
		if t.IsShown(d) {
			return d
		}
	}
	return nil
}

// selectedText returns the text covered by sel.
func (t *Tree) selectedText(sel Selection) string {
	switch s := sel.(type) {
	case CaretSelection:
		c, err := t.Cell(s.Cell)
		if err != nil {
			return ""
		}
		text, _ := layout.SelectableText(c)
		r := s.Range()
		return textutil.Slice(text, r.Start, r.End)
	case CellSelection:
		c, err := t.Cell(s.Cell)
		if err != nil {
			return ""
		}
		return t.Layout(c).String()
	default:
		return ""
	}
}
