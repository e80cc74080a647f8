package layout

import (
	"strings"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/textutil"
)

// IndentWidth is the number of columns per indent level.
const IndentWidth = 2

// Layoutable is a word of a TextLine.
type Layoutable interface {
	// Text returns the characters the word occupies on screen.
	Text() string
	// Width returns the display width in columns.
	Width() int
	layoutable()
}

// CellWord is a rendering leaf: the visible text of one text cell.
type CellWord struct {
	Cell  celltree.ID
	text  string
	width int
}

// NewCellWord returns the word for cell id showing text.
func NewCellWord(id celltree.ID, text string) *CellWord {
	return &CellWord{Cell: id, text: text, width: textutil.Width(text)}
}

// Text implements Layoutable.
func (w *CellWord) Text() string { return w.text }

// Width implements Layoutable.
func (w *CellWord) Width() int { return w.width }

func (*CellWord) layoutable() {}

// Space is the boundary word between two adjacent leaves.
type Space struct{}

// Text implements Layoutable.
func (Space) Text() string { return " " }

// Width implements Layoutable.
func (Space) Width() int { return 1 }

func (Space) layoutable() {}

// TextLine is one line of a LayoutedText. Indent is relative to the
// LayoutedText that owns the line.
type TextLine struct {
	Indent int
	Words  []Layoutable
}

// Width returns the display width of the line including its indentation.
func (l *TextLine) Width() int {
	w := l.Indent * IndentWidth
	for _, word := range l.Words {
		w += word.Width()
	}
	return w
}

// String renders the line with its indentation.
func (l *TextLine) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", l.Indent*IndentWidth))
	for _, w := range l.Words {
		b.WriteString(w.Text())
	}
	return b.String()
}

// LayoutedText is the layout of a cell subtree.
//
// NewLineBefore and NoSpaceBefore record requests made before the first word
// of the subtree; they are resolved by whoever appends this text. The After
// flags carry requests made after the last word.
type LayoutedText struct {
	Lines []*TextLine

	NewLineBefore bool
	NoSpaceBefore bool
	NewLineAfter  bool
	NoSpaceAfter  bool
}

// IsEmpty reports whether the text has no words.
func (t *LayoutedText) IsEmpty() bool { return len(t.Lines) == 0 }

// String renders all lines separated by newlines.
func (t *LayoutedText) String() string {
	lines := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}

// Position locates a word within a LayoutedText.
type Position struct {
	Line   int
	Word   int
	Column int
	Width  int
}

// End returns the column after the word.
func (p Position) End() int { return p.Column + p.Width }

// CellPositions returns the position of every cell word, keyed by cell.
func (t *LayoutedText) CellPositions() map[celltree.ID]Position {
	out := make(map[celltree.ID]Position)
	for li, line := range t.Lines {
		col := line.Indent * IndentWidth
		for wi, w := range line.Words {
			if cw, ok := w.(*CellWord); ok {
				out[cw.Cell] = Position{Line: li, Word: wi, Column: col, Width: w.Width()}
			}
			col += w.Width()
		}
	}
	return out
}

// WordAt returns the index of the word on line whose extent contains
// column. Columns in the indentation or past the end resolve to the nearest
// word. It returns -1 for a line without words.
func (l *TextLine) WordAt(column int) int {
	if len(l.Words) == 0 {
		return -1
	}
	col := l.Indent * IndentWidth
	if column < col {
		return 0
	}
	for i, w := range l.Words {
		if column < col+w.Width() {
			return i
		}
		col += w.Width()
	}
	return len(l.Words) - 1
}

// WordColumn returns the column at which word i of the line starts.
func (l *TextLine) WordColumn(i int) int {
	col := l.Indent * IndentWidth
	for j := 0; j < i && j < len(l.Words); j++ {
		col += l.Words[j].Width()
	}
	return col
}
