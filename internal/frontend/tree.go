package frontend

import (
	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/layout"
)

// Tree is a mirrored cell tree with a layout cache per cell. A change to a
// cell drops the cached layout of the cell and of every ancestor, since a
// descendant can move the line breaks of everything above it.
type Tree struct {
	mirror *celltree.MirrorTree
	cache  map[celltree.ID]*layout.LayoutedText

	// words indexes the cell words of the last root layout.
	words     *wordIndex
	wordsRoot *layout.LayoutedText
}

// NewTree returns an empty mirror.
func NewTree() *Tree {
	t := &Tree{
		mirror: celltree.NewMirrorTree(),
		cache:  make(map[celltree.ID]*layout.LayoutedText),
	}
	t.mirror.SetListener(celltree.ListenerFuncs{
		OnChanged: t.invalidate,
		OnDeleted: func(id celltree.ID) { delete(t.cache, id) },
	})
	return t
}

// ApplyChanges replays backend ops.
func (t *Tree) ApplyChanges(ops []celltree.Op) error {
	return t.mirror.ApplyChanges(ops)
}

// Root returns the root cell.
func (t *Tree) Root() *celltree.Cell { return t.mirror.Root() }

// Cell returns the cell with the given ID.
func (t *Tree) Cell(id celltree.ID) (*celltree.Cell, error) { return t.mirror.Cell(id) }

// Resolve returns the attached cells carrying ref.
func (t *Tree) Resolve(ref celltree.Reference) []*celltree.Cell { return t.mirror.Resolve(ref) }

func (t *Tree) invalidate(c *celltree.Cell) {
	for cur := c; cur != nil; cur = cur.Parent() {
		delete(t.cache, cur.ID())
	}
}

// Layout returns the layout of c, computing only what is not cached.
func (t *Tree) Layout(c *celltree.Cell) *layout.LayoutedText {
	if lt, ok := t.cache[c.ID()]; ok {
		return lt
	}
	lt := layout.Layout(c, t.Layout)
	t.cache[c.ID()] = lt
	return lt
}

// RootLayout returns the layout of the whole tree.
func (t *Tree) RootLayout() *layout.LayoutedText { return t.Layout(t.Root()) }

// ClearLayoutCache drops every cached layout.
func (t *Tree) ClearLayoutCache() {
	clear(t.cache)
	t.words, t.wordsRoot = nil, nil
}

// wordIndex locates the cell words of a root layout.
type wordIndex struct {
	positions map[celltree.ID]layout.Position
	order     []celltree.ID
}

func (t *Tree) index() *wordIndex {
	root := t.RootLayout()
	if t.words != nil && t.wordsRoot == root {
		return t.words
	}
	idx := &wordIndex{positions: root.CellPositions()}
	for _, line := range root.Lines {
		for _, w := range line.Words {
			if cw, ok := w.(*layout.CellWord); ok {
				idx.order = append(idx.order, cw.Cell)
			}
		}
	}
	t.words, t.wordsRoot = idx, root
	return idx
}

// Position returns where c is shown. ok is false for cells that are not a
// word of the root layout.
func (t *Tree) Position(id celltree.ID) (layout.Position, bool) {
	p, ok := t.index().positions[id]
	return p, ok
}

// IsShown reports whether c is a word of the root layout.
func (t *Tree) IsShown(c *celltree.Cell) bool {
	_, ok := t.Position(c.ID())
	return ok
}

// adjacentWord returns the next (or previous) cell word after id in render
// order that takes a caret.
func (t *Tree) adjacentWord(id celltree.ID, next bool) *celltree.Cell {
	idx := t.index()
	pos := -1
	for i, w := range idx.order {
		if w == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}
	step := 1
	if !next {
		step = -1
	}
	for i := pos + step; i >= 0 && i < len(idx.order); i += step {
		c, err := t.Cell(idx.order[i])
		if err != nil {
			continue
		}
		if _, ok := layout.SelectableText(c); ok {
			return c
		}
	}
	return nil
}

// Lines returns the number of lines of the root layout.
func (t *Tree) Lines() int { return len(t.RootLayout().Lines) }

// Line returns line i of the root layout, or nil.
func (t *Tree) Line(i int) *layout.TextLine {
	lines := t.RootLayout().Lines
	if i < 0 || i >= len(lines) {
		return nil
	}
	return lines[i]
}

// String renders the whole tree.
func (t *Tree) String() string { return t.RootLayout().String() }
