package celltree

import (
	"slices"
	"sort"
	"strconv"
	"sync/atomic"
)

// ID identifies a cell. IDs are never reused within a process.
type ID int64

// RootID is the ID of the root cell of every tree, so that a mirror tree's
// root matches the backend root it mirrors.
const RootID ID = 1

// NoID is the zero ID, used for "no parent".
const NoID ID = 0

var lastID atomic.Int64

func init() {
	lastID.Store(int64(RootID))
}

func newID() ID {
	return ID(lastID.Add(1))
}

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Cell is a node of a cell tree. The zero value is not usable; cells are
// created by their tree. Cell exposes only reads; mutations go through
// BackendTree.Mutable or MirrorTree.ApplyChanges.
type Cell struct {
	tree     *Tree
	id       ID
	parent   ID
	children []ID
	props    map[string]any

	refs      []refEntry
	refsValid bool
}

// ID returns the cell's identity.
func (c *Cell) ID() ID { return c.id }

// Tree returns the tree that owns the cell.
func (c *Cell) Tree() *Tree { return c.tree }

// Type returns the cell type.
func (c *Cell) Type() CellType { return Get(c, TypeKey) }

// IsRoot reports whether c is its tree's root.
func (c *Cell) IsRoot() bool { return c.id == RootID }

// Parent returns the parent cell, or nil for the root and detached cells.
func (c *Cell) Parent() *Cell {
	if c == nil || c.parent == NoID {
		return nil
	}
	return c.tree.cells[c.parent]
}

// Children returns the children in order. The returned slice is a copy.
func (c *Cell) Children() []*Cell {
	out := make([]*Cell, 0, len(c.children))
	for _, id := range c.children {
		out = append(out, c.tree.cells[id])
	}
	return out
}

// ChildCount returns the number of children.
func (c *Cell) ChildCount() int { return len(c.children) }

// ChildAt returns the child at index i, or nil.
func (c *Cell) ChildAt(i int) *Cell {
	if i < 0 || i >= len(c.children) {
		return nil
	}
	return c.tree.cells[c.children[i]]
}

// Index returns the position of c within its parent, or 0 without a parent.
func (c *Cell) Index() int {
	p := c.Parent()
	if p == nil {
		return 0
	}
	if i := slices.Index(p.children, c.id); i >= 0 {
		return i
	}
	return 0
}

// IsAttached reports whether c reaches the root through parent links.
func (c *Cell) IsAttached() bool {
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.IsRoot() {
			return true
		}
	}
	return false
}

// Has reports whether the cell sets k explicitly.
func (c *Cell) Has(k AnyKey) bool {
	_, ok := c.props[k.Info().Name()]
	return ok
}

// PropertyNames returns the names of all set properties, sorted.
func (c *Cell) PropertyNames() []string {
	names := make([]string, 0, len(c.props))
	for name := range c.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// References returns the cell's logical references.
func (c *Cell) References() []Reference {
	return Get(c, ReferencesKey)
}

func (c *Cell) String() string { return c.id.String() }
