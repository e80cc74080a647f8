package celltree

import (
	"fmt"
	"slices"
)

// Listener observes mutations of a tree. Changed is called for every cell
// whose properties or children changed; Deleted after a cell was removed
// from the identity table.
type Listener interface {
	Changed(c *Cell)
	Deleted(id ID)
}

// ListenerFuncs adapts two functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnChanged func(c *Cell)
	OnDeleted func(id ID)
}

// Changed implements Listener.
func (l ListenerFuncs) Changed(c *Cell) {
	if l.OnChanged != nil {
		l.OnChanged(c)
	}
}

// Deleted implements Listener.
func (l ListenerFuncs) Deleted(id ID) {
	if l.OnDeleted != nil {
		l.OnDeleted(id)
	}
}

// Tree is the arena shared by BackendTree and MirrorTree. A Tree is not safe
// for concurrent use; BackendTree serializes its update passes and a mirror
// is owned by a single frontend worker.
type Tree struct {
	cells    map[ID]*Cell
	root     *Cell
	detached map[ID]struct{}
	listener Listener

	index map[Reference][]ID
}

func newTree() *Tree {
	t := &Tree{
		cells:    make(map[ID]*Cell),
		detached: make(map[ID]struct{}),
	}
	t.root = t.register(RootID, NoID)
	return t
}

// Root returns the root cell.
func (t *Tree) Root() *Cell { return t.root }

// Cell returns the cell with the given ID.
func (t *Tree) Cell(id ID) (*Cell, error) {
	c, ok := t.cells[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCellNotFound, id)
	}
	return c, nil
}

// Len returns the number of live cells, attached or detached.
func (t *Tree) Len() int { return len(t.cells) }

// SetListener installs l, replacing any previous listener.
func (t *Tree) SetListener(l Listener) { t.listener = l }

func (t *Tree) register(id ID, parent ID) *Cell {
	c := &Cell{tree: t, id: id, parent: parent, props: make(map[string]any)}
	t.cells[id] = c
	return c
}

func (t *Tree) changed(c *Cell) {
	if c == nil {
		return
	}
	if t.listener != nil {
		t.listener.Changed(c)
	}
}

func (t *Tree) createCell(id ID) (*Cell, error) {
	if _, exists := t.cells[id]; exists {
		return nil, fmt.Errorf("celltree: cell %d already exists", id)
	}
	c := t.register(id, NoID)
	t.detached[id] = struct{}{}
	return c, nil
}

func (t *Tree) addChild(parent *Cell, index int, id ID) (*Cell, error) {
	if index < 0 || index > len(parent.children) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(parent.children))
	}
	if _, exists := t.cells[id]; exists {
		return nil, fmt.Errorf("celltree: cell %d already exists", id)
	}
	c := t.register(id, parent.id)
	parent.children = slices.Insert(parent.children, index, id)
	t.invalidateRefs(parent)
	t.changed(parent)
	return c, nil
}

// setProperty stores a decoded value. It reports whether anything changed.
func (t *Tree) setProperty(c *Cell, info *KeyInfo, v any) bool {
	if old, ok := c.props[info.name]; ok && info.equal != nil && info.equal(old, v) {
		return false
	}
	c.props[info.name] = v
	if info == ReferencesKey.info {
		t.invalidateRefs(c)
	}
	t.changed(c)
	return true
}

func (t *Tree) removeProperty(c *Cell, name string) bool {
	if _, ok := c.props[name]; !ok {
		return false
	}
	delete(c.props, name)
	if name == ReferencesKey.info.name {
		t.invalidateRefs(c)
	}
	t.changed(c)
	return true
}

func (t *Tree) move(c *Cell, index int) error {
	p := c.Parent()
	if p == nil {
		return fmt.Errorf("%w: cell %d has no parent", ErrInvalidMove, c.id)
	}
	i := slices.Index(p.children, c.id)
	rest := slices.Delete(slices.Clone(p.children), i, i+1)
	if index < 0 || index > len(rest) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(rest))
	}
	p.children = slices.Insert(rest, index, c.id)
	t.invalidateRefs(p)
	t.changed(p)
	return nil
}

func (t *Tree) moveTo(c *Cell, target *Cell, index int) error {
	if c.IsRoot() {
		return ErrRootImmutable
	}
	if target.id == c.parent {
		return fmt.Errorf("%w: cell %d is already a child of %d", ErrInvalidMove, c.id, target.id)
	}
	for cur := target; cur != nil; cur = cur.Parent() {
		if cur == c {
			return fmt.Errorf("%w: %d is an ancestor of %d", ErrInvalidMove, c.id, target.id)
		}
	}
	if index < 0 || index > len(target.children) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(target.children))
	}
	if old := c.Parent(); old != nil {
		t.invalidateRefs(old)
		t.changed(old)
		old.children = slices.DeleteFunc(old.children, func(id ID) bool { return id == c.id })
	}
	target.children = slices.Insert(target.children, index, c.id)
	c.parent = target.id
	delete(t.detached, c.id)
	t.invalidateRefs(target)
	t.changed(target)
	return nil
}

// detach reports whether c was attached to a parent before the call.
func (t *Tree) detach(c *Cell) (bool, error) {
	if c.IsRoot() {
		return false, ErrRootImmutable
	}
	t.detached[c.id] = struct{}{}
	p := c.Parent()
	if p == nil {
		return false, nil
	}
	t.invalidateRefs(p)
	t.changed(p)
	p.children = slices.DeleteFunc(p.children, func(id ID) bool { return id == c.id })
	c.parent = NoID
	return true, nil
}

// delete removes c and its subtree. The visit callback receives every
// deleted ID, children before their parent.
func (t *Tree) delete(c *Cell, visit func(ID)) error {
	if c.IsRoot() {
		return ErrRootImmutable
	}
	for _, child := range c.Children() {
		if err := t.delete(child, visit); err != nil {
			return err
		}
	}
	if p := c.Parent(); p != nil {
		t.invalidateRefs(p)
		t.changed(p)
		p.children = slices.DeleteFunc(p.children, func(id ID) bool { return id == c.id })
	}
	c.parent = NoID
	delete(t.cells, c.id)
	delete(t.detached, c.id)
	if visit != nil {
		visit(c.id)
	}
	if t.listener != nil {
		t.listener.Deleted(c.id)
	}
	return nil
}
