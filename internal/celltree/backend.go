package celltree

import (
	"slices"
	"sync"
	"sync/atomic"
)

// BackendTree is the authoritative cell tree. Every mutation through a
// MutableCell is appended to an op log that RunUpdate hands out.
type BackendTree struct {
	*Tree

	mu       sync.Mutex
	updating atomic.Bool
	ops      []Op
}

// NewBackendTree returns a tree containing only the root cell.
func NewBackendTree() *BackendTree {
	return &BackendTree{Tree: newTree()}
}

// MutableCell is the write handle for a backend cell.
type MutableCell struct {
	*Cell
	bt *BackendTree
}

// Mutable returns the write handle for c, which must belong to t.
func (t *BackendTree) Mutable(c *Cell) *MutableCell {
	if c == nil {
		return nil
	}
	return &MutableCell{Cell: c, bt: t}
}

// MutableRoot returns the write handle for the root.
func (t *BackendTree) MutableRoot() *MutableCell {
	return t.Mutable(t.root)
}

// Updating reports whether an update pass is running.
func (t *BackendTree) Updating() bool { return t.updating.Load() }

// RunUpdate runs body as one mutation pass. Cells still detached when body
// returns are deleted. The ops recorded since the previous pass are returned
// in order, also when body fails. Entering RunUpdate while a pass is running
// returns ErrAlreadyUpdating without running body.
func (t *BackendTree) RunUpdate(body func() error) ([]Op, error) {
	if !t.updating.CompareAndSwap(false, true) {
		return nil, ErrAlreadyUpdating
	}
	defer t.updating.Store(false)

	t.mu.Lock()
	defer t.mu.Unlock()

	err := body()
	t.sweep()

	ops := t.ops
	t.ops = nil
	return ops, err
}

// PendingOps returns the number of ops recorded outside of RunUpdate.
func (t *BackendTree) PendingOps() int { return len(t.ops) }

func (t *BackendTree) sweep() {
	pending := make([]ID, 0, len(t.detached))
	for id := range t.detached {
		pending = append(pending, id)
	}
	slices.Sort(pending)
	for _, id := range pending {
		c, ok := t.cells[id]
		if !ok || c.parent != NoID {
			continue
		}
		_ = t.Tree.delete(c, t.recordDelete)
	}
}

func (t *BackendTree) record(op Op) {
	t.ops = append(t.ops, op)
}

func (t *BackendTree) recordDelete(id ID) {
	t.record(DeleteOp{ID: id})
}

// NewCell creates a detached cell. Unless it is attached before the end of
// the current update pass it is deleted by the sweep.
func (t *BackendTree) NewCell() *MutableCell {
	c, _ := t.createCell(newID())
	t.record(NewCellOp{ID: c.id})
	return t.Mutable(c)
}

// Set sets k on c. Setting the current value records nothing.
func Set[T any](c *MutableCell, k Key[T], v T) {
	if !c.bt.setProperty(c.Cell, k.info, v) {
		return
	}
	if k.info.frontend {
		if wire, ok := k.info.Encode(v); ok {
			c.bt.record(PropertyChangeOp{ID: c.id, Key: k.info.name, Value: wire})
		}
	}
}

// Remove unsets k.
func (c *MutableCell) Remove(k AnyKey) {
	info := k.Info()
	if !c.bt.removeProperty(c.Cell, info.name) {
		return
	}
	if info.frontend {
		c.bt.record(PropertyRemoveOp{ID: c.id, Key: info.name})
	}
}

// Parent returns the parent's write handle.
func (c *MutableCell) Parent() *MutableCell {
	return c.bt.Mutable(c.Cell.Parent())
}

// ChildAt returns the write handle of child i, or nil.
func (c *MutableCell) ChildAt(i int) *MutableCell {
	return c.bt.Mutable(c.Cell.ChildAt(i))
}

// AddNewChild creates a new child at index.
func (c *MutableCell) AddNewChild(index int) (*MutableCell, error) {
	child, err := c.bt.addChild(c.Cell, index, newID())
	if err != nil {
		return nil, err
	}
	c.bt.record(NewChildOp{Parent: c.id, Index: index, Child: child.id})
	return c.bt.Mutable(child), nil
}

// Move moves c to index within its parent.
func (c *MutableCell) Move(index int) error {
	if err := c.bt.move(c.Cell, index); err != nil {
		return err
	}
	c.bt.record(MoveOp{ID: c.id, Index: index})
	return nil
}

// MoveTo moves c to index of a different parent. A detached cell that is
// moved is no longer swept.
func (c *MutableCell) MoveTo(parent *MutableCell, index int) error {
	if err := c.bt.moveTo(c.Cell, parent.Cell, index); err != nil {
		return err
	}
	c.bt.record(MoveToOp{ID: c.id, Parent: parent.id, Index: index})
	return nil
}

// Detach removes c from its parent. The cell survives the current update
// pass only if it is attached again before the pass ends.
func (c *MutableCell) Detach() error {
	wasAttached, err := c.bt.detach(c.Cell)
	if err != nil {
		return err
	}
	if wasAttached {
		c.bt.record(DetachOp{ID: c.id})
	}
	return nil
}

// Delete destroys c and its subtree, recording a DeleteOp per cell.
func (c *MutableCell) Delete() error {
	return c.bt.Tree.delete(c.Cell, c.bt.recordDelete)
}
