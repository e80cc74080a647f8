package engine

import (
	"slices"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
)

// Component keeps the cell tree of one opened node in sync with the model.
// A Component is not safe for concurrent use; the service serializes the
// calls of one editor.
type Component struct {
	engine *Engine
	model  model.Model
	root   model.NodeID
	state  *State
	tree   *celltree.BackendTree
	logger *logging.Logger

	nodeCells map[model.NodeID]celltree.ID
	cellNodes map[celltree.ID]model.NodeID
	applied   map[celltree.ID]*Spec

	menu *completion.Menu
}

// ComponentOption configures a Component.
type ComponentOption func(*Component)

// WithState shares st instead of creating a fresh state.
func WithState(st *State) ComponentOption {
	return func(c *Component) { c.state = st }
}

// WithComponentLogger sets the component's logger. It defaults to the
// engine's logger.
func WithComponentLogger(l *logging.Logger) ComponentOption {
	return func(c *Component) { c.logger = l }
}

// Open creates a component showing root. The tree stays empty until the
// first Update.
func (e *Engine) Open(m model.Model, root model.NodeID, opts ...ComponentOption) *Component {
	c := &Component{
		engine:    e,
		model:     m,
		root:      root,
		tree:      celltree.NewBackendTree(),
		logger:    e.logger,
		nodeCells: make(map[model.NodeID]celltree.ID),
		cellNodes: make(map[celltree.ID]model.NodeID),
		applied:   make(map[celltree.ID]*Spec),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state == nil {
		c.state = e.NewState()
	}
	c.tree.SetListener(celltree.ListenerFuncs{OnDeleted: c.cellDeleted})
	return c
}

// Tree returns the backend cell tree.
func (c *Component) Tree() *celltree.BackendTree { return c.tree }

// State returns the editor state.
func (c *Component) State() *State { return c.state }

// Model returns the edited model.
func (c *Component) Model() model.Model { return c.model }

// RootNode returns the opened node.
func (c *Component) RootNode() model.NodeID { return c.root }

// NodeOf returns the node whose root cell is cell.
func (c *Component) NodeOf(cell celltree.ID) (model.NodeID, bool) {
	n, ok := c.cellNodes[cell]
	return n, ok
}

// Update rebuilds the cells from the current model and editor state and
// returns the ops that bring a mirror up to date.
func (c *Component) Update() ([]celltree.Op, error) {
	ops, err := c.tree.RunUpdate(func() error {
		return c.model.Read(c.update)
	})
	if err != nil {
		c.logger.Warn("update of %s: %v", c.root, err)
	}
	return ops, err
}

func (c *Component) update() error {
	root := c.tree.MutableRoot()
	if _, err := c.model.Node(c.root); err != nil {
		return detachFrom(root, 0)
	}
	cell, err := c.nodeCell(c.root)
	if err != nil {
		return err
	}
	if err := c.place(root, cell, 0, nil); err != nil {
		return err
	}
	return detachFrom(root, 1)
}

// detachFrom detaches the children of cell from index n on.
func detachFrom(cell *celltree.MutableCell, n int) error {
	for cell.ChildCount() > n {
		if err := cell.ChildAt(cell.ChildCount() - 1).Detach(); err != nil {
			return err
		}
	}
	return nil
}

// nodeCell returns the reconciled root cell of node id, creating it on
// first use. A new cell stays detached until its parent places it.
func (c *Component) nodeCell(id model.NodeID) (*celltree.MutableCell, error) {
	spec, err := c.engine.CreateSpec(nil, c.state, c.model, id)
	if err != nil {
		return nil, err
	}
	var cell *celltree.MutableCell
	if cid, ok := c.nodeCells[id]; ok {
		if existing, err := c.tree.Cell(cid); err == nil {
			cell = c.tree.Mutable(existing)
		}
	}
	if cell == nil {
		cell = c.tree.NewCell()
		c.nodeCells[id] = cell.ID()
		c.cellNodes[cell.ID()] = id
	}
	if err := c.reconcile(cell, cell, spec); err != nil {
		return nil, err
	}
	return cell, nil
}

// reconcile makes cell match s. Children are matched by index: a local
// spec reuses the cell at its position unless that cell belongs to a node,
// node cells are moved into place, and surplus cells are detached.
func (c *Component) reconcile(owner, cell *celltree.MutableCell, s *Spec) error {
	if c.applied[cell.ID()] != s {
		applyProps(cell, s)
		c.applied[cell.ID()] = s
	}
	for i, ch := range s.Children {
		switch ch := ch.(type) {
		case *Spec:
			child := cell.ChildAt(i)
			if child == nil || c.isNodeCell(child.ID()) {
				var err error
				if child, err = cell.AddNewChild(i); err != nil {
					return err
				}
			}
			if err := c.reconcile(owner, child, ch); err != nil {
				return err
			}
		case ChildNode:
			child, err := c.nodeCell(ch.Node)
			if err != nil {
				return err
			}
			if err := c.place(cell, child, i, owner); err != nil {
				return err
			}
		}
	}
	return detachFrom(cell, len(s.Children))
}

func (c *Component) isNodeCell(id celltree.ID) bool {
	_, ok := c.cellNodes[id]
	return ok
}

// place moves child to index i of parent. If parent lies inside child, as
// after two nodes swapped places, owner is detached first so the move does
// not create a cycle; its own parent places it again.
func (c *Component) place(parent, child *celltree.MutableCell, i int, owner *celltree.MutableCell) error {
	if p := child.Cell.Parent(); p != nil && p.ID() == parent.ID() {
		if child.Index() == i {
			return nil
		}
		return child.Move(i)
	}
	if owner != nil && celltree.IsDescendantOf(parent.Cell, child.Cell) {
		if err := owner.Detach(); err != nil {
			return err
		}
	}
	return child.MoveTo(parent, min(i, parent.ChildCount()))
}

func applyProps(cell *celltree.MutableCell, s *Spec) {
	keep := make(map[string]bool, len(s.props)+1)
	for _, p := range s.props {
		p.set(cell)
		keep[p.info.Name()] = true
	}
	if len(s.Refs) > 0 {
		celltree.Set(cell, celltree.ReferencesKey, slices.Clone(s.Refs))
		keep[celltree.ReferencesKey.Name()] = true
	}
	for _, name := range cell.PropertyNames() {
		if keep[name] {
			continue
		}
		if k, ok := celltree.LookupKey(name); ok {
			cell.Remove(k)
		}
	}
}

func (c *Component) cellDeleted(id celltree.ID) {
	delete(c.applied, id)
	n, ok := c.cellNodes[id]
	if !ok {
		return
	}
	delete(c.cellNodes, id)
	if c.nodeCells[n] == id {
		delete(c.nodeCells, n)
	}
	c.engine.memo.Forget(specKey(c.state, n))
}

// Close drops the cached specs of the component.
func (c *Component) Close() {
	for n := range c.nodeCells {
		c.engine.memo.Forget(specKey(c.state, n))
	}
	c.state.Reset()
	c.menu = nil
}

// LoadCompletionEntries opens a completion menu over providers and returns
// the entries matching pattern.
func (c *Component) LoadCompletionEntries(providers []completion.Provider, pattern string) ([]completion.Action, error) {
	var entries []completion.Action
	err := c.model.Read(func() error {
		c.menu = completion.NewMenu(nil, providers...)
		var err error
		entries, err = c.menu.Update(pattern)
		return err
	})
	return entries, err
}

// CompletionMenu returns the menu opened last, or nil.
func (c *Component) CompletionMenu() *completion.Menu { return c.menu }
