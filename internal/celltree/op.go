package celltree

import "fmt"

// Op is one recorded cell tree mutation. A BackendTree emits ops in the order
// the mutations happened; a MirrorTree applies them in the same order.
type Op interface {
	fmt.Stringer
	cellOp()
}

// NewCellOp creates a detached cell.
type NewCellOp struct {
	ID ID
}

// NewChildOp creates cell Child as child Index of Parent.
type NewChildOp struct {
	Parent ID
	Index  int
	Child  ID
}

// PropertyChangeOp sets a frontend-visible property.
type PropertyChangeOp struct {
	ID    ID
	Key   string
	Value Value
}

// PropertyRemoveOp removes a frontend-visible property.
type PropertyRemoveOp struct {
	ID  ID
	Key string
}

// MoveOp moves a cell to Index within its current parent.
type MoveOp struct {
	ID    ID
	Index int
}

// MoveToOp moves a cell to Index of a different parent.
type MoveToOp struct {
	ID     ID
	Parent ID
	Index  int
}

// DetachOp removes a cell from its parent without destroying it.
type DetachOp struct {
	ID ID
}

// DeleteOp destroys a cell.
type DeleteOp struct {
	ID ID
}

func (NewCellOp) cellOp()        {}
func (NewChildOp) cellOp()       {}
func (PropertyChangeOp) cellOp() {}
func (PropertyRemoveOp) cellOp() {}
func (MoveOp) cellOp()           {}
func (MoveToOp) cellOp()         {}
func (DetachOp) cellOp()         {}
func (DeleteOp) cellOp()         {}

func (o NewCellOp) String() string { return fmt.Sprintf("new(%d)", o.ID) }
func (o NewChildOp) String() string {
	return fmt.Sprintf("newChild(%d, %d, %d)", o.Parent, o.Index, o.Child)
}
func (o PropertyChangeOp) String() string {
	return fmt.Sprintf("set(%d, %s)", o.ID, o.Key)
}
func (o PropertyRemoveOp) String() string { return fmt.Sprintf("remove(%d, %s)", o.ID, o.Key) }
func (o MoveOp) String() string           { return fmt.Sprintf("move(%d, %d)", o.ID, o.Index) }
func (o MoveToOp) String() string {
	return fmt.Sprintf("moveTo(%d, %d, %d)", o.ID, o.Parent, o.Index)
}
func (o DetachOp) String() string { return fmt.Sprintf("detach(%d)", o.ID) }
func (o DeleteOp) String() string { return fmt.Sprintf("delete(%d)", o.ID) }
