package celltree

import "fmt"

// MirrorTree replays the op log of a BackendTree. It has no other mutation
// API.
type MirrorTree struct {
	*Tree
}

// NewMirrorTree returns a tree containing only the root cell.
func NewMirrorTree() *MirrorTree {
	return &MirrorTree{Tree: newTree()}
}

// ApplyChanges applies ops in order. It stops at the first op that does not
// fit the mirrored tree.
func (m *MirrorTree) ApplyChanges(ops []Op) error {
	for i, op := range ops {
		if err := m.apply(op); err != nil {
			return fmt.Errorf("apply op %d (%v): %w", i, op, err)
		}
	}
	return nil
}

func (m *MirrorTree) apply(op Op) error {
	switch op := op.(type) {
	case NewCellOp:
		_, err := m.createCell(op.ID)
		return err
	case NewChildOp:
		parent, err := m.Cell(op.Parent)
		if err != nil {
			return err
		}
		_, err = m.addChild(parent, op.Index, op.Child)
		return err
	case PropertyChangeOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		info, ok := LookupKey(op.Key)
		if !ok {
			return fmt.Errorf("unknown property key %q", op.Key)
		}
		v, ok := info.Decode(op.Value)
		if !ok {
			return fmt.Errorf("invalid %s value for key %q", op.Value.Kind, op.Key)
		}
		m.setProperty(c, info, v)
		return nil
	case PropertyRemoveOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		m.removeProperty(c, op.Key)
		return nil
	case MoveOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		return m.move(c, op.Index)
	case MoveToOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		parent, err := m.Cell(op.Parent)
		if err != nil {
			return err
		}
		return m.moveTo(c, parent, op.Index)
	case DetachOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		_, err = m.detach(c)
		return err
	case DeleteOp:
		c, err := m.Cell(op.ID)
		if err != nil {
			return err
		}
		return m.delete(c, nil)
	default:
		return fmt.Errorf("unsupported op %T", op)
	}
}
