package frontend

import (
	"cmp"
	"slices"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/protocol"
)

// ResolvePolicy turns a caret policy into a caret on the current tree. ok
// is false if none of the cells the policy names is shown.
func (t *Tree) ResolvePolicy(p protocol.CaretPolicy) (CaretSelection, bool) {
	switch p := p.(type) {
	case protocol.CaretPositionPolicy:
		return t.resolvePreferred(p)
	case protocol.PolicyWithIndex:
		s, ok := t.resolvePreferred(p.Policy)
		if !ok {
			return s, false
		}
		c, err := t.Cell(s.Cell)
		if err != nil {
			return CaretSelection{}, false
		}
		n := maxCaret(c)
		return Caret(c, max(0, min(p.Offset(n), n))), true
	case protocol.SavedCaretPosition:
		return t.resolveSaved(p)
	default:
		return CaretSelection{}, false
	}
}

// resolvePreferred places the caret at the end of the best shown cell in
// the subtrees of the preferred cells. Tab targets win over other cells,
// and fewer avoided ancestors win over both.
func (t *Tree) resolvePreferred(p protocol.CaretPositionPolicy) (CaretSelection, bool) {
	type candidate struct {
		cell    *celltree.Cell
		tab     bool
		avoided int
	}
	var candidates []candidate
	seen := make(map[celltree.ID]struct{})
	for _, root := range t.mirror.ResolveAll(p.Preferred) {
		for c := range celltree.Descendants(root, true) {
			if _, dup := seen[c.ID()]; dup || !t.IsShown(c) {
				continue
			}
			seen[c.ID()] = struct{}{}
			cand := candidate{cell: c, tab: celltree.Get(c, celltree.TabTargetKey)}
			for a := range celltree.Ancestors(c, true) {
				if p.IsAvoided(a.References()) {
					cand.avoided++
				}
			}
			candidates = append(candidates, cand)
		}
	}
	if len(candidates) == 0 {
		return CaretSelection{}, false
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.avoided, b.avoided); c != 0 {
			return c
		}
		switch {
		case a.tab && !b.tab:
			return -1
		case b.tab && !a.tab:
			return 1
		}
		return 0
	})
	best := candidates[0].cell
	return Caret(best, maxCaret(best)), true
}

// resolveSaved restores a caret near a cell that may no longer exist: the
// cell itself, else the last shown cell between the saved neighbours, else
// the end of the left neighbour or the start of the right one.
func (t *Tree) resolveSaved(s protocol.SavedCaretPosition) (CaretSelection, bool) {
	if s.Selected != nil {
		for _, c := range t.Resolve(s.Selected) {
			if t.IsShown(c) {
				return Caret(c, maxCaret(c)), true
			}
		}
	}
	left := t.firstResolved(s.Previous)
	right := t.firstResolved(s.Next)
	if left != nil && right != nil {
		var between *celltree.Cell
		for c := range celltree.NextCells(left) {
			if c == right {
				break
			}
			if celltree.IsLeaf(c) && t.IsShown(c) {
				between = c
			}
		}
		if between != nil {
			return Caret(between, maxCaret(between)), true
		}
	}
	if left != nil && t.IsShown(left) {
		return Caret(left, maxCaret(left)), true
	}
	if right != nil && t.IsShown(right) {
		return Caret(right, 0), true
	}
	return CaretSelection{}, false
}

func (t *Tree) firstResolved(refs []celltree.Reference) *celltree.Cell {
	for _, ref := range refs {
		if cells := t.Resolve(ref); len(cells) > 0 {
			return cells[0]
		}
	}
	return nil
}
