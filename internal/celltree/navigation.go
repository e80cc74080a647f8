package celltree

import "iter"

// Ancestors yields the parents of c up to the root, optionally starting
// with c itself.
func Ancestors(c *Cell, includeSelf bool) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		cur := c
		if !includeSelf && cur != nil {
			cur = cur.Parent()
		}
		for ; cur != nil; cur = cur.Parent() {
			if !yield(cur) {
				return
			}
		}
	}
}

// Descendants yields the subtree of c in pre-order.
func Descendants(c *Cell, includeSelf bool) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		if includeSelf {
			if !yield(c) {
				return
			}
		}
		descend(c, false, yield)
	}
}

// descend walks the children of c depth-first; reverse walks them last to
// first. It returns false once yield asked to stop.
func descend(c *Cell, reverse bool, yield func(*Cell) bool) bool {
	n := len(c.children)
	for i := 0; i < n; i++ {
		idx := i
		if reverse {
			idx = n - 1 - i
		}
		child := c.tree.cells[c.children[idx]]
		if !yield(child) || !descend(child, reverse, yield) {
			return false
		}
	}
	return true
}

// NextCells yields the cells after c in render order: each following
// sibling with its subtree, then the parent, then the parent's following
// siblings, up to the root.
func NextCells(c *Cell) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for cur := c; cur != nil; {
			p := cur.Parent()
			if p == nil {
				return
			}
			for i := cur.Index() + 1; i < len(p.children); i++ {
				s := p.tree.cells[p.children[i]]
				if !yield(s) || !descend(s, false, yield) {
					return
				}
			}
			if !yield(p) {
				return
			}
			cur = p
		}
	}
}

// PreviousCells mirrors NextCells in the opposite direction: each preceding
// sibling followed by its subtree in reverse, then the parent.
func PreviousCells(c *Cell) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for cur := c; cur != nil; {
			p := cur.Parent()
			if p == nil {
				return
			}
			for i := cur.Index() - 1; i >= 0; i-- {
				s := p.tree.cells[p.children[i]]
				if !yield(s) || !descend(s, true, yield) {
					return
				}
			}
			if !yield(p) {
				return
			}
			cur = p
		}
	}
}

// FirstLeaf returns the leftmost leaf of c's subtree.
func FirstLeaf(c *Cell) *Cell {
	for len(c.children) > 0 {
		c = c.tree.cells[c.children[0]]
	}
	return c
}

// LastLeaf returns the rightmost leaf of c's subtree.
func LastLeaf(c *Cell) *Cell {
	for len(c.children) > 0 {
		c = c.tree.cells[c.children[len(c.children)-1]]
	}
	return c
}

// IsLeaf reports whether c has no children.
func IsLeaf(c *Cell) bool { return len(c.children) == 0 }

// NextLeaf returns the first leaf after c that satisfies pred, or nil.
func NextLeaf(c *Cell, pred func(*Cell) bool) *Cell {
	for n := range NextCells(c) {
		if IsLeaf(n) && (pred == nil || pred(n)) {
			return n
		}
	}
	return nil
}

// PreviousLeaf returns the first leaf before c that satisfies pred, or nil.
func PreviousLeaf(c *Cell, pred func(*Cell) bool) *Cell {
	for n := range PreviousCells(c) {
		if IsLeaf(n) && (pred == nil || pred(n)) {
			return n
		}
	}
	return nil
}

// CommonAncestor returns the deepest cell that is a or b or an ancestor of
// both, or nil if they are in different trees or detached subtrees.
func CommonAncestor(a, b *Cell) *Cell {
	seen := make(map[ID]struct{})
	for x := range Ancestors(a, true) {
		seen[x.id] = struct{}{}
	}
	for y := range Ancestors(b, true) {
		if _, ok := seen[y.id]; ok && y.tree == a.tree {
			return y
		}
	}
	return nil
}

// IsDescendantOf reports whether c is ancestor or lies in its subtree.
func IsDescendantOf(c, ancestor *Cell) bool {
	for x := range Ancestors(c, true) {
		if x == ancestor {
			return true
		}
	}
	return false
}
