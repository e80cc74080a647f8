package celltree

type refEntry struct {
	ref Reference
	id  ID
}

// invalidateRefs drops the cached reference list of c and its ancestors.
// A cell with a valid cache never has an ancestor with a valid cache built
// from stale data, so the walk stops at the first already invalid cell.
func (t *Tree) invalidateRefs(c *Cell) {
	for cur := c; cur != nil && cur.refsValid; cur = cur.Parent() {
		cur.refsValid = false
		cur.refs = nil
	}
	if !t.root.refsValid {
		t.index = nil
	}
}

// refList returns the (reference, id) pairs of c's subtree in tree order,
// recomputing only subtrees whose cache was invalidated.
func (t *Tree) refList(c *Cell) []refEntry {
	if c.refsValid {
		return c.refs
	}
	var out []refEntry
	for _, ref := range c.References() {
		out = append(out, refEntry{ref: ref, id: c.id})
	}
	for _, child := range c.Children() {
		out = append(out, t.refList(child)...)
	}
	c.refs = out
	c.refsValid = true
	return out
}

func (t *Tree) updateIndex() {
	if t.index != nil && t.root.refsValid {
		return
	}
	entries := t.refList(t.root)
	index := make(map[Reference][]ID, len(entries))
	for _, e := range entries {
		index[e.ref] = append(index[e.ref], e.id)
	}
	t.index = index
}

// Resolve returns the attached cells carrying ref, in tree order. A reference
// that no longer resolves yields an empty result.
func (t *Tree) Resolve(ref Reference) []*Cell {
	t.updateIndex()
	ids := t.index[ref]
	out := make([]*Cell, 0, len(ids))
	for _, id := range ids {
		if c, ok := t.cells[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ResolveAll returns the cells of all refs without duplicates, ordered by
// the position of the first reference that resolved them.
func (t *Tree) ResolveAll(refs []Reference) []*Cell {
	seen := make(map[ID]struct{})
	var out []*Cell
	for _, ref := range refs {
		for _, c := range t.Resolve(ref) {
			if _, dup := seen[c.id]; dup {
				continue
			}
			seen[c.id] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
