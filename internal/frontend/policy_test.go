package frontend

import (
	"testing"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/protocol"
)

func prop(node, property string) celltree.Reference {
	return celltree.PropertyRef{Node: node, Property: property}
}

func TestResolvePreferredPrefersTabTargets(t *testing.T) {
	b := newBackend(t)
	var target celltree.ID
	b.update(func(root *celltree.MutableCell) {
		g := b.group(root, celltree.NodeRef{Node: "n"})
		b.add(g, "plain")
		tc := b.add(g, "tab")
		celltree.Set(tc, celltree.TabTargetKey, true)
		target = tc.ID()
		b.add(g, "after")
	})

	s, ok := b.tree.ResolvePolicy(protocol.PreferCells(celltree.NodeRef{Node: "n"}))
	if !ok {
		t.Fatal("policy did not resolve")
	}
	if s.Cell != target || s.End != 3 {
		t.Errorf("caret = %v, want end of tab target %d", s, target)
	}
}

func TestResolvePreferredAvoidsCells(t *testing.T) {
	b := newBackend(t)
	var plain celltree.ID
	b.update(func(root *celltree.MutableCell) {
		g := b.group(root, celltree.NodeRef{Node: "n"})
		avoided := b.group(g, celltree.NodeRef{Node: "avoided"})
		tc := b.add(avoided, "tab")
		celltree.Set(tc, celltree.TabTargetKey, true)
		plain = b.add(g, "plain").ID()
	})

	p := protocol.PreferCells(celltree.NodeRef{Node: "n"}).Avoid(celltree.NodeRef{Node: "avoided"})
	s, ok := b.tree.ResolvePolicy(p)
	if !ok {
		t.Fatal("policy did not resolve")
	}
	if s.Cell != plain {
		t.Errorf("caret in %d, want %d outside the avoided subtree", s.Cell, plain)
	}
}

func TestResolvePreferredUnknownRefs(t *testing.T) {
	b := newBackend(t)
	b.update(func(root *celltree.MutableCell) {
		b.add(root, "x", prop("a", "value"))
	})
	if s, ok := b.tree.ResolvePolicy(protocol.PreferCells(prop("missing", "value"))); ok {
		t.Errorf("resolved %v for an unknown reference", s)
	}
}

func TestResolvePolicyWithIndex(t *testing.T) {
	b := newBackend(t)
	b.update(func(root *celltree.MutableCell) {
		b.add(root, "hello", prop("a", "value"))
	})
	refs := []celltree.Reference{prop("a", "value")}

	tests := []struct {
		index int
		want  int
	}{
		{0, 0},
		{2, 2},
		{-1, 5},
		{-3, 3},
		{99, 5},
		{-99, 0},
	}
	for _, tt := range tests {
		s, ok := b.tree.ResolvePolicy(protocol.AtIndex(refs, tt.index))
		if !ok {
			t.Fatalf("index %d did not resolve", tt.index)
		}
		if s.End != tt.want || !s.IsEmpty() {
			t.Errorf("index %d: caret %v, want offset %d", tt.index, s, tt.want)
		}
	}
}

func TestResolveSavedCaretPosition(t *testing.T) {
	b := newBackend(t)
	var left, mid, right celltree.ID
	b.update(func(root *celltree.MutableCell) {
		left = b.add(root, "left", prop("l", "v")).ID()
		mid = b.add(root, "mid", prop("m", "v")).ID()
		right = b.add(root, "right", prop("r", "v")).ID()
	})
	midCell, err := b.tree.Cell(mid)
	if err != nil {
		t.Fatal(err)
	}
	saved := protocol.SaveCaretPosition(midCell)

	s, ok := b.tree.ResolvePolicy(saved)
	if !ok || s.Cell != mid || s.End != 3 {
		t.Fatalf("with the cell present: %v, %v", s, ok)
	}

	// A new cell between the neighbours takes the caret.
	var repl celltree.ID
	b.update(func(root *celltree.MutableCell) {
		if err := b.mutable(mid).Delete(); err != nil {
			t.Fatal(err)
		}
		c, err := root.AddNewChild(1)
		if err != nil {
			t.Fatal(err)
		}
		celltree.Set(c, celltree.TypeKey, celltree.TypeText)
		celltree.Set(c, celltree.TextKey, "new")
		repl = c.ID()
	})
	s, ok = b.tree.ResolvePolicy(saved)
	if !ok || s.Cell != repl || s.End != 3 {
		t.Fatalf("with a replacement between the neighbours: %v, %v (want %d)", s, ok, repl)
	}

	// Nothing in between: end of the left neighbour.
	b.update(func(*celltree.MutableCell) {
		if err := b.mutable(repl).Delete(); err != nil {
			t.Fatal(err)
		}
	})
	s, ok = b.tree.ResolvePolicy(saved)
	if !ok || s.Cell != left || s.End != 4 {
		t.Fatalf("without cells in between: %v, %v", s, ok)
	}

	// Left gone too: start of the right neighbour.
	b.update(func(*celltree.MutableCell) {
		if err := b.mutable(left).Delete(); err != nil {
			t.Fatal(err)
		}
	})
	s, ok = b.tree.ResolvePolicy(saved)
	if !ok || s.Cell != right || s.End != 0 {
		t.Fatalf("without the left neighbour: %v, %v", s, ok)
	}
}

func TestRevalidateFollowsReferences(t *testing.T) {
	b := newBackend(t)
	ref := prop("a", "value")
	var old celltree.ID
	b.update(func(root *celltree.MutableCell) {
		old = b.add(root, "hello", ref).ID()
	})
	c, _ := b.tree.Cell(old)
	sel := CaretRange(c, 1, 4)

	// The cell is rebuilt with a shorter text under the same reference.
	var rebuilt celltree.ID
	b.update(func(root *celltree.MutableCell) {
		if err := b.mutable(old).Delete(); err != nil {
			t.Fatal(err)
		}
		rebuilt = b.add(root, "hi", ref).ID()
	})

	got, ok := b.tree.revalidate(sel).(CaretSelection)
	if !ok {
		t.Fatal("selection was dropped")
	}
	if got.Cell != rebuilt {
		t.Errorf("caret in %d, want rebuilt cell %d", got.Cell, rebuilt)
	}
	if got.Start != 1 || got.End != 2 {
		t.Errorf("range = %d..%d, want clamped 1..2", got.Start, got.End)
	}

	b.update(func(*celltree.MutableCell) {
		if err := b.mutable(rebuilt).Delete(); err != nil {
			t.Fatal(err)
		}
	})
	if s := b.tree.revalidate(sel); s != nil {
		t.Errorf("revalidate = %v, want nil once no cell carries the reference", s)
	}
}

func TestRevalidateCellSelection(t *testing.T) {
	b := newBackend(t)
	var group, leaf celltree.ID
	b.update(func(root *celltree.MutableCell) {
		g := b.group(root, celltree.NodeRef{Node: "g"})
		group = g.ID()
		leaf = b.add(g, "x", prop("g", "x")).ID()
	})
	leafCell, _ := b.tree.Cell(leaf)
	groupCell, _ := b.tree.Cell(group)
	sel := SelectCell(groupCell, false, Caret(leafCell, 1))

	got, ok := b.tree.revalidate(sel).(CellSelection)
	if !ok || got.Cell != group {
		t.Fatalf("revalidate = %v", got)
	}
	inner, ok := got.innerCaret()
	if !ok || inner.Cell != leaf || inner.End != 1 {
		t.Errorf("inner caret = %v, %v", inner, ok)
	}
}
