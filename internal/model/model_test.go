package model

import (
	"errors"
	"slices"
	"testing"
)

func testLanguage() (*Language, *Concept, *Concept, *Concept) {
	lang := NewLanguage("test")
	expr := lang.Add(&Concept{Name: "Expr", Abstract: true})
	num := lang.Add(&Concept{Name: "Num", Super: []*Concept{expr}, Properties: []string{"value"}})
	plus := lang.Add(&Concept{
		Name:  "Plus",
		Super: []*Concept{expr},
		Children: []*ChildLink{
			{Name: "left", Target: expr},
			{Name: "right", Target: expr},
		},
	})
	block := lang.Add(&Concept{
		Name:       "Block",
		Children:   []*ChildLink{{Name: "items", Target: expr, Multiple: true}},
		References: []*ReferenceLink{{Name: "main", Target: expr}},
	})
	_ = block
	return lang, expr, num, plus
}

func mustWrite(t *testing.T, m *Memory, fn func() error) {
	t.Helper()
	if err := m.Write(fn); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestConceptHierarchy(t *testing.T) {
	lang, expr, num, plus := testLanguage()

	if !num.IsSubConceptOf(expr) {
		t.Error("Num should extend Expr")
	}
	if expr.IsSubConceptOf(num) {
		t.Error("Expr should not extend Num")
	}
	got := lang.Instantiable(expr)
	if !slices.Equal(got, []*Concept{num, plus}) {
		t.Errorf("Instantiable = %v", got)
	}
	if _, err := num.ChildLink("left"); !errors.Is(err, ErrUnknownLink) {
		t.Errorf("ChildLink(left) on Num: err = %v", err)
	}
}

func TestInheritedLinks(t *testing.T) {
	lang, expr, _, plus := testLanguage()
	named := lang.Add(&Concept{
		Name:       "NamedPlus",
		Super:      []*Concept{plus},
		Properties: []string{"name"},
		Children:   []*ChildLink{{Name: "left", Target: expr}, {Name: "note", Target: expr}},
		References: []*ReferenceLink{{Name: "target", Target: expr}},
	})

	var links []string
	for _, l := range named.AllChildLinks() {
		links = append(links, l.Name)
	}
	if want := []string{"left", "right", "note"}; !slices.Equal(links, want) {
		t.Errorf("AllChildLinks = %v, want %v", links, want)
	}
	if got := named.AllProperties(); !slices.Equal(got, []string{"name"}) {
		t.Errorf("AllProperties = %v", got)
	}
	if got := named.AllReferenceLinks(); len(got) != 1 || got[0].Name != "target" {
		t.Errorf("AllReferenceLinks = %v", got)
	}
	if got := plus.AllChildLinks(); len(got) != 2 {
		t.Errorf("Plus links = %v", got)
	}
}

func TestMutationOutsideWrite(t *testing.T) {
	_, _, num, _ := testLanguage()
	m := NewMemory()

	if _, err := m.AddRoot(num); !errors.Is(err, ErrNotWriting) {
		t.Fatalf("AddRoot outside Write: err = %v", err)
	}

	var id NodeID
	mustWrite(t, m, func() error {
		n, err := m.AddRoot(num)
		id = n.ID()
		return err
	})
	n, err := m.Writable(id)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.SetProperty("value", "1"); !errors.Is(err, ErrNotWriting) {
		t.Errorf("SetProperty outside Write: err = %v", err)
	}
}

func TestChildren(t *testing.T) {
	lang, _, num, plus := testLanguage()
	block, _ := lang.Concept("Block")
	m := NewMemory()

	var root WritableNode
	mustWrite(t, m, func() error {
		var err error
		root, err = m.AddRoot(block)
		if err != nil {
			return err
		}
		for i, v := range []string{"a", "c"} {
			c, err := root.AddNewChild("items", i, num)
			if err != nil {
				return err
			}
			if err := c.SetProperty("value", v); err != nil {
				return err
			}
		}
		b, err := root.AddNewChild("items", 1, num)
		if err != nil {
			return err
		}
		return b.SetProperty("value", "b")
	})

	err := m.Read(func() error {
		kids := root.Children("items")
		var values []string
		for i, k := range kids {
			values = append(values, k.Property("value"))
			if k.Index() != i {
				t.Errorf("child %d Index = %d", i, k.Index())
			}
			if k.Role() != "items" || k.Parent().ID() != root.ID() {
				t.Errorf("child %d has role %q parent %v", i, k.Role(), k.Parent())
			}
		}
		if !slices.Equal(values, []string{"a", "b", "c"}) {
			t.Errorf("values = %v", values)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = m.Write(func() error {
		p, err := root.AddNewChild("items", -1, plus)
		if err != nil {
			return err
		}
		if _, err := p.AddNewChild("left", 0, num); err != nil {
			return err
		}
		_, err = p.AddNewChild("left", 0, num)
		return err
	})
	if !errors.Is(err, ErrCardinality) {
		t.Errorf("second child in single link: err = %v", err)
	}
}

func TestRemoveAndReplace(t *testing.T) {
	_, _, num, plus := testLanguage()
	m := NewMemory()

	var p, left WritableNode
	mustWrite(t, m, func() error {
		var err error
		if p, err = m.AddRoot(plus); err != nil {
			return err
		}
		if left, err = p.AddNewChild("left", 0, num); err != nil {
			return err
		}
		_, err = p.AddNewChild("right", 0, num)
		return err
	})

	leftID := left.ID()
	var repl WritableNode
	mustWrite(t, m, func() error {
		var err error
		repl, err = left.ReplaceWith(plus)
		return err
	})
	if _, err := m.Node(leftID); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("replaced node still present: err = %v", err)
	}
	_ = m.Read(func() error {
		kids := p.Children("left")
		if len(kids) != 1 || kids[0].ID() != repl.ID() {
			t.Errorf("left = %v, want replacement", kids)
		}
		return nil
	})

	mustWrite(t, m, func() error { return p.Remove() })
	if got := len(m.nodes); got != 0 {
		t.Errorf("%d nodes left after removing the root", got)
	}
}

func TestMoveChild(t *testing.T) {
	lang, _, num, plus := testLanguage()
	block, _ := lang.Concept("Block")
	m := NewMemory()

	var b, p WritableNode
	var n NodeID
	mustWrite(t, m, func() error {
		var err error
		if b, err = m.AddRoot(block); err != nil {
			return err
		}
		if p, err = b.AddNewChild("items", 0, plus); err != nil {
			return err
		}
		c, err := b.AddNewChild("items", 1, num)
		if err != nil {
			return err
		}
		n = c.ID()
		return p.MoveChild("left", 0, n)
	})
	_ = m.Read(func() error {
		if got := len(b.Children("items")); got != 1 {
			t.Errorf("items = %d, want 1", got)
		}
		node, _ := m.Node(n)
		if node.Parent().ID() != p.ID() || node.Role() != "left" {
			t.Errorf("moved node parent = %v role = %q", node.Parent(), node.Role())
		}
		return nil
	})

	err := m.Write(func() error { return p.MoveChild("right", 0, b.ID()) })
	if !errors.Is(err, ErrInvalidMove) {
		t.Errorf("move into own subtree: err = %v", err)
	}
}

func TestReferences(t *testing.T) {
	lang, _, num, _ := testLanguage()
	block, _ := lang.Concept("Block")
	m := NewMemory()

	var b, target WritableNode
	mustWrite(t, m, func() error {
		var err error
		if b, err = m.AddRoot(block); err != nil {
			return err
		}
		if target, err = b.AddNewChild("items", 0, num); err != nil {
			return err
		}
		return b.SetReference("main", target.ID())
	})
	_ = m.Read(func() error {
		if ref := b.Reference("main"); ref == nil || ref.ID() != target.ID() {
			t.Errorf("Reference(main) = %v", ref)
		}
		return nil
	})
	mustWrite(t, m, func() error { return target.Remove() })
	_ = m.Read(func() error {
		if ref := b.Reference("main"); ref != nil {
			t.Errorf("dangling reference resolved to %v", ref)
		}
		return nil
	})
}

func TestSubscribe(t *testing.T) {
	_, _, num, _ := testLanguage()
	m := NewMemory()

	var got []Change
	cancel := m.Subscribe(func(c []Change) { got = append(got, c...) })

	var id NodeID
	mustWrite(t, m, func() error {
		n, err := m.AddRoot(num)
		if err != nil {
			return err
		}
		id = n.ID()
		return n.SetProperty("value", "42")
	})
	want := []Change{
		{Node: id, Feature: FeatureExists},
		{Node: id, Feature: PropertyFeature("value")},
	}
	if !slices.Equal(got, want) {
		t.Errorf("changes = %v, want %v", got, want)
	}
	if dep := want[1].Dependency(); dep != "node:"+string(id)+"/property:value" {
		t.Errorf("Dependency = %q", dep)
	}

	cancel()
	got = nil
	mustWrite(t, m, func() error {
		n, _ := m.Writable(id)
		return n.SetProperty("value", "43")
	})
	if got != nil {
		t.Errorf("cancelled listener received %v", got)
	}
}
