package engine

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
)

type fixture struct {
	lang                                    *model.Language
	expr, num, plus, block, broken, comment *model.Concept

	m *model.Memory
	e *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{lang: model.NewLanguage("test")}
	f.expr = f.lang.Add(&model.Concept{Name: "Expr", Abstract: true})
	f.num = f.lang.Add(&model.Concept{Name: "Num", Super: []*model.Concept{f.expr}, Properties: []string{"value"}})
	f.plus = f.lang.Add(&model.Concept{
		Name:  "Plus",
		Super: []*model.Concept{f.expr},
		Children: []*model.ChildLink{
			{Name: "left", Target: f.expr},
			{Name: "right", Target: f.expr},
		},
	})
	f.broken = f.lang.Add(&model.Concept{Name: "Broken", Super: []*model.Concept{f.expr}})
	f.block = f.lang.Add(&model.Concept{
		Name:     "Block",
		Children: []*model.ChildLink{{Name: "items", Target: f.expr, Multiple: true}},
	})
	f.comment = f.lang.Add(&model.Concept{Name: "Comment", Properties: []string{"text"}})

	f.m = model.NewMemory()
	f.e = New(f.lang)
	digits := regexp.MustCompile(`^[0-9]+$`)
	f.e.Register(ConceptEditor{Concept: f.num, Build: func(*model.Concept) Template {
		return Property("value").Validate(digits)
	}})
	f.e.Register(ConceptEditor{Concept: f.plus, Build: func(*model.Concept) Template {
		return Collection(Child("left"), Constant("+"), Child("right"))
	}})
	f.e.Register(ConceptEditor{Concept: f.block, Build: func(*model.Concept) Template {
		return Collection(Constant("block"), Child("items").Separator(","))
	}})
	f.e.Register(ConceptEditor{Concept: f.broken, Build: func(*model.Concept) Template {
		return Collection(Constant("broken"), Child("missing"))
	}})
	f.e.Register(ConceptEditor{Concept: f.comment, Build: func(*model.Concept) Template {
		return Collection(Constant("note"), Optional(Constant(":"), Property("text")))
	}})
	cancel := f.m.Subscribe(func(changes []model.Change) { f.e.Invalidate(changes) })
	t.Cleanup(cancel)
	return f
}

func (f *fixture) write(t *testing.T, fn func() error) {
	t.Helper()
	if err := f.m.Write(fn); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

// numbers creates a block holding one Num per value.
func (f *fixture) numbers(t *testing.T, values ...string) (model.NodeID, []model.NodeID) {
	t.Helper()
	var block model.NodeID
	var ids []model.NodeID
	f.write(t, func() error {
		b, err := f.m.AddRoot(f.block)
		if err != nil {
			return err
		}
		block = b.ID()
		for i, v := range values {
			n, err := b.AddNewChild("items", i, f.num)
			if err != nil {
				return err
			}
			if err := n.SetProperty("value", v); err != nil {
				return err
			}
			ids = append(ids, n.ID())
		}
		return nil
	})
	return block, ids
}

func update(t *testing.T, c *Component) []celltree.Op {
	t.Helper()
	ops, err := c.Update()
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return ops
}

func text(c *celltree.Cell) string {
	if r, ok := celltree.Lookup(c, celltree.TextReplacementKey); ok {
		return r
	}
	if s := celltree.Get(c, celltree.TextKey); s != "" {
		return s
	}
	return celltree.Get(c, celltree.PlaceholderTextKey)
}

func render(c *Component) string {
	var words []string
	for d := range celltree.Descendants(c.Tree().Root(), false) {
		if d.Type() == celltree.TypeText {
			words = append(words, text(d))
		}
	}
	return strings.Join(words, " ")
}

func resolve(t *testing.T, c *Component, ref celltree.Reference) *celltree.Cell {
	t.Helper()
	cells := c.Tree().Resolve(ref)
	if len(cells) == 0 {
		t.Fatalf("no cell for %v", ref)
	}
	return cells[0]
}

func TestOpenRendersNodes(t *testing.T) {
	f := newFixture(t)
	block, _ := f.numbers(t, "1", "2")
	c := f.e.Open(f.m, block)
	update(t, c)

	if got, want := render(c), "block 1 , 2"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	if ops := update(t, c); len(ops) != 0 {
		t.Errorf("second update produced %d ops", len(ops))
	}
}

func TestReferenceStability(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1", "2")
	c := f.e.Open(f.m, block)
	update(t, c)

	first := resolve(t, c, celltree.PropertyRef{Node: string(ids[0]), Property: "value"}).ID()
	second := resolve(t, c, celltree.NodeRef{Node: string(ids[1])}).ID()

	f.write(t, func() error {
		w, err := f.m.Writable(ids[1])
		if err != nil {
			return err
		}
		return w.SetProperty("value", "22")
	})
	if !f.e.Memo().Cached(specKey(c.State(), ids[0])) {
		t.Error("spec of the unchanged node was invalidated")
	}
	if f.e.Memo().Cached(specKey(c.State(), ids[1])) {
		t.Error("spec of the changed node is still cached")
	}
	update(t, c)

	if got := resolve(t, c, celltree.PropertyRef{Node: string(ids[0]), Property: "value"}).ID(); got != first {
		t.Errorf("cell of unchanged node changed from %d to %d", first, got)
	}
	if got := resolve(t, c, celltree.NodeRef{Node: string(ids[1])}).ID(); got != second {
		t.Errorf("cell of changed node changed from %d to %d", second, got)
	}
	if got, want := render(c), "block 1 , 22"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}

	// Reordering moves the node cells instead of recreating them.
	f.write(t, func() error {
		w, err := f.m.Writable(block)
		if err != nil {
			return err
		}
		return w.MoveChild("items", 0, ids[1])
	})
	update(t, c)
	if got := resolve(t, c, celltree.NodeRef{Node: string(ids[1])}).ID(); got != second {
		t.Errorf("moved node got a new cell: %d, want %d", got, second)
	}
	if got, want := render(c), "block 22 , 1"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestRemovedNodeCellsAreDeleted(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1", "2")
	c := f.e.Open(f.m, block)
	update(t, c)
	gone := resolve(t, c, celltree.NodeRef{Node: string(ids[1])}).ID()

	f.write(t, func() error {
		w, err := f.m.Writable(ids[1])
		if err != nil {
			return err
		}
		return w.Remove()
	})
	ops := update(t, c)

	if _, err := c.Tree().Cell(gone); err == nil {
		t.Error("cell of removed node still exists")
	}
	var deleted bool
	for _, op := range ops {
		if d, ok := op.(celltree.DeleteOp); ok && d.ID == gone {
			deleted = true
		}
	}
	if !deleted {
		t.Errorf("no DeleteOp for cell %d in %v", gone, ops)
	}
	if _, ok := c.NodeOf(gone); ok {
		t.Error("deleted cell still mapped to its node")
	}
}

func TestTemplateErrorCell(t *testing.T) {
	f := newFixture(t)
	var block model.NodeID
	var broken model.NodeID
	f.write(t, func() error {
		b, err := f.m.AddRoot(f.block)
		if err != nil {
			return err
		}
		block = b.ID()
		n, err := b.AddNewChild("items", 0, f.broken)
		if err != nil {
			return err
		}
		broken = n.ID()
		_, err = b.AddNewChild("items", 1, f.num)
		return err
	})
	c := f.e.Open(f.m, block)
	update(t, c)

	cell := resolve(t, c, celltree.NodeRef{Node: string(broken)})
	if got := celltree.Get(cell, celltree.TextKey); !strings.HasPrefix(got, "<ERROR: ") {
		t.Errorf("error cell text = %q", got)
	}
	if got := celltree.Get(cell, celltree.TextColorKey); got != "red" {
		t.Errorf("error cell color = %q", got)
	}
	if got := render(c); !strings.HasSuffix(got, ", <no value>") {
		t.Errorf("sibling after the error cell not rendered: %q", got)
	}
}

func TestTemplatePanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	f.e.Register(ConceptEditor{Concept: f.broken, Build: func(*model.Concept) Template {
		panic("boom")
	}})
	var id model.NodeID
	f.write(t, func() error {
		n, err := f.m.AddRoot(f.broken)
		id = n.ID()
		return err
	})
	c := f.e.Open(f.m, id)
	update(t, c)
	if got := render(c); !strings.Contains(got, "boom") {
		t.Errorf("render = %q, want the panic message", got)
	}
}

func TestTextReplacement(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1")
	c := f.e.Open(f.m, block)
	update(t, c)
	ref := celltree.PropertyRef{Node: string(ids[0]), Property: "value"}

	replace := func(newText string) {
		t.Helper()
		action := celltree.Get(resolve(t, c, ref), ReplaceTextKey)
		f.write(t, func() error {
			_, err := action.ReplaceText(context.Background(), protocol.Range{Start: 0, End: 1}, newText, newText)
			return err
		})
		update(t, c)
	}

	replace("x")
	if got := render(c); got != "block x" {
		t.Errorf("render = %q, want the replacement", got)
	}
	if err := f.m.Read(func() error {
		n, err := f.m.Node(ids[0])
		if err == nil && n.Property("value") != "1" {
			t.Errorf("invalid text reached the model: %q", n.Property("value"))
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}

	replace("12")
	cell := resolve(t, c, ref)
	if _, ok := celltree.Lookup(cell, celltree.TextReplacementKey); ok {
		t.Error("replacement kept after a valid edit")
	}
	if got := text(cell); got != "12" {
		t.Errorf("text = %q, want 12", got)
	}
}

func TestSubstitutePlaceholder(t *testing.T) {
	f := newFixture(t)
	var plus model.NodeID
	f.write(t, func() error {
		p, err := f.m.AddRoot(f.plus)
		if err != nil {
			return err
		}
		plus = p.ID()
		l, err := p.AddNewChild("left", 0, f.num)
		if err != nil {
			return err
		}
		return l.SetProperty("value", "1")
	})
	c := f.e.Open(f.m, plus)
	update(t, c)
	if got, want := render(c), "1 + <right>"; got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}

	cell := resolve(t, c, celltree.PlaceholderRef{Parent: string(plus), Link: "right"})
	providers := SubstituteProviders(cell)
	if len(providers) == 0 {
		t.Fatal("placeholder has no substitute provider")
	}

	var policy protocol.CaretPolicy
	f.write(t, func() error {
		actions, err := completion.Flatten(completion.NewParams("7"), providers...)
		if err != nil {
			return err
		}
		a, ok := completion.AutoApply(actions, "7", nil)
		if !ok {
			t.Fatalf("no single action for 7 among %d", len(actions))
		}
		policy, err = a.Execute(context.Background())
		return err
	})
	update(t, c)

	if got, want := render(c), "1 + 7"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	p, ok := policy.(protocol.CaretPositionPolicy)
	if !ok || len(p.Preferred) != 1 {
		t.Fatalf("policy = %v", policy)
	}
	if _, ok := p.Preferred[0].(celltree.PropertyRef); !ok {
		t.Errorf("caret goes to %v, want the new value", p.Preferred[0])
	}
}

func TestWrapperEntries(t *testing.T) {
	f := newFixture(t)
	var plus model.NodeID
	f.write(t, func() error {
		p, err := f.m.AddRoot(f.plus)
		plus = p.ID()
		return err
	})
	c := f.e.Open(f.m, plus)
	update(t, c)
	cell := resolve(t, c, celltree.PlaceholderRef{Parent: string(plus), Link: "left"})

	var entries []string
	if err := f.m.Read(func() error {
		actions, err := completion.Flatten(completion.NewParams("+"), SubstituteProviders(cell)...)
		for _, a := range completion.Filter(actions, "+", nil) {
			entries = append(entries, completion.Pattern(a)+" "+a.Description())
		}
		// The only operator wraps a new Plus into the left slot, and its
		// pattern stops at the first placeholder, so "+" selects it alone.
		if a, ok := completion.AutoApply(actions, "+", nil); !ok || a.Description() != "Plus[Plus]" {
			t.Errorf("AutoApply(+) = %v, %v", a, ok)
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}
	want := []string{"++ Plus[Plus]"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %q, want %q", entries, want)
	}
}

func TestSideTransformAfter(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1")
	c := f.e.Open(f.m, block)
	update(t, c)
	cell := resolve(t, c, celltree.NodeRef{Node: string(ids[0])})

	var policy protocol.CaretPolicy
	f.write(t, func() error {
		actions, err := completion.Flatten(completion.NewParams("+"), ActionsAfter(cell)...)
		if err != nil {
			return err
		}
		matching := completion.Filter(actions, "+", nil)
		if len(matching) != 1 {
			t.Fatalf("after-transforms for + = %d, want 1", len(matching))
		}
		policy, err = matching[0].Execute(context.Background())
		return err
	})
	update(t, c)

	if got, want := render(c), "block 1 + <right>"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	var plus model.NodeID
	if err := f.m.Read(func() error {
		b, err := f.m.Node(block)
		if err != nil {
			return err
		}
		items := b.Children("items")
		if len(items) != 1 || items[0].Concept() != f.plus {
			t.Fatalf("items = %v", items)
		}
		plus = items[0].ID()
		if left := items[0].Children("left"); len(left) != 1 || left[0].ID() != ids[0] {
			t.Errorf("left = %v, want the wrapped node", left)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	want := protocol.PreferCells(celltree.PlaceholderRef{Parent: string(plus), Link: "right"})
	if !reflect.DeepEqual(policy, want) {
		t.Errorf("policy = %v, want %v", policy, want)
	}
}

func TestDeleteListElement(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1", "2")
	c := f.e.Open(f.m, block)
	update(t, c)

	action := celltree.Get(resolve(t, c, celltree.NodeRef{Node: string(ids[1])}), DeleteKey)
	var policy protocol.CaretPolicy
	f.write(t, func() error {
		var err error
		policy, err = action.Execute(context.Background())
		return err
	})
	update(t, c)

	if got, want := render(c), "block 1"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	want := protocol.PreferCells(
		celltree.ChildNodeRef{Parent: string(block), Link: "items", Index: 0},
		celltree.PlaceholderRef{Parent: string(block), Link: "items"},
	)
	if !reflect.DeepEqual(policy, want) {
		t.Errorf("policy = %v, want %v", policy, want)
	}
}

func TestInsertPlaceholder(t *testing.T) {
	f := newFixture(t)
	block, ids := f.numbers(t, "1")
	c := f.e.Open(f.m, block)
	update(t, c)

	elem := resolve(t, c, celltree.ChildNodeRef{Parent: string(block), Link: "items", Index: 0})
	if _, err := celltree.Get(elem, InsertKey).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	update(t, c)
	if got, want := render(c), "block 1 <items>"; got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}

	ph := resolve(t, c, celltree.PlaceholderRef{Parent: string(block), Link: "items"})
	f.write(t, func() error {
		actions, err := completion.Flatten(completion.NewParams("5"), SubstituteProviders(ph)...)
		if err != nil {
			return err
		}
		a, ok := completion.AutoApply(actions, "5", nil)
		if !ok {
			t.Fatal("no action for 5")
		}
		_, err = a.Execute(context.Background())
		return err
	})
	update(t, c)
	if got, want := render(c), "block 1 , 5"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	if err := f.m.Read(func() error {
		b, err := f.m.Node(block)
		if err == nil && b.Children("items")[0].ID() != ids[0] {
			t.Error("inserted before the existing element")
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}
}

func TestOptionalPart(t *testing.T) {
	f := newFixture(t)
	var id model.NodeID
	f.write(t, func() error {
		n, err := f.m.AddRoot(f.comment)
		id = n.ID()
		return err
	})
	c := f.e.Open(f.m, id)
	update(t, c)
	if got := render(c); got != "note" {
		t.Fatalf("render = %q, want the optional part hidden", got)
	}

	var show completion.Action
	if err := f.m.Read(func() error {
		actions, err := completion.Flatten(completion.NewParams(":"), ActionsAfter(c.Tree().Root().ChildAt(0).ChildAt(0))...)
		for _, a := range actions {
			if a.MatchingText() == ":" {
				show = a
			}
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if show == nil {
		t.Fatal("no action showing the optional part")
	}
	if _, err := show.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	update(t, c)
	if got, want := render(c), "note : <no text>"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestRegistryResolution(t *testing.T) {
	f := newFixture(t)
	constant := func(text string) func(*model.Concept) Template {
		return func(*model.Concept) Template { return Constant(text) }
	}
	textOf := func(c *model.Concept) string {
		t.Helper()
		tmpl, err := f.e.templateFor(c)
		if err != nil {
			t.Fatal(err)
		}
		k, ok := tmpl.(*ConstantTemplate)
		if !ok {
			return "other"
		}
		return k.text
	}

	f.e.Register(ConceptEditor{Concept: f.expr, Build: constant("expr")})
	if got := textOf(f.num); got != "other" {
		t.Errorf("Num editor lost to the Expr editor: %q", got)
	}
	if got := textOf(f.broken); got != "other" {
		t.Errorf("Broken editor lost to the Expr editor: %q", got)
	}

	undo := f.e.Register(ConceptEditor{Concept: f.num, Build: constant("later")})
	if got := textOf(f.num); got != "later" {
		t.Errorf("last registered editor = %q, want later", got)
	}
	undo()
	if got := textOf(f.num); got != "other" {
		t.Errorf("after unregister = %q, want the first Num editor", got)
	}

	f.e.Register(ConceptEditor{Build: constant("fallback")})
	lone := f.lang.Add(&model.Concept{Name: "Lone"})
	if got := textOf(lone); got != "fallback" {
		t.Errorf("default editor = %q, want fallback", got)
	}
}

func TestDefaultTemplate(t *testing.T) {
	f := newFixture(t)
	lone := f.lang.Add(&model.Concept{Name: "Lone", Properties: []string{"name"}})
	var id model.NodeID
	f.write(t, func() error {
		n, err := f.m.AddRoot(lone)
		if err != nil {
			return err
		}
		id = n.ID()
		return n.SetProperty("name", "x")
	})
	c := f.e.Open(f.m, id)
	update(t, c)
	if got, want := render(c), "Lone { name: x }"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestDefaultTemplateInheritsLinks(t *testing.T) {
	f := newFixture(t)
	keyed := f.lang.Add(&model.Concept{Name: "Keyed", Abstract: true, Properties: []string{"key"}})
	entry := f.lang.Add(&model.Concept{Name: "Entry", Super: []*model.Concept{keyed}, Properties: []string{"name"}})
	var id model.NodeID
	f.write(t, func() error {
		n, err := f.m.AddRoot(entry)
		if err != nil {
			return err
		}
		id = n.ID()
		if err := n.SetProperty("key", "k"); err != nil {
			return err
		}
		return n.SetProperty("name", "x")
	})
	c := f.e.Open(f.m, id)
	update(t, c)
	if got, want := render(c), "Entry { key: k name: x }"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}
