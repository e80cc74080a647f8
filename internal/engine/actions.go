package engine

import (
	"context"
	"fmt"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
)

// instantiateAction creates a node of concept at loc. If property is set,
// the matching text becomes the value of that property.
type instantiateAction struct {
	env      *env
	text     string
	concept  *model.Concept
	loc      Location
	property string
}

func (b *env) instantiate(text string, c *model.Concept, loc Location) *instantiateAction {
	return &instantiateAction{env: b.untracked(), text: text, concept: c, loc: loc}
}

func (a *instantiateAction) MatchingText() string     { return a.text }
func (a *instantiateAction) Tokens() completion.Token { return completion.Constant(a.text) }

func (a *instantiateAction) Description() string {
	d := describe(a.loc, a.concept.Name)
	if a.concept.ShortDescription != "" {
		d += " (" + a.concept.ShortDescription + ")"
	}
	return d
}

// Shadows hides an action creating the same concept through more wrapper
// nodes.
func (a *instantiateAction) Shadows(other completion.Action) bool {
	o, ok := other.(*instantiateAction)
	return ok && o.concept == a.concept && a.loc.Depth() < o.loc.Depth()
}

func (a *instantiateAction) ShadowedBy(other completion.Action) bool {
	o, ok := other.(*instantiateAction)
	return ok && o.concept == a.concept && o.loc.Depth() < a.loc.Depth()
}

func (a *instantiateAction) Execute(context.Context) (protocol.CaretPolicy, error) {
	m := a.env.model
	n, err := a.loc.Replace(m, a.concept)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s at %v: %w", a.concept, a.loc, err)
	}
	if a.property != "" {
		if err := n.SetProperty(a.property, a.text); err != nil {
			return nil, err
		}
	}

	var top model.Node = n
	for range a.loc.Depth() {
		if p := top.Parent(); p != nil {
			top = p
		}
	}
	if ref, ok := firstEmptySlot(top); ok {
		return protocol.PreferCells(ref), nil
	}
	if a.property != "" {
		return protocol.PreferCells(celltree.PropertyRef{Node: string(n.ID()), Property: a.property}), nil
	}
	return protocol.PreferCells(celltree.NodeRef{Node: string(n.ID())}), nil
}

func (a *instantiateAction) String() string { return a.Description() }

// firstEmptySlot returns the placeholder of the first empty single child
// link in the subtree of n, depth first.
func firstEmptySlot(n model.Node) (celltree.Reference, bool) {
	for _, l := range childLinks(n.Concept()) {
		kids := n.Children(l.Name)
		if !l.Multiple && len(kids) == 0 {
			return celltree.PlaceholderRef{Parent: string(n.ID()), Link: l.Name}, true
		}
		for _, k := range kids {
			if ref, ok := firstEmptySlot(k); ok {
				return ref, true
			}
		}
	}
	return nil, false
}

func childLinks(c *model.Concept) []*model.ChildLink {
	var out []*model.ChildLink
	all := c.AllConcepts()
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i].Children...)
	}
	return out
}

// substitute offers every concept that can be instantiated at loc.
func (b *env) substitute(loc Location, target *model.Concept) completion.Provider {
	return completion.ProviderFunc(func(*completion.Params) ([]completion.Item, error) {
		if target == nil {
			target = loc.Expected(b.model)
		}
		if target == nil {
			return nil, nil
		}
		var items []completion.Item
		for _, c := range b.engine.lang.Instantiable(target) {
			t, err := b.engine.templateFor(c)
			if err != nil {
				b.engine.logger.Warn("substitute: %v", err)
				continue
			}
			more, ok := instantiationActions(b, t, loc, 0)
			if !ok {
				more = completion.Actions(b.instantiate(c.Name, c, loc))
			}
			items = append(items, more...)
		}
		return items, nil
	})
}

// wrapAction moves a node into a new node of concept, typed as the
// constant next to the child slot the node moves into.
type wrapAction struct {
	env     *env
	node    model.NodeID
	concept *model.Concept
	link    string
	text    string
	after   bool
	next    Template
}

func (a *wrapAction) MatchingText() string     { return a.text }
func (a *wrapAction) Tokens() completion.Token { return completion.Constant(a.text) }
func (a *wrapAction) Description() string      { return a.concept.Name }

func (a *wrapAction) Execute(context.Context) (protocol.CaretPolicy, error) {
	m := a.env.model
	n, err := m.Writable(a.node)
	if err != nil {
		return nil, err
	}
	w, err := wrapNode(m, n, a.concept, a.link)
	if err != nil {
		return nil, fmt.Errorf("wrap %s in %s: %w", a.node, a.concept, err)
	}
	if !a.after {
		return protocol.AtIndex([]celltree.Reference{celltree.NodeRef{Node: string(a.node)}}, 0), nil
	}
	var ref celltree.Reference = celltree.NodeRef{Node: string(w.ID())}
	switch s := a.next.(type) {
	case *ChildTemplate:
		ref = celltree.PlaceholderRef{Parent: string(w.ID()), Link: s.link}
	case *PropertyTemplate:
		ref = celltree.PropertyRef{Node: string(w.ID()), Property: s.name}
	case *ReferenceTemplate:
		ref = celltree.ReferencedNodeRef{Source: string(w.ID()), Link: s.link}
	}
	return protocol.PreferCells(ref), nil
}

func (a *wrapAction) String() string { return fmt.Sprintf("wrap %s in %s", a.node, a.concept) }

// wrapNode replaces n by a new node of concept that holds n in link.
func wrapNode(m model.Model, n model.WritableNode, c *model.Concept, link string) (model.WritableNode, error) {
	parent, role, index := n.Parent(), n.Role(), n.Index()
	w, err := m.AddRoot(c)
	if err != nil {
		return nil, err
	}
	if err := w.MoveChild(link, 0, n.ID()); err != nil {
		_ = w.Remove()
		return nil, err
	}
	if parent == nil {
		return w, nil
	}
	pw, err := m.Writable(parent.ID())
	if err != nil {
		return nil, err
	}
	if err := pw.MoveChild(role, index, w.ID()); err != nil {
		return nil, err
	}
	return w, nil
}

// sideTransforms offers to wrap the node into any concept whose notation
// puts a constant directly after (or before) a child slot the node fits.
func (b *env) sideTransforms(id model.NodeID, after bool) completion.Provider {
	return completion.ProviderFunc(func(*completion.Params) ([]completion.Item, error) {
		n, err := b.model.Node(id)
		if err != nil {
			return nil, nil
		}
		expected := ExistingNode{ID: id}.Expected(b.model)
		if expected == nil {
			return nil, nil
		}
		var items []completion.Item
		for _, c := range b.engine.lang.Instantiable(expected) {
			t, err := b.engine.templateFor(c)
			if err != nil {
				continue
			}
			syms := symbols(t)
			for i, s := range syms {
				ct, ok := s.(*ChildTemplate)
				if !ok {
					continue
				}
				cl, err := c.ChildLink(ct.link)
				if err != nil || !n.Concept().IsSubConceptOf(cl.Target) {
					continue
				}
				j := i - 1
				if after {
					j = i + 1
				}
				if j < 0 || j >= len(syms) {
					continue
				}
				k, ok := syms[j].(*ConstantTemplate)
				if !ok {
					continue
				}
				a := &wrapAction{env: b, node: id, concept: c, link: ct.link, text: k.text, after: after}
				if after && j+1 < len(syms) {
					a.next = syms[j+1]
				}
				items = append(items, completion.ActionItem(a))
			}
		}
		return items, nil
	})
}

// deleteNode removes the node and places the caret where it was.
func (b *env) deleteNode(id model.NodeID) CellActionFunc {
	return func(context.Context) (protocol.CaretPolicy, error) {
		w, err := b.model.Writable(id)
		if err != nil {
			return nil, err
		}
		parent, role, index := w.Parent(), w.Role(), w.Index()
		if err := w.Remove(); err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, nil
		}
		slot := celltree.PlaceholderRef{Parent: string(parent.ID()), Link: role}
		cl, err := parent.Concept().ChildLink(role)
		if err != nil || !cl.Multiple {
			return protocol.PreferCells(slot), nil
		}
		if index > 0 {
			return protocol.PreferCells(celltree.ChildNodeRef{Parent: string(parent.ID()), Link: role, Index: index - 1}, slot), nil
		}
		return protocol.PreferCells(slot, celltree.ChildNodeRef{Parent: string(parent.ID()), Link: role, Index: 0}), nil
	}
}

// insertPlaceholder shows an insertion placeholder at index pos of a list.
func (b *env) insertPlaceholder(listRef celltree.Reference, parent model.NodeID, link string, pos int) CellActionFunc {
	return func(context.Context) (protocol.CaretPolicy, error) {
		b.state.Placeholders.Set(listRef, pos)
		return protocol.PreferCells(celltree.PlaceholderRef{Parent: string(parent), Link: link}), nil
	}
}

// showOptional forces an empty optional part to be shown.
func (b *env) showOptional(ref celltree.TemplateRef, t *OptionalTemplate) completion.Provider {
	return completion.Static(completion.Actions(&completion.SimpleAction{
		Text: tokensOf(t.kids).String(),
		Desc: "Add optional part",
		Run: func(context.Context) (protocol.CaretPolicy, error) {
			b.state.ForceShown.Set(ref, true)
			return protocol.PreferCells(ref), nil
		},
	}))
}

// referenceTargets offers every node in the model that link can point to.
func (b *env) referenceTargets(source model.NodeID, rl *model.ReferenceLink, present func(model.Node) string) completion.Provider {
	return completion.ProviderFunc(func(*completion.Params) ([]completion.Item, error) {
		var items []completion.Item
		var visit func(n model.Node)
		visit = func(n model.Node) {
			if n.Concept().IsSubConceptOf(rl.Target) {
				target := n.ID()
				items = append(items, completion.ActionItem(&completion.SimpleAction{
					Text: present(n),
					Desc: n.Concept().Name,
					Run: func(context.Context) (protocol.CaretPolicy, error) {
						w, err := b.model.Writable(source)
						if err != nil {
							return nil, err
						}
						if err := w.SetReference(rl.Name, target); err != nil {
							return nil, err
						}
						return protocol.PreferCells(celltree.ReferencedNodeRef{Source: string(source), Link: rl.Name}), nil
					},
				}))
			}
			for _, l := range childLinks(n.Concept()) {
				for _, k := range n.Children(l.Name) {
					visit(k)
				}
			}
		}
		for _, r := range b.model.Roots() {
			visit(r)
		}
		return items, nil
	})
}
