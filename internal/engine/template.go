package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
)

// Template is an immutable recipe for the cells of a node. Templates are
// built by a ConceptEditor; a template value must appear only once in a
// template tree.
type Template interface {
	base() *templateBase
	// create returns the spec of this template without children.
	create(b *env, n model.Node) (*Spec, error)
	// children adds the child specs to s.
	children(b *env, n model.Node, s *Spec) error
	// instantiate returns the completion items that create a node of the
	// template's concept at loc, and whether this template decided the
	// search.
	instantiate(b *env, loc Location, depth int) ([]completion.Item, bool)
	// token returns the completion pattern element, or nil.
	token() completion.Token
	// symbol reports whether the template is a grammar symbol.
	symbol() bool
}

type templateBase struct {
	concept *model.Concept
	path    string
	props   []specProp
	kids    []Template
}

func (t *templateBase) base() *templateBase { return t }

func (t *templateBase) children(b *env, n model.Node, s *Spec) error {
	for _, k := range t.kids {
		cs, err := apply(b, k, n)
		if err != nil {
			return err
		}
		s.AddChild(cs)
	}
	return nil
}

// instantiate searches the children in order. The first child that
// decides the search wins; the tokens of the children after it are
// appended to its actions.
func (t *templateBase) instantiate(b *env, loc Location, depth int) ([]completion.Item, bool) {
	for i, k := range t.kids {
		items, ok := instantiationActions(b, k, loc, depth)
		if !ok {
			continue
		}
		next := tokensOf(t.kids[i+1:])
		if next.IsEmpty() {
			return items, true
		}
		return appendTokens(items, next), true
	}
	return nil, false
}

func (t *templateBase) token() completion.Token {
	l := tokensOf(t.kids)
	if l.IsEmpty() {
		return nil
	}
	return l
}

func (t *templateBase) symbol() bool { return false }

// TemplateOption configures a template.
type TemplateOption func(*templateBase)

// Prop sets k on the cell the template creates.
func Prop[T any](k celltree.Key[T], v T) TemplateOption {
	return func(t *templateBase) {
		p := specProp{
			info:  k.Info(),
			value: v,
			set:   func(c *celltree.MutableCell) { celltree.Set(c, k, v) },
		}
		for i := range t.props {
			if t.props[i].info == p.info {
				t.props[i] = p
				return
			}
		}
		t.props = append(t.props, p)
	}
}

// With applies opts to t and returns it.
func With[T Template](t T, opts ...TemplateOption) T {
	for _, opt := range opts {
		opt(t.base())
	}
	return t
}

func templateProp[T any](t Template, k celltree.Key[T]) (T, bool) {
	for _, p := range t.base().props {
		if p.info == k.Info() {
			v, ok := p.value.(T)
			return v, ok
		}
	}
	var zero T
	return zero, false
}

// apply builds the spec of t for n.
func apply(b *env, t Template, n model.Node) (*Spec, error) {
	s, err := t.create(b, n)
	if err != nil {
		return nil, err
	}
	base := t.base()
	for _, p := range base.props {
		s.setProp(p)
	}
	if err := t.children(b, n, s); err != nil {
		return nil, err
	}
	s.AddRef(celltree.TemplateRef{Template: base.path, Node: string(n.ID())})
	return s, nil
}

// setPath binds a template tree to concept and names every template by its
// position.
func setPath(t Template, concept *model.Concept, path string) {
	b := t.base()
	b.concept = concept
	b.path = path
	for i, k := range b.kids {
		setPath(k, concept, path+"/"+strconv.Itoa(i))
	}
}

// symbols returns the grammar symbols of t in order.
func symbols(t Template) []Template {
	if t.symbol() {
		return []Template{t}
	}
	var out []Template
	for _, k := range t.base().kids {
		out = append(out, symbols(k)...)
	}
	return out
}

func instantiationActions(b *env, t Template, loc Location, depth int) ([]completion.Item, bool) {
	if text, ok := templateProp(t, celltree.CodeCompletionTextKey); ok {
		if text == "" {
			return nil, true
		}
		return completion.Actions(b.instantiate(text, t.base().concept, loc)), true
	}
	return t.instantiate(b, loc, depth)
}

func tokensOf(ts []Template) completion.List {
	var out completion.List
	for _, t := range ts {
		tok := t.token()
		if tok == nil {
			continue
		}
		if len(out) > 0 {
			out = append(out, completion.Space{})
		}
		out = append(out, tok)
	}
	return out.Normalize()
}

func appendTokens(items []completion.Item, next completion.List) []completion.Item {
	extend := func(inner completion.Token) completion.Token {
		return completion.Tokens(inner, completion.Space{}, next)
	}
	out := make([]completion.Item, 0, len(items))
	for _, it := range items {
		switch {
		case it.Action != nil:
			out = append(out, completion.ActionItem(completion.WithTokens(it.Action, extend)))
		case it.Provider != nil:
			out = append(out, completion.ProviderItem(completion.WrapProvider(it.Provider,
				func(_ *completion.Params, a completion.Action) completion.Action {
					return completion.WithTokens(a, extend)
				})))
		}
	}
	return out
}

// CollectionTemplate groups its children in one cell.
type CollectionTemplate struct {
	templateBase
}

// Collection returns a horizontal group of children.
func Collection(children ...Template) *CollectionTemplate {
	return &CollectionTemplate{templateBase{kids: children}}
}

// Vertical returns a group whose children each start a new line.
func Vertical(children ...Template) *CollectionTemplate {
	return With(Collection(children...), Prop(celltree.LayoutKey, celltree.LayoutVertical))
}

// Indented returns a group whose lines are indented one level.
func Indented(children ...Template) *CollectionTemplate {
	return With(Collection(children...), Prop(celltree.IndentChildrenKey, true))
}

func (t *CollectionTemplate) create(*env, model.Node) (*Spec, error) {
	return NewCollection(), nil
}

// NewLineTemplate forces a line break.
type NewLineTemplate struct {
	templateBase
}

// NewLine returns a line break.
func NewLine() *NewLineTemplate {
	return &NewLineTemplate{}
}

func (t *NewLineTemplate) create(*env, model.Node) (*Spec, error) {
	s := NewCollection()
	SetProp(s, celltree.OnNewLineKey, true)
	return s, nil
}

func (t *NewLineTemplate) token() completion.Token { return completion.Space{Mandatory: true} }

// ConstantTemplate shows fixed text that is part of the notation.
type ConstantTemplate struct {
	templateBase
	text string
}

// Constant returns a keyword or operator cell.
func Constant(text string) *ConstantTemplate {
	return &ConstantTemplate{text: text}
}

func (t *ConstantTemplate) create(*env, model.Node) (*Spec, error) {
	return NewText(t.text, ""), nil
}

func (t *ConstantTemplate) instantiate(b *env, loc Location, _ int) ([]completion.Item, bool) {
	return completion.Actions(b.instantiate(t.text, t.concept, loc)), true
}

func (t *ConstantTemplate) token() completion.Token { return completion.Constant(t.text) }
func (t *ConstantTemplate) symbol() bool            { return true }

// LabelTemplate shows descriptive text that is not part of the notation.
type LabelTemplate struct {
	templateBase
	text string
}

// Label returns a label cell.
func Label(text string) *LabelTemplate {
	return &LabelTemplate{text: text}
}

func (t *LabelTemplate) create(*env, model.Node) (*Spec, error) {
	s := NewText(t.text, "")
	SetProp(s, celltree.TextColorKey, "gray")
	return s, nil
}

func (t *LabelTemplate) instantiate(*env, Location, int) ([]completion.Item, bool) { return nil, false }
func (t *LabelTemplate) token() completion.Token                                  { return nil }

// PropertyTemplate shows and edits a property.
type PropertyTemplate struct {
	templateBase
	name        string
	valid       *regexp.Regexp
	placeholder string
}

// Property returns an editable cell for property name.
func Property(name string) *PropertyTemplate {
	return &PropertyTemplate{name: name}
}

// Validate restricts the values the property accepts.
func (t *PropertyTemplate) Validate(re *regexp.Regexp) *PropertyTemplate {
	t.valid = re
	return t
}

// Placeholder sets the text shown while the property is empty.
func (t *PropertyTemplate) Placeholder(text string) *PropertyTemplate {
	t.placeholder = text
	return t
}

func (t *PropertyTemplate) accepts(v string) bool {
	return t.valid == nil || t.valid.MatchString(v)
}

func (t *PropertyTemplate) create(b *env, n model.Node) (*Spec, error) {
	ph := t.placeholder
	if ph == "" {
		ph = "<no " + t.name + ">"
	}
	s := NewText(n.Property(t.name), ph)
	s.AddRef(celltree.PropertyRef{Node: string(n.ID()), Property: t.name})
	SetProp(s, celltree.TabTargetKey, true)
	SetProp(s, ReplaceTextKey, TextAction(&propertyText{env: b.untracked(), node: n.ID(), tmpl: t}))
	return s, nil
}

func (t *PropertyTemplate) instantiate(b *env, loc Location, _ int) ([]completion.Item, bool) {
	p := completion.ProviderFunc(func(params *completion.Params) ([]completion.Item, error) {
		v := params.Pattern()
		if v == "" || !t.accepts(v) {
			return nil, nil
		}
		a := b.instantiate(v, t.concept, loc)
		a.property = t.name
		return completion.Actions(a), nil
	})
	return []completion.Item{completion.ProviderItem(p)}, true
}

func (t *PropertyTemplate) token() completion.Token { return completion.Placeholder{} }
func (t *PropertyTemplate) symbol() bool            { return true }

type propertyText struct {
	env  *env
	node model.NodeID
	tmpl *PropertyTemplate
}

func (a *propertyText) Valid(text string) bool { return text == "" || a.tmpl.accepts(text) }

func (a *propertyText) ReplaceText(_ context.Context, _ protocol.Range, _, newText string) (bool, error) {
	w, err := a.env.model.Writable(a.node)
	if err != nil {
		return false, err
	}
	if err := w.SetProperty(a.tmpl.name, newText); err != nil {
		return false, err
	}
	return true, nil
}

// ChildTemplate shows the children of a link.
type ChildTemplate struct {
	templateBase
	link        string
	vertical    bool
	separator   string
	placeholder string
}

// Child returns the cells of the children in link.
func Child(link string) *ChildTemplate {
	return &ChildTemplate{link: link}
}

// Vertical puts every element of a list on its own line.
func (t *ChildTemplate) Vertical() *ChildTemplate {
	t.vertical = true
	return t
}

// Separator shows text between list elements.
func (t *ChildTemplate) Separator(text string) *ChildTemplate {
	t.separator = text
	return t
}

// Placeholder sets the text shown for an empty link.
func (t *ChildTemplate) Placeholder(text string) *ChildTemplate {
	t.placeholder = text
	return t
}

func (t *ChildTemplate) create(b *env, n model.Node) (*Spec, error) {
	cl, err := n.Concept().ChildLink(t.link)
	if err != nil {
		return nil, err
	}
	kids := n.Children(t.link)
	listRef := celltree.TemplateRef{Template: t.path, Node: string(n.ID())}
	s := NewCollection()

	if !cl.Multiple {
		if len(kids) == 0 {
			s.AddChild(t.placeholderSpec(b, n, cl, 0, nil))
		} else {
			s.AddChild(ChildNode{Node: kids[0].ID()})
		}
		return s, nil
	}

	if t.vertical {
		SetProp(s, celltree.LayoutKey, celltree.LayoutVertical)
	}
	pos, hasPos := b.state.Placeholders.Get(b.frame, listRef)
	if len(kids) == 0 {
		pos, hasPos = 0, true
	}
	for i, k := range kids {
		if hasPos && pos == i {
			s.AddChild(t.placeholderSpec(b, n, cl, i, listRef))
		}
		ref := celltree.ChildNodeRef{Parent: string(n.ID()), Link: t.link, Index: i}
		if t.separator != "" && i > 0 {
			sep := NewText(t.separator, "")
			sep.AddRef(celltree.SeparatorRef{Before: ref})
			s.AddChild(sep)
		}
		el := NewCollection()
		el.AddRef(ref)
		el.AddChild(ChildNode{Node: k.ID()})
		SetProp(el, InsertKey, CellAction(b.untracked().insertPlaceholder(listRef, n.ID(), t.link, i+1)))
		s.AddChild(el)
	}
	if hasPos && pos >= len(kids) {
		s.AddChild(t.placeholderSpec(b, n, cl, len(kids), listRef))
	}
	return s, nil
}

// placeholderSpec returns the cell shown for an empty link or an insert
// position of a list. listRef is nil for single links.
func (t *ChildTemplate) placeholderSpec(b *env, n model.Node, cl *model.ChildLink, index int, listRef celltree.Reference) *Spec {
	text := t.placeholder
	if text == "" {
		text = "<" + t.link + ">"
	}
	s := NewText("", text)
	s.AddRef(celltree.PlaceholderRef{Parent: string(n.ID()), Link: t.link})
	SetProp(s, celltree.TabTargetKey, true)
	SetProp(s, celltree.SelectableKey, true)

	u := b.untracked()
	loc := ChildLocation{Parent: ExistingNode{ID: n.ID()}, Link: t.link, Index: index}
	p := u.substitute(loc, cl.Target)
	if listRef != nil {
		p = completion.WrapProvider(p, func(_ *completion.Params, a completion.Action) completion.Action {
			return completion.After(a, func() { u.state.Placeholders.Delete(listRef) })
		})
		SetProp(s, DeleteKey, CellAction(CellActionFunc(func(context.Context) (protocol.CaretPolicy, error) {
			u.state.Placeholders.Delete(listRef)
			return nil, nil
		})))
	}
	SetProp(s, SubstituteKey, p)
	return s
}

func (t *ChildTemplate) instantiate(b *env, loc Location, depth int) ([]completion.Item, bool) {
	if depth >= b.engine.maxWrapDepth {
		return nil, false
	}
	cl, err := t.concept.ChildLink(t.link)
	if err != nil {
		return nil, false
	}
	inner := ChildLocation{Parent: NewNode{At: loc, Concept: t.concept}, Link: t.link}
	var items []completion.Item
	for _, sub := range b.engine.lang.Instantiable(cl.Target) {
		st, err := b.engine.templateFor(sub)
		if err != nil {
			continue
		}
		more, _ := instantiationActions(b, st, inner, depth+1)
		items = append(items, more...)
	}
	return items, true
}

func (t *ChildTemplate) token() completion.Token { return completion.Placeholder{} }
func (t *ChildTemplate) symbol() bool            { return true }

// ReferenceTemplate shows the target of a reference link.
type ReferenceTemplate struct {
	templateBase
	link         string
	presentation func(model.Node) string
}

// Reference returns a cell naming the target of link. A nil presentation
// shows the target's "name" property.
func Reference(link string, presentation func(model.Node) string) *ReferenceTemplate {
	if presentation == nil {
		presentation = func(n model.Node) string {
			if name := n.Property("name"); name != "" {
				return name
			}
			return string(n.ID())
		}
	}
	return &ReferenceTemplate{link: link, presentation: presentation}
}

func (t *ReferenceTemplate) create(b *env, n model.Node) (*Spec, error) {
	rl, err := n.Concept().ReferenceLink(t.link)
	if err != nil {
		return nil, err
	}
	text := ""
	if target := n.Reference(t.link); target != nil {
		text = t.presentation(target)
	}
	s := NewText(text, "<no "+t.link+">")
	s.AddRef(celltree.ReferencedNodeRef{Source: string(n.ID()), Link: t.link})
	SetProp(s, celltree.TabTargetKey, true)
	SetProp(s, SubstituteKey, b.untracked().referenceTargets(n.ID(), rl, t.presentation))
	return s, nil
}

func (t *ReferenceTemplate) instantiate(*env, Location, int) ([]completion.Item, bool) { return nil, false }
func (t *ReferenceTemplate) token() completion.Token                                  { return completion.Placeholder{} }
func (t *ReferenceTemplate) symbol() bool                                             { return true }

// OptionalTemplate hides its children while none of their properties,
// children or references is set.
type OptionalTemplate struct {
	templateBase
}

// Optional returns a part that is only shown when it has content or the
// user asked for it.
func Optional(children ...Template) *OptionalTemplate {
	return &OptionalTemplate{templateBase{kids: children}}
}

func (t *OptionalTemplate) create(*env, model.Node) (*Spec, error) {
	return NewCollection(), nil
}

func (t *OptionalTemplate) present(n model.Node) bool {
	for _, k := range t.kids {
		for _, s := range symbols(k) {
			switch s := s.(type) {
			case *PropertyTemplate:
				if n.Property(s.name) != "" {
					return true
				}
			case *ChildTemplate:
				if len(n.Children(s.link)) > 0 {
					return true
				}
			case *ReferenceTemplate:
				if n.Reference(s.link) != nil {
					return true
				}
			}
		}
	}
	return false
}

func (t *OptionalTemplate) children(b *env, n model.Node, s *Spec) error {
	ref := celltree.TemplateRef{Template: t.path, Node: string(n.ID())}
	if !t.present(n) {
		forced, _ := b.state.ForceShown.Get(b.frame, ref)
		if !forced {
			SetProp(s, ShowKey, completion.Provider(b.untracked().showOptional(ref, t)))
			return nil
		}
		SetProp(s, celltree.ForceShownKey, true)
	}
	return t.templateBase.children(b, n, s)
}

func (t *OptionalTemplate) instantiate(*env, Location, int) ([]completion.Item, bool) { return nil, false }
func (t *OptionalTemplate) token() completion.Token                                  { return nil }
func (t *OptionalTemplate) symbol() bool                                             { return true }

func (t *OptionalTemplate) String() string { return fmt.Sprintf("optional(%s)", t.path) }
