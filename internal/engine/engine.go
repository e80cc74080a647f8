package engine

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/incremental"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
)

// DefaultMaxWrapDepth is the number of wrapper nodes a completion entry may
// create around the node the user asked for.
const DefaultMaxWrapDepth = 1

// Engine builds cell specs for the nodes of one language.
type Engine struct {
	lang         *model.Language
	memo         *incremental.Engine
	logger       *logging.Logger
	maxWrapDepth int

	mu         sync.RWMutex
	editors    []registeredEditor
	nextEditor int
	templates  map[*model.Concept]Template
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMemo shares memo with other users instead of creating a private one.
func WithMemo(memo *incremental.Engine) Option {
	return func(e *Engine) { e.memo = memo }
}

// WithMaxWrapDepth limits how many nodes a completion entry may create
// around the instantiated node.
func WithMaxWrapDepth(depth int) Option {
	return func(e *Engine) {
		if depth >= 0 {
			e.maxWrapDepth = depth
		}
	}
}

// New creates an engine for lang.
func New(lang *model.Language, opts ...Option) *Engine {
	e := &Engine{
		lang:         lang,
		logger:       logging.Nop(),
		maxWrapDepth: DefaultMaxWrapDepth,
		templates:    make(map[*model.Concept]Template),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.memo == nil {
		e.memo = incremental.New(incremental.WithLogger(e.logger))
	}
	return e
}

// Language returns the language the engine edits.
func (e *Engine) Language() *model.Language { return e.lang }

// Memo returns the incremental engine holding the specs.
func (e *Engine) Memo() *incremental.Engine { return e.memo }

// NewState returns an empty editor state tracked by the engine's memo.
func (e *Engine) NewState() *State { return NewState(e.memo) }

// Invalidate drops every spec that read one of changes.
func (e *Engine) Invalidate(changes []model.Change) int {
	deps := make([]string, len(changes))
	for i, c := range changes {
		deps[i] = c.Dependency()
	}
	return e.memo.Invalidate(deps...)
}

func specKey(st *State, id model.NodeID) string {
	return "spec/" + st.ID() + "/" + string(id)
}

// CreateSpec returns the spec of node id for st. Specs are memoized; the
// read becomes a dependency of f. Must run in a model Read or Write scope.
func (e *Engine) CreateSpec(f *incremental.Frame, st *State, m model.Model, id model.NodeID) (*Spec, error) {
	return incremental.Compute(e.memo, f, specKey(st, id), func(fr *incremental.Frame) (*Spec, error) {
		fr.Read(model.Dependency(id, model.FeatureExists))
		n, err := m.Node(id)
		if err != nil {
			return nil, err
		}
		b := &env{engine: e, state: st, model: m, frame: fr}
		return b.buildNode(track(fr, n)), nil
	})
}

// env carries what a template needs while it builds a spec. Closures
// stored in cells keep an untracked copy.
type env struct {
	engine *Engine
	state  *State
	model  model.Model
	frame  *incremental.Frame
}

func (b *env) untracked() *env {
	if b.frame == nil {
		return b
	}
	c := *b
	c.frame = nil
	return &c
}

func (b *env) buildNode(n model.Node) (s *Spec) {
	defer func() {
		if r := recover(); r != nil {
			b.engine.logger.Error("template for %s panicked: %v", n.ID(), r)
			s = errorSpec(n.ID(), fmt.Errorf("%v", r))
		}
	}()

	t, err := b.engine.templateFor(n.Concept())
	if err != nil {
		return errorSpec(n.ID(), err)
	}
	s, err = apply(b, t, n)
	if err != nil {
		b.engine.logger.Warn("template for %s: %v", n.ID(), err)
		return errorSpec(n.ID(), err)
	}

	u := b.untracked()
	id := n.ID()
	s.AddRef(celltree.NodeRef{Node: string(id)})
	SetProp(s, celltree.SelectableKey, true)
	SetProp(s, NodeKey, Location(ExistingNode{ID: id}))
	SetProp(s, SubstituteKey, u.substitute(ExistingNode{ID: id}, nil))
	SetProp(s, TransformBeforeKey, u.sideTransforms(id, false))
	SetProp(s, TransformAfterKey, u.sideTransforms(id, true))
	SetProp(s, DeleteKey, CellAction(u.deleteNode(id)))
	b.applyTextReplacements(s)
	return s
}

// errorSpec is shown instead of a node whose template failed.
func errorSpec(id model.NodeID, err error) *Spec {
	s := NewText(fmt.Sprintf("<ERROR: %v>", err), "")
	SetProp(s, celltree.TextColorKey, "red")
	s.AddRef(celltree.NodeRef{Node: string(id)})
	return s
}

// applyTextReplacements shows pending typed text in the text cells of s
// and routes edits of those cells through the editor state.
func (b *env) applyTextReplacements(s *Spec) {
	if s.IsText() && len(s.Refs) > 0 {
		ref := s.Refs[0]
		if r, ok := b.state.TextReplacements.Get(b.frame, ref); ok {
			SetProp(s, celltree.TextReplacementKey, r)
		}
		text, _ := SpecProp(s, celltree.TextKey)
		delegate, _ := SpecProp(s, ReplaceTextKey)
		SetProp(s, ReplaceTextKey, TextAction(&overrideText{
			state:    b.state,
			ref:      ref,
			text:     text,
			delegate: delegate,
		}))
	}
	for _, c := range s.Children {
		if cs, ok := c.(*Spec); ok {
			b.applyTextReplacements(cs)
		}
	}
}

// overrideText passes valid text to the delegate and keeps any other text
// as a replacement in the editor state.
type overrideText struct {
	state    *State
	ref      celltree.Reference
	text     string
	delegate TextAction
}

func (a *overrideText) Valid(string) bool { return true }

func (a *overrideText) ReplaceText(ctx context.Context, r protocol.Range, replacement, newText string) (bool, error) {
	if a.delegate != nil && a.delegate.Valid(newText) {
		a.state.TextReplacements.Delete(a.ref)
		return a.delegate.ReplaceText(ctx, r, replacement, newText)
	}
	if newText == a.text {
		a.state.TextReplacements.Delete(a.ref)
		return true, nil
	}
	a.state.TextReplacements.Set(a.ref, newText)
	return true, nil
}

// SubstituteProviders returns the substitution providers of c and of the
// ancestors whose text is just c.
func SubstituteProviders(c *celltree.Cell) []completion.Provider {
	var out []completion.Provider
	for _, a := range CenterAlignedHierarchy(c) {
		if p, ok := celltree.Lookup(a, SubstituteKey); ok && p != nil {
			out = append(out, p)
		}
	}
	return out
}

// CenterAlignedHierarchy returns c followed by the ancestors that have c as
// their only text leaf.
func CenterAlignedHierarchy(c *celltree.Cell) []*celltree.Cell {
	out := []*celltree.Cell{c}
	for a := c.Parent(); a != nil; a = a.Parent() {
		if !onlyTextLeaf(a, c) {
			break
		}
		out = append(out, a)
	}
	return out
}

func onlyTextLeaf(a, c *celltree.Cell) bool {
	for d := range celltree.Descendants(a, false) {
		if d != c && d.Type() == celltree.TypeText {
			return false
		}
	}
	return true
}

// ActionsBefore returns the providers for text typed at the start of c:
// the before-transforms of every ancestor that starts with c, and the
// hidden optional parts between the previous text cell and c.
func ActionsBefore(c *celltree.Cell) []completion.Provider {
	return sideProviders(c, TransformBeforeKey, celltree.PreviousCells, func(a *celltree.Cell) *celltree.Cell {
		return firstText(a)
	})
}

// ActionsAfter is the mirror image of ActionsBefore for the end of c.
func ActionsAfter(c *celltree.Cell) []completion.Provider {
	return sideProviders(c, TransformAfterKey, celltree.NextCells, func(a *celltree.Cell) *celltree.Cell {
		return lastText(a)
	})
}

func sideProviders(
	c *celltree.Cell,
	key celltree.Key[completion.Provider],
	adjacent func(*celltree.Cell) iter.Seq[*celltree.Cell],
	edge func(*celltree.Cell) *celltree.Cell,
) []completion.Provider {
	var out []completion.Provider
	for a := range celltree.Ancestors(c, true) {
		if edge(a) != c {
			break
		}
		if p, ok := celltree.Lookup(a, key); ok && p != nil {
			out = append(out, p)
		}
	}
	for a := range adjacent(c) {
		if a.Type() == celltree.TypeText {
			break
		}
		if p, ok := celltree.Lookup(a, ShowKey); ok && p != nil {
			out = append(out, p)
		}
	}
	return out
}

func firstText(c *celltree.Cell) *celltree.Cell {
	for d := range celltree.Descendants(c, true) {
		if d.Type() == celltree.TypeText {
			return d
		}
	}
	return nil
}

func lastText(c *celltree.Cell) *celltree.Cell {
	var last *celltree.Cell
	for d := range celltree.Descendants(c, true) {
		if d.Type() == celltree.TypeText {
			last = d
		}
	}
	return last
}
