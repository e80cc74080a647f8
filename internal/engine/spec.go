package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/model"
)

// Spec describes one cell and its children. Specs are immutable once
// returned from the memo.
type Spec struct {
	Refs     []celltree.Reference
	Children []SpecChild

	props []specProp
}

// SpecChild is either a *Spec or a ChildNode.
type SpecChild interface {
	specChild()
}

// ChildNode embeds the cell of another node.
type ChildNode struct {
	Node model.NodeID
}

func (*Spec) specChild()     {}
func (ChildNode) specChild() {}

type specProp struct {
	info  *celltree.KeyInfo
	value any
	set   func(*celltree.MutableCell)
}

// NewCollection returns an empty collection spec.
func NewCollection() *Spec {
	return &Spec{}
}

// NewText returns a text spec.
func NewText(text, placeholder string) *Spec {
	s := &Spec{}
	SetProp(s, celltree.TypeKey, celltree.TypeText)
	SetProp(s, celltree.TextKey, text)
	if placeholder != "" {
		SetProp(s, celltree.PlaceholderTextKey, placeholder)
	}
	return s
}

// SetProp sets k on s, replacing an earlier value.
func SetProp[T any](s *Spec, k celltree.Key[T], v T) {
	p := specProp{
		info:  k.Info(),
		value: v,
		set:   func(c *celltree.MutableCell) { celltree.Set(c, k, v) },
	}
	s.setProp(p)
}

func (s *Spec) setProp(p specProp) {
	for i := range s.props {
		if s.props[i].info == p.info {
			s.props[i] = p
			return
		}
	}
	s.props = append(s.props, p)
}

// SpecProp returns the value of k on s.
func SpecProp[T any](s *Spec, k celltree.Key[T]) (T, bool) {
	for _, p := range s.props {
		if p.info == k.Info() {
			v, ok := p.value.(T)
			return v, ok
		}
	}
	var zero T
	return zero, false
}

// IsText reports whether s is a text cell.
func (s *Spec) IsText() bool {
	t, _ := SpecProp(s, celltree.TypeKey)
	return t == celltree.TypeText
}

// AddChild appends c.
func (s *Spec) AddChild(c SpecChild) {
	s.Children = append(s.Children, c)
}

// AddRef appends r unless s already carries it.
func (s *Spec) AddRef(r celltree.Reference) {
	if !slices.Contains(s.Refs, r) {
		s.Refs = append(s.Refs, r)
	}
}

// String renders the spec tree for debugging.
func (s *Spec) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *Spec) write(b *strings.Builder) {
	if s.IsText() {
		text, _ := SpecProp(s, celltree.TextKey)
		if r, ok := SpecProp(s, celltree.TextReplacementKey); ok {
			text = r
		}
		if text == "" {
			text, _ = SpecProp(s, celltree.PlaceholderTextKey)
		}
		b.WriteString(text)
		return
	}
	b.WriteByte('[')
	for i, c := range s.Children {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c := c.(type) {
		case *Spec:
			c.write(b)
		case ChildNode:
			fmt.Fprintf(b, "<%s>", c.Node)
		}
	}
	b.WriteByte(']')
}
