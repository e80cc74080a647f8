package engine

import (
	"fmt"

	"github.com/dshills/cellstorm/internal/model"
)

// Location is a place in the model that may not hold a node yet, such as an
// empty child link or the child of a node that an action is about to
// create.
type Location interface {
	fmt.Stringer
	// Existing returns the node at the location, or nil.
	Existing(m model.Model) model.Node
	// Create returns the node at the location, creating a node of concept
	// if there is none. Must run in a Write scope.
	Create(m model.Model, concept *model.Concept) (model.WritableNode, error)
	// Replace puts a new node of concept at the location, replacing any
	// existing node. Must run in a Write scope.
	Replace(m model.Model, concept *model.Concept) (model.WritableNode, error)
	// Depth counts the nodes that must be created before the location
	// exists.
	Depth() int
	// Expected returns the concept a node at this location must extend.
	Expected(m model.Model) *model.Concept
}

// ExistingNode is the location of a node in the model.
type ExistingNode struct {
	ID model.NodeID
}

func (l ExistingNode) String() string { return string(l.ID) }

func (l ExistingNode) Existing(m model.Model) model.Node {
	n, err := m.Node(l.ID)
	if err != nil {
		return nil
	}
	return n
}

func (l ExistingNode) Create(m model.Model, _ *model.Concept) (model.WritableNode, error) {
	w, err := m.Writable(l.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocation, err)
	}
	return w, nil
}

func (l ExistingNode) Replace(m model.Model, concept *model.Concept) (model.WritableNode, error) {
	w, err := m.Writable(l.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocation, err)
	}
	return w.ReplaceWith(concept)
}

func (l ExistingNode) Depth() int { return 0 }

func (l ExistingNode) Expected(m model.Model) *model.Concept {
	n := l.Existing(m)
	if n == nil {
		return nil
	}
	if p := n.Parent(); p != nil {
		if cl, err := p.Concept().ChildLink(n.Role()); err == nil {
			return cl.Target
		}
	}
	return n.Concept()
}

// ChildLocation is position Index of link Link under Parent. Index -1
// appends; single links ignore Index.
type ChildLocation struct {
	Parent Location
	Link   string
	Index  int
}

func (l ChildLocation) String() string {
	return fmt.Sprintf("%v.%s[%d]", l.Parent, l.Link, l.Index)
}

func (l ChildLocation) single(parent model.Node) bool {
	cl, err := parent.Concept().ChildLink(l.Link)
	return err == nil && !cl.Multiple
}

func (l ChildLocation) Existing(m model.Model) model.Node {
	p := l.Parent.Existing(m)
	if p == nil {
		return nil
	}
	kids := p.Children(l.Link)
	if l.single(p) {
		if len(kids) == 0 {
			return nil
		}
		return kids[0]
	}
	return nil
}

func (l ChildLocation) Create(m model.Model, concept *model.Concept) (model.WritableNode, error) {
	if n := l.Existing(m); n != nil {
		return m.Writable(n.ID())
	}
	return l.Replace(m, concept)
}

func (l ChildLocation) Replace(m model.Model, concept *model.Concept) (model.WritableNode, error) {
	p, err := l.Parent.Create(m, l.Parent.Expected(m))
	if err != nil {
		return nil, err
	}
	if l.single(p) {
		if kids := p.Children(l.Link); len(kids) > 0 {
			old, err := m.Writable(kids[0].ID())
			if err != nil {
				return nil, err
			}
			return old.ReplaceWith(concept)
		}
	}
	return p.AddNewChild(l.Link, l.Index, concept)
}

func (l ChildLocation) Depth() int { return l.Parent.Depth() }

func (l ChildLocation) Expected(m model.Model) *model.Concept {
	pc := l.Parent.Expected(m)
	if p := l.Parent.Existing(m); p != nil {
		pc = p.Concept()
	}
	if pc == nil {
		return nil
	}
	cl, err := pc.ChildLink(l.Link)
	if err != nil {
		return nil
	}
	return cl.Target
}

// NewNode is a node of Concept that an action creates at At.
type NewNode struct {
	At      Location
	Concept *model.Concept
}

func (l NewNode) String() string { return fmt.Sprintf("new %s at %v", l.Concept, l.At) }

func (l NewNode) Existing(model.Model) model.Node { return nil }

func (l NewNode) Create(m model.Model, _ *model.Concept) (model.WritableNode, error) {
	return l.At.Replace(m, l.Concept)
}

func (l NewNode) Replace(m model.Model, concept *model.Concept) (model.WritableNode, error) {
	return l.At.Replace(m, concept)
}

func (l NewNode) Depth() int { return l.At.Depth() + 1 }

func (l NewNode) Expected(model.Model) *model.Concept { return l.Concept }

// describe renders the wrapper chain of a location for completion entries,
// for example "Plus[Number]".
func describe(loc Location, inner string) string {
	for loc != nil {
		switch l := loc.(type) {
		case NewNode:
			inner = fmt.Sprintf("%s[%s]", l.Concept, inner)
			loc = l.At
		case ChildLocation:
			loc = l.Parent
		default:
			return inner
		}
	}
	return inner
}
