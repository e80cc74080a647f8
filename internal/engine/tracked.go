package engine

import (
	"github.com/dshills/cellstorm/internal/incremental"
	"github.com/dshills/cellstorm/internal/model"
)

// trackedNode records every read of the wrapped node on a frame.
type trackedNode struct {
	n model.Node
	f *incremental.Frame
}

func track(f *incremental.Frame, n model.Node) model.Node {
	if n == nil {
		return nil
	}
	if t, ok := n.(*trackedNode); ok {
		if t.f == f {
			return t
		}
		n = t.n
	}
	return &trackedNode{n: n, f: f}
}

func (t *trackedNode) read(feature string) {
	t.f.Read(model.Dependency(t.n.ID(), feature))
}

func (t *trackedNode) ID() model.NodeID         { return t.n.ID() }
func (t *trackedNode) Concept() *model.Concept { return t.n.Concept() }

func (t *trackedNode) Property(name string) string {
	t.read(model.PropertyFeature(name))
	return t.n.Property(name)
}

func (t *trackedNode) Children(link string) []model.Node {
	t.read(model.ChildrenFeature(link))
	kids := t.n.Children(link)
	out := make([]model.Node, len(kids))
	for i, k := range kids {
		out[i] = track(t.f, k)
	}
	return out
}

func (t *trackedNode) Reference(link string) model.Node {
	t.read(model.ReferenceFeature(link))
	target := t.n.Reference(link)
	if target == nil {
		return nil
	}
	t.f.Read(model.Dependency(target.ID(), model.FeatureExists))
	return track(t.f, target)
}

func (t *trackedNode) Parent() model.Node {
	t.read(model.FeatureParent)
	return track(t.f, t.n.Parent())
}

func (t *trackedNode) Role() string {
	t.read(model.FeatureParent)
	return t.n.Role()
}

func (t *trackedNode) Index() int {
	t.read(model.FeatureParent)
	if p := t.n.Parent(); p != nil {
		t.f.Read(model.Dependency(p.ID(), model.ChildrenFeature(t.n.Role())))
	}
	return t.n.Index()
}
