package celltree

import "fmt"

// Reference is a logical, structurally derived key for a cell. References
// are comparable values and can be used as map keys. Several references may
// resolve to the same cell, and a reference keeps resolving after the cell
// it named was replaced by a rebuilt one.
type Reference interface {
	fmt.Stringer
	cellReference()
}

// PropertyRef names the cell that shows property Property of node Node.
type PropertyRef struct {
	Node     string
	Property string
}

// NodeRef names the root cell of a node.
type NodeRef struct {
	Node string
}

// ChildNodeRef names the cell of the Index-th child in link Link of Parent.
type ChildNodeRef struct {
	Parent string
	Link   string
	Index  int
}

// SeparatorRef names the separator cell shown before the cell of Before.
type SeparatorRef struct {
	Before Reference
}

// ReferencedNodeRef names the cell that shows the target of reference link
// Link of node Source.
type ReferencedNodeRef struct {
	Source string
	Link   string
}

// TemplateRef names the cell that template Template produced for Node.
type TemplateRef struct {
	Template string
	Node     string
}

// PlaceholderRef names the placeholder shown for an empty child link.
type PlaceholderRef struct {
	Parent string
	Link   string
}

func (PropertyRef) cellReference()       {}
func (NodeRef) cellReference()           {}
func (ChildNodeRef) cellReference()      {}
func (SeparatorRef) cellReference()      {}
func (ReferencedNodeRef) cellReference() {}
func (TemplateRef) cellReference()       {}
func (PlaceholderRef) cellReference()    {}

func (r PropertyRef) String() string { return fmt.Sprintf("property(%s.%s)", r.Node, r.Property) }
func (r NodeRef) String() string     { return fmt.Sprintf("node(%s)", r.Node) }
func (r ChildNodeRef) String() string {
	return fmt.Sprintf("child(%s.%s[%d])", r.Parent, r.Link, r.Index)
}
func (r SeparatorRef) String() string      { return fmt.Sprintf("separator(%v)", r.Before) }
func (r ReferencedNodeRef) String() string { return fmt.Sprintf("target(%s.%s)", r.Source, r.Link) }
func (r TemplateRef) String() string       { return fmt.Sprintf("template(%s, %s)", r.Template, r.Node) }
func (r PlaceholderRef) String() string    { return fmt.Sprintf("placeholder(%s.%s)", r.Parent, r.Link) }
