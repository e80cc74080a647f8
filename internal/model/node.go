package model

import "github.com/google/uuid"

// NodeID identifies a node within a model.
type NodeID string

// NewNodeID returns a random node ID.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// Node is the read view of a node. Node values are only valid inside the
// Read or Write scope of the model they came from.
type Node interface {
	ID() NodeID
	Concept() *Concept
	// Property returns the value of a property, or "" if unset.
	Property(name string) string
	// Children returns the children in link, in order.
	Children(link string) []Node
	// Reference returns the target of a reference link, or nil.
	Reference(link string) Node
	// Parent returns the containing node, or nil for roots.
	Parent() Node
	// Role returns the name of the link that contains the node.
	Role() string
	// Index returns the position within the parent's link.
	Index() int
}

// WritableNode adds mutations. Mutations fail with ErrNotWriting outside of
// a Write scope.
type WritableNode interface {
	Node
	SetProperty(name, value string) error
	SetReference(link string, target NodeID) error
	// AddNewChild creates a child of concept at index of link. A negative
	// or too large index appends.
	AddNewChild(link string, index int, concept *Concept) (WritableNode, error)
	// MoveChild moves an existing node to index of link.
	MoveChild(link string, index int, child NodeID) error
	// Remove deletes the node and its subtree.
	Remove() error
	// ReplaceWith removes the node and creates a node of concept at its
	// position.
	ReplaceWith(concept *Concept) (WritableNode, error)
}

// Model is a node model with transaction scopes. Read scopes may run
// concurrently; a Write scope is exclusive. Read must not be called from
// inside Write.
type Model interface {
	Read(fn func() error) error
	Write(fn func() error) error
	Node(id NodeID) (Node, error)
	Writable(id NodeID) (WritableNode, error)
	// Roots returns the nodes without a parent.
	Roots() []Node
	// AddRoot creates a parentless node of concept.
	AddRoot(concept *Concept) (WritableNode, error)
	// Subscribe registers fn for the changes of every completed write.
	Subscribe(fn func([]Change)) (cancel func())
}

// Features of a node that a change can touch.
const (
	FeatureParent = "parent"
	FeatureExists = "exists"
)

// PropertyFeature names property name.
func PropertyFeature(name string) string { return "property:" + name }

// ChildrenFeature names the children of link.
func ChildrenFeature(link string) string { return "children:" + link }

// ReferenceFeature names the target of reference link.
func ReferenceFeature(link string) string { return "reference:" + link }

// Change records that Feature of Node changed.
type Change struct {
	Node    NodeID
	Feature string
}

// Dependency returns the name under which reads of this feature are
// tracked.
func (c Change) Dependency() string { return Dependency(c.Node, c.Feature) }

// Dependency returns the tracked dependency name of feature of node id.
func Dependency(id NodeID, feature string) string {
	return "node:" + string(id) + "/" + feature
}
