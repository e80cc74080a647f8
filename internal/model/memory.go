package model

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/cellstorm/internal/logging"
)

// Memory is an in-memory Model.
type Memory struct {
	mu      sync.RWMutex
	nodes   map[NodeID]*memNode
	roots   []*memNode
	writing atomic.Bool
	changes []Change

	lmu       sync.Mutex
	listeners map[int]func([]Change)
	nextID    int

	logger *logging.Logger
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

// NewMemory creates an empty model.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		nodes:     make(map[NodeID]*memNode),
		listeners: make(map[int]func([]Change)),
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read runs fn in a read scope.
func (m *Memory) Read(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn()
}

// Write runs fn in an exclusive write scope. Changes made by fn are kept
// even if fn fails; listeners are notified after the scope ends.
func (m *Memory) Write(fn func() error) error {
	m.mu.Lock()
	m.writing.Store(true)
	err := func() error {
		defer m.writing.Store(false)
		return fn()
	}()
	changes := m.changes
	m.changes = nil
	m.mu.Unlock()

	if len(changes) > 0 {
		m.notify(changes)
	}
	return err
}

// Subscribe implements Model.
func (m *Memory) Subscribe(fn func([]Change)) func() {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Memory) notify(changes []Change) {
	m.lmu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func([]Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.lmu.Unlock()

	m.logger.Debug("model changed: %d changes", len(changes))
	for _, fn := range fns {
		fn(slices.Clone(changes))
	}
}

// Node implements Model.
func (m *Memory) Node(id NodeID) (Node, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Writable implements Model.
func (m *Memory) Writable(id NodeID) (WritableNode, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (m *Memory) node(id NodeID) (*memNode, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Roots returns the root nodes.
func (m *Memory) Roots() []Node {
	out := make([]Node, len(m.roots))
	for i, r := range m.roots {
		out[i] = r
	}
	return out
}

// AddRoot creates a root node of concept.
func (m *Memory) AddRoot(concept *Concept) (WritableNode, error) {
	if err := m.checkWriting(); err != nil {
		return nil, err
	}
	if concept.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrAbstractConcept, concept)
	}
	n := m.newNode(concept)
	m.roots = append(m.roots, n)
	return n, nil
}

func (m *Memory) checkWriting() error {
	if !m.writing.Load() {
		return ErrNotWriting
	}
	return nil
}

func (m *Memory) newNode(concept *Concept) *memNode {
	n := &memNode{
		m:        m,
		id:       NewNodeID(),
		concept:  concept,
		props:    make(map[string]string),
		children: make(map[string][]*memNode),
		refs:     make(map[string]NodeID),
	}
	m.nodes[n.id] = n
	m.record(n.id, FeatureExists)
	return n
}

func (m *Memory) record(id NodeID, feature string) {
	m.changes = append(m.changes, Change{Node: id, Feature: feature})
}

type memNode struct {
	m        *Memory
	id       NodeID
	concept  *Concept
	props    map[string]string
	children map[string][]*memNode
	refs     map[string]NodeID
	parent   *memNode
	role     string
}

func (n *memNode) ID() NodeID                  { return n.id }
func (n *memNode) Concept() *Concept           { return n.concept }
func (n *memNode) Property(name string) string { return n.props[name] }
func (n *memNode) Role() string                { return n.role }

func (n *memNode) String() string { return fmt.Sprintf("%s(%s)", n.concept, n.id) }

func (n *memNode) Children(link string) []Node {
	kids := n.children[link]
	out := make([]Node, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out
}

func (n *memNode) Reference(link string) Node {
	id, ok := n.refs[link]
	if !ok {
		return nil
	}
	target, ok := n.m.nodes[id]
	if !ok {
		return nil
	}
	return target
}

func (n *memNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *memNode) Index() int {
	if n.parent == nil {
		return slices.Index(n.m.roots, n)
	}
	return slices.Index(n.parent.children[n.role], n)
}

func (n *memNode) SetProperty(name, value string) error {
	if err := n.m.checkWriting(); err != nil {
		return err
	}
	if old, ok := n.props[name]; ok && old == value {
		return nil
	}
	if value == "" {
		delete(n.props, name)
	} else {
		n.props[name] = value
	}
	n.m.record(n.id, PropertyFeature(name))
	return nil
}

func (n *memNode) SetReference(link string, target NodeID) error {
	if err := n.m.checkWriting(); err != nil {
		return err
	}
	rl, err := n.concept.ReferenceLink(link)
	if err != nil {
		return err
	}
	if target == "" {
		delete(n.refs, link)
	} else {
		t, err := n.m.node(target)
		if err != nil {
			return err
		}
		if !t.concept.IsSubConceptOf(rl.Target) {
			return fmt.Errorf("%w: %s is not a %s", ErrConceptMismatch, t.concept, rl.Target)
		}
		n.refs[link] = target
	}
	n.m.record(n.id, ReferenceFeature(link))
	return nil
}

func (n *memNode) checkChild(link string, concept *Concept) error {
	cl, err := n.concept.ChildLink(link)
	if err != nil {
		return err
	}
	if !concept.IsSubConceptOf(cl.Target) {
		return fmt.Errorf("%w: %s is not a %s", ErrConceptMismatch, concept, cl.Target)
	}
	if !cl.Multiple && len(n.children[link]) > 0 {
		return fmt.Errorf("%w: %s.%s", ErrCardinality, n.concept, link)
	}
	return nil
}

func (n *memNode) insert(link string, index int, child *memNode) {
	kids := n.children[link]
	if index < 0 || index > len(kids) {
		index = len(kids)
	}
	n.children[link] = slices.Insert(kids, index, child)
	child.parent = n
	child.role = link
	n.m.record(n.id, ChildrenFeature(link))
	n.m.record(child.id, FeatureParent)
}

func (n *memNode) AddNewChild(link string, index int, concept *Concept) (WritableNode, error) {
	if err := n.m.checkWriting(); err != nil {
		return nil, err
	}
	if concept.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrAbstractConcept, concept)
	}
	if err := n.checkChild(link, concept); err != nil {
		return nil, err
	}
	child := n.m.newNode(concept)
	n.insert(link, index, child)
	return child, nil
}

func (n *memNode) MoveChild(link string, index int, childID NodeID) error {
	if err := n.m.checkWriting(); err != nil {
		return err
	}
	child, err := n.m.node(childID)
	if err != nil {
		return err
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur == child {
			return fmt.Errorf("%w: %s is inside %s", ErrInvalidMove, n, child)
		}
	}
	if child.parent == n && child.role == link {
		kids := slices.DeleteFunc(slices.Clone(n.children[link]), func(k *memNode) bool { return k == child })
		n.children[link] = kids
		n.insert(link, index, child)
		return nil
	}
	cl, err := n.concept.ChildLink(link)
	if err != nil {
		return err
	}
	if !child.concept.IsSubConceptOf(cl.Target) {
		return fmt.Errorf("%w: %s is not a %s", ErrConceptMismatch, child.concept, cl.Target)
	}
	if !cl.Multiple && len(n.children[link]) > 0 {
		return fmt.Errorf("%w: %s.%s", ErrCardinality, n.concept, link)
	}
	child.unlink()
	n.insert(link, index, child)
	return nil
}

// unlink removes n from its parent or from the roots.
func (n *memNode) unlink() {
	if n.parent == nil {
		n.m.roots = slices.DeleteFunc(n.m.roots, func(r *memNode) bool { return r == n })
		return
	}
	p := n.parent
	p.children[n.role] = slices.DeleteFunc(p.children[n.role], func(k *memNode) bool { return k == n })
	n.m.record(p.id, ChildrenFeature(n.role))
	n.parent = nil
	n.role = ""
	n.m.record(n.id, FeatureParent)
}

func (n *memNode) Remove() error {
	if err := n.m.checkWriting(); err != nil {
		return err
	}
	n.unlink()
	n.forget()
	return nil
}

func (n *memNode) forget() {
	for _, kids := range n.children {
		for _, k := range kids {
			k.forget()
		}
	}
	delete(n.m.nodes, n.id)
	n.m.record(n.id, FeatureExists)
}

func (n *memNode) ReplaceWith(concept *Concept) (WritableNode, error) {
	if err := n.m.checkWriting(); err != nil {
		return nil, err
	}
	if concept.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrAbstractConcept, concept)
	}
	p, role, index := n.parent, n.role, n.Index()
	if p != nil {
		cl, err := p.concept.ChildLink(role)
		if err != nil {
			return nil, err
		}
		if !concept.IsSubConceptOf(cl.Target) {
			return nil, fmt.Errorf("%w: %s is not a %s", ErrConceptMismatch, concept, cl.Target)
		}
	}
	n.unlink()
	n.forget()
	repl := n.m.newNode(concept)
	if p == nil {
		n.m.roots = slices.Insert(n.m.roots, index, repl)
		return repl, nil
	}
	p.insert(role, index, repl)
	return repl, nil
}
