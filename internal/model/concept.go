package model

import (
	"fmt"
	"slices"
)

// Concept is the type of a node.
type Concept struct {
	Name       string
	Abstract   bool
	Super      []*Concept
	Properties []string
	Children   []*ChildLink
	References []*ReferenceLink

	// ShortDescription is shown next to completion entries.
	ShortDescription string
}

// ChildLink declares a containment link.
type ChildLink struct {
	Name     string
	Target   *Concept
	Multiple bool
	Optional bool
}

// ReferenceLink declares a non-containment link.
type ReferenceLink struct {
	Name   string
	Target *Concept
}

func (c *Concept) String() string {
	if c == nil {
		return "<nil concept>"
	}
	return c.Name
}

// IsSubConceptOf reports whether c is o or extends it.
func (c *Concept) IsSubConceptOf(o *Concept) bool {
	if c == nil || o == nil {
		return false
	}
	return slices.Contains(c.AllConcepts(), o)
}

// AllConcepts returns c followed by its super concepts, breadth first,
// each once. The order is most specific first.
func (c *Concept) AllConcepts() []*Concept {
	out := []*Concept{c}
	for i := 0; i < len(out); i++ {
		for _, s := range out[i].Super {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// AllProperties returns the properties of c and its super concepts, the
// most general first. A name declared twice is listed once.
func (c *Concept) AllProperties() []string {
	var out []string
	for _, x := range general(c) {
		for _, p := range x.Properties {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// AllChildLinks returns the child links of c and its super concepts in the
// order of AllProperties.
func (c *Concept) AllChildLinks() []*ChildLink {
	var out []*ChildLink
	seen := make(map[string]bool)
	for _, x := range general(c) {
		for _, l := range x.Children {
			if !seen[l.Name] {
				seen[l.Name] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// AllReferenceLinks returns the reference links of c and its super
// concepts in the order of AllProperties.
func (c *Concept) AllReferenceLinks() []*ReferenceLink {
	var out []*ReferenceLink
	seen := make(map[string]bool)
	for _, x := range general(c) {
		for _, l := range x.References {
			if !seen[l.Name] {
				seen[l.Name] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// general returns AllConcepts reversed.
func general(c *Concept) []*Concept {
	all := c.AllConcepts()
	slices.Reverse(all)
	return all
}

// ChildLink returns the child link named name, searching super concepts.
func (c *Concept) ChildLink(name string) (*ChildLink, error) {
	for _, x := range c.AllConcepts() {
		for _, l := range x.Children {
			if l.Name == name {
				return l, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownLink, c.Name, name)
}

// ReferenceLink returns the reference link named name.
func (c *Concept) ReferenceLink(name string) (*ReferenceLink, error) {
	for _, x := range c.AllConcepts() {
		for _, l := range x.References {
			if l.Name == name {
				return l, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownLink, c.Name, name)
}

// HasProperty reports whether c or a super concept declares name.
func (c *Concept) HasProperty(name string) bool {
	for _, x := range c.AllConcepts() {
		if slices.Contains(x.Properties, name) {
			return true
		}
	}
	return false
}

// Language is an ordered set of concepts.
type Language struct {
	Name     string
	concepts []*Concept
	byName   map[string]*Concept
}

// NewLanguage creates an empty language.
func NewLanguage(name string) *Language {
	return &Language{Name: name, byName: make(map[string]*Concept)}
}

// Add registers c and returns it. Adding a second concept with the same
// name panics.
func (l *Language) Add(c *Concept) *Concept {
	if _, dup := l.byName[c.Name]; dup {
		panic(fmt.Sprintf("model: concept %s already in language %s", c.Name, l.Name))
	}
	l.byName[c.Name] = c
	l.concepts = append(l.concepts, c)
	return c
}

// Concept returns the concept named name.
func (l *Language) Concept(name string) (*Concept, bool) {
	c, ok := l.byName[name]
	return c, ok
}

// Concepts returns all concepts in registration order.
func (l *Language) Concepts() []*Concept {
	return slices.Clone(l.concepts)
}

// Instantiable returns the non-abstract concepts that are sub concepts of
// target, in registration order.
func (l *Language) Instantiable(target *Concept) []*Concept {
	var out []*Concept
	for _, c := range l.concepts {
		if !c.Abstract && c.IsSubConceptOf(target) {
			out = append(out, c)
		}
	}
	return out
}
