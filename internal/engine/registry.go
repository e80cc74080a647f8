package engine

import (
	"fmt"
	"slices"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/model"
)

// ConceptEditor supplies the template of a concept and its sub concepts.
type ConceptEditor struct {
	// Concept is the most general concept the editor applies to. Nil
	// registers a default editor for every concept.
	Concept *model.Concept
	// Build returns the template for the concrete concept c.
	Build func(c *model.Concept) Template
}

type registeredEditor struct {
	id     int
	editor ConceptEditor
}

// Register adds ed. For a concept the editor registered for the most
// specific concept wins; among editors of one concept the last registered
// one wins. The returned function removes the editor again.
func (e *Engine) Register(ed ConceptEditor) (unregister func()) {
	e.mu.Lock()
	e.nextEditor++
	id := e.nextEditor
	e.editors = append(e.editors, registeredEditor{id: id, editor: ed})
	e.templates = make(map[*model.Concept]Template)
	e.mu.Unlock()
	e.memo.Clear()
	e.logger.Debug("registered editor %d for %v", id, ed.Concept)

	return func() {
		e.mu.Lock()
		e.editors = slices.DeleteFunc(e.editors, func(r registeredEditor) bool { return r.id == id })
		e.templates = make(map[*model.Concept]Template)
		e.mu.Unlock()
		e.memo.Clear()
	}
}

func (e *Engine) editorFor(c *model.Concept) (int, ConceptEditor) {
	for _, cc := range c.AllConcepts() {
		for i := len(e.editors) - 1; i >= 0; i-- {
			if e.editors[i].editor.Concept == cc {
				return e.editors[i].id, e.editors[i].editor
			}
		}
	}
	for i := len(e.editors) - 1; i >= 0; i-- {
		if e.editors[i].editor.Concept == nil {
			return e.editors[i].id, e.editors[i].editor
		}
	}
	return 0, ConceptEditor{Build: DefaultTemplate}
}

// templateFor returns the cached template of c.
func (e *Engine) templateFor(c *model.Concept) (t Template, err error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil concept", ErrNoTemplate)
	}
	e.mu.RLock()
	t, ok := e.templates[c]
	e.mu.RUnlock()
	if ok {
		return t, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.templates[c]; ok {
		return t, nil
	}
	id, ed := e.editorFor(c)
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("%w: editor for %s panicked: %v", ErrNoTemplate, c, r)
		}
	}()
	t = ed.Build(c)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, c)
	}
	setPath(t, c, fmt.Sprintf("%d:%s", id, c.Name))
	e.templates[c] = t
	return t, nil
}

// DefaultTemplate shows the concept name followed by a block listing every
// property, reference and child link with a label.
func DefaultTemplate(c *model.Concept) Template {
	var body []Template
	for _, p := range c.AllProperties() {
		body = append(body, Collection(Label(p+":"), Property(p)))
	}
	for _, r := range c.AllReferenceLinks() {
		body = append(body, Collection(Label(r.Name+":"), Reference(r.Name, nil)))
	}
	for _, l := range c.AllChildLinks() {
		ch := Child(l.Name)
		if l.Multiple {
			ch.Vertical()
		}
		body = append(body, Collection(Label(l.Name+":"), ch))
	}
	return With(
		Vertical(
			Collection(Constant(c.Name), Constant("{")),
			Indented(Vertical(body...)),
			Constant("}"),
		),
		Prop(celltree.CodeCompletionTextKey, c.Name),
	)
}
