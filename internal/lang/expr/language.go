package expr

import (
	"regexp"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/model"
)

// NumberPattern is the syntax of number literals.
var NumberPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)

// Language holds the concepts of the expression language.
type Language struct {
	*model.Language

	Expression       *model.Concept
	NumberLiteral    *model.Concept
	TrueLiteral      *model.Concept
	FalseLiteral     *model.Concept
	Parens           *model.Concept
	BinaryExpression *model.Concept
	Plus             *model.Concept
	Minus            *model.Concept
	Mul              *model.Concept
	Less             *model.Concept
	LessEquals       *model.Concept
	Equals           *model.Concept
	Let              *model.Concept
	VarRef           *model.Concept
	Suite            *model.Concept
	Assertion        *model.Concept

	operators map[*model.Concept]string
}

// New creates the language. Every call returns fresh concepts.
func New() *Language {
	l := &Language{Language: model.NewLanguage("expr")}
	add := l.Language.Add

	l.Expression = add(&model.Concept{Name: "Expression", Abstract: true})
	sub := []*model.Concept{l.Expression}

	l.NumberLiteral = add(&model.Concept{Name: "NumberLiteral", Super: sub, Properties: []string{"value"}})
	l.TrueLiteral = add(&model.Concept{Name: "TrueLiteral", Super: sub})
	l.FalseLiteral = add(&model.Concept{Name: "FalseLiteral", Super: sub})
	l.Parens = add(&model.Concept{
		Name:     "Parens",
		Super:    sub,
		Children: []*model.ChildLink{{Name: "inner", Target: l.Expression}},
	})
	l.BinaryExpression = add(&model.Concept{
		Name:     "BinaryExpression",
		Abstract: true,
		Super:    sub,
		Children: []*model.ChildLink{
			{Name: "left", Target: l.Expression},
			{Name: "right", Target: l.Expression},
		},
	})
	binary := []*model.Concept{l.BinaryExpression}
	l.Plus = add(&model.Concept{Name: "Plus", Super: binary, ShortDescription: "addition"})
	l.Minus = add(&model.Concept{Name: "Minus", Super: binary, ShortDescription: "subtraction"})
	l.Mul = add(&model.Concept{Name: "Mul", Super: binary, ShortDescription: "multiplication"})
	l.Less = add(&model.Concept{Name: "Less", Super: binary})
	l.LessEquals = add(&model.Concept{Name: "LessEquals", Super: binary})
	l.Equals = add(&model.Concept{Name: "Equals", Super: binary})
	l.operators = map[*model.Concept]string{
		l.Plus:       "+",
		l.Minus:      "-",
		l.Mul:        "*",
		l.Less:       "<",
		l.LessEquals: "<=",
		l.Equals:     "==",
	}

	l.Let = add(&model.Concept{
		Name:       "Let",
		Super:      sub,
		Properties: []string{"name"},
		Children: []*model.ChildLink{
			{Name: "value", Target: l.Expression},
			{Name: "body", Target: l.Expression},
		},
	})
	l.VarRef = add(&model.Concept{
		Name:       "VarRef",
		Super:      sub,
		References: []*model.ReferenceLink{{Name: "variable", Target: l.Let}},
	})
	l.Assertion = add(&model.Concept{
		Name:       "Assertion",
		Properties: []string{"message"},
		Children:   []*model.ChildLink{{Name: "condition", Target: l.Expression}},
	})
	l.Suite = add(&model.Concept{
		Name:       "Suite",
		Properties: []string{"name"},
		Children:   []*model.ChildLink{{Name: "assertions", Target: l.Assertion, Multiple: true}},
	})
	return l
}

// Operator returns the symbol of a binary operator concept.
func (l *Language) Operator(c *model.Concept) (string, bool) {
	op, ok := l.operators[c]
	return op, ok
}

// Editors returns the concept editors of the language.
func (l *Language) Editors() []engine.ConceptEditor {
	fixed := func(c *model.Concept, build func() engine.Template) engine.ConceptEditor {
		return engine.ConceptEditor{Concept: c, Build: func(*model.Concept) engine.Template { return build() }}
	}
	return []engine.ConceptEditor{
		fixed(l.NumberLiteral, func() engine.Template {
			return engine.Property("value").Validate(NumberPattern).Placeholder("<number>")
		}),
		fixed(l.TrueLiteral, func() engine.Template { return engine.Constant("true") }),
		fixed(l.FalseLiteral, func() engine.Template { return engine.Constant("false") }),
		fixed(l.Parens, func() engine.Template {
			return engine.Collection(
				engine.With(engine.Constant("("), engine.Prop(celltree.NoSpaceKey, true)),
				engine.Child("inner"),
				engine.With(engine.Constant(")"), engine.Prop(celltree.NoSpaceKey, true)),
			)
		}),
		{Concept: l.BinaryExpression, Build: func(c *model.Concept) engine.Template {
			op, ok := l.Operator(c)
			if !ok {
				return nil
			}
			return engine.Collection(engine.Child("left"), engine.Constant(op), engine.Child("right"))
		}},
		fixed(l.Let, func() engine.Template {
			return engine.Collection(
				engine.Constant("let"),
				engine.Property("name").Placeholder("<name>"),
				engine.Constant("="),
				engine.Child("value"),
				engine.Constant("in"),
				engine.Child("body"),
			)
		}),
		fixed(l.VarRef, func() engine.Template {
			return engine.With(engine.Reference("variable", nil), engine.Prop(celltree.TextColorKey, "cyan"))
		}),
		fixed(l.Assertion, func() engine.Template {
			return engine.Collection(
				engine.With(engine.Constant("assert"), engine.Prop(celltree.TextColorKey, "magenta")),
				engine.Child("condition"),
				engine.Optional(engine.Constant(":"), engine.Property("message").Placeholder("<message>")),
			)
		}),
		fixed(l.Suite, func() engine.Template {
			return engine.Vertical(
				engine.Collection(
					engine.With(engine.Constant("suite"), engine.Prop(celltree.TextColorKey, "magenta")),
					engine.Property("name"),
				),
				engine.Indented(engine.Child("assertions").Vertical()),
			)
		}),
	}
}

// Register adds the editors of the language to e.
func (l *Language) Register(e *engine.Engine) (unregister func()) {
	var undo []func()
	for _, ed := range l.Editors() {
		undo = append(undo, e.Register(ed))
	}
	return func() {
		for _, u := range undo {
			u()
		}
	}
}
