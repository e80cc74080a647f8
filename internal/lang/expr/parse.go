package expr

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dshills/cellstorm/internal/model"
)

// ErrSyntax indicates source text that is not an expression.
var ErrSyntax = errors.New("syntax error")

// syntax is a parsed expression before it becomes model nodes.
type syntax struct {
	concept  *model.Concept
	props    map[string]string
	children []syntaxChild
	// binding is the Let a VarRef points to.
	binding *syntax
}

type syntaxChild struct {
	link string
	node *syntax
}

type parser struct {
	lang   *Language
	tokens []string
	pos    int
	scope  []*syntax
}

// tokenize splits src into numbers, names and operators. Signs directly in
// front of a digit at the start of an operand belong to the number.
func tokenize(src string) ([]string, error) {
	var out []string
	rs := []rune(src)
	operand := true
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
			continue
		case unicode.IsDigit(r) || (operand && (r == '+' || r == '-') && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && unicode.IsDigit(rs[j]) {
				j++
			}
			out = append(out, string(rs[i:j]))
			i = j
			operand = false
			continue
		case unicode.IsLetter(r):
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			word := string(rs[i:j])
			out = append(out, word)
			i = j
			operand = word == "let" || word == "in"
			continue
		}
		switch {
		case strings.HasPrefix(string(rs[i:]), "<="), strings.HasPrefix(string(rs[i:]), "=="):
			out = append(out, string(rs[i:i+2]))
			i += 2
		case strings.ContainsRune("+-*<()=", r):
			out = append(out, string(r))
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, r)
		}
		operand = out[len(out)-1] != ")"
	}
	return out, nil
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("%w: expected %q, got %q", ErrSyntax, tok, got)
	}
	return nil
}

func (p *parser) binary(op string, left, right *syntax) *syntax {
	var c *model.Concept
	for concept, sym := range p.lang.operators {
		if sym == op {
			c = concept
		}
	}
	return &syntax{concept: c, children: []syntaxChild{{"left", left}, {"right", right}}}
}

// comparison := additive [("<" | "<=" | "==") additive]
func (p *parser) comparison() (*syntax, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	switch op := p.peek(); op {
	case "<", "<=", "==":
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		return p.binary(op, left, right), nil
	}
	return left, nil
}

// additive := term {("+" | "-") term}
func (p *parser) additive() (*syntax, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == "+" || op == "-"; op = p.peek() {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
	return left, nil
}

// term := primary {"*" primary}
func (p *parser) term() (*syntax, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "*" {
		p.next()
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = p.binary("*", left, right)
	}
	return left, nil
}

func (p *parser) primary() (*syntax, error) {
	tok := p.next()
	switch {
	case tok == "":
		return nil, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	case NumberPattern.MatchString(tok):
		return &syntax{concept: p.lang.NumberLiteral, props: map[string]string{"value": tok}}, nil
	case tok == "true":
		return &syntax{concept: p.lang.TrueLiteral}, nil
	case tok == "false":
		return &syntax{concept: p.lang.FalseLiteral}, nil
	case tok == "(":
		inner, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &syntax{concept: p.lang.Parens, children: []syntaxChild{{"inner", inner}}}, nil
	case tok == "let":
		return p.let()
	case unicode.IsLetter([]rune(tok)[0]):
		for i := len(p.scope) - 1; i >= 0; i-- {
			if p.scope[i].props["name"] == tok {
				return &syntax{concept: p.lang.VarRef, binding: p.scope[i]}, nil
			}
		}
		return nil, fmt.Errorf("%w: unknown variable %q", ErrSyntax, tok)
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok)
}

// let := "let" name "=" comparison "in" comparison
func (p *parser) let() (*syntax, error) {
	name := p.next()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		return nil, fmt.Errorf("%w: expected a name after let, got %q", ErrSyntax, name)
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	value, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	s := &syntax{concept: p.lang.Let, props: map[string]string{"name": name}}
	p.scope = append(p.scope, s)
	body, err := p.comparison()
	p.scope = p.scope[:len(p.scope)-1]
	if err != nil {
		return nil, err
	}
	s.children = []syntaxChild{{"value", value}, {"body", body}}
	return s, nil
}

func (l *Language) parse(src string) (*syntax, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{lang: l, tokens: tokens}
	s, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.peek())
	}
	return s, nil
}

// Build parses src and adds the expression as child index of link under
// parent. Must run in a Write scope.
func (l *Language) Build(parent model.WritableNode, link string, index int, src string) (model.WritableNode, error) {
	s, err := l.parse(src)
	if err != nil {
		return nil, err
	}
	created := make(map[*syntax]model.WritableNode)
	var refs []*syntax
	var build func(parent model.WritableNode, link string, index int, s *syntax) (model.WritableNode, error)
	build = func(parent model.WritableNode, link string, index int, s *syntax) (model.WritableNode, error) {
		n, err := parent.AddNewChild(link, index, s.concept)
		if err != nil {
			return nil, err
		}
		created[s] = n
		for name, v := range s.props {
			if err := n.SetProperty(name, v); err != nil {
				return nil, err
			}
		}
		if s.binding != nil {
			refs = append(refs, s)
		}
		for _, ch := range s.children {
			if _, err := build(n, ch.link, -1, ch.node); err != nil {
				return nil, err
			}
		}
		return n, nil
	}
	n, err := build(parent, link, index, s)
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if err := created[r].SetReference("variable", created[r.binding].ID()); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewSuite adds a suite with one assertion per source text.
func (l *Language) NewSuite(m model.Model, name string, assertions ...string) (model.NodeID, error) {
	var id model.NodeID
	err := m.Write(func() error {
		suite, err := m.AddRoot(l.Suite)
		if err != nil {
			return err
		}
		id = suite.ID()
		if err := suite.SetProperty("name", name); err != nil {
			return err
		}
		for i, src := range assertions {
			a, err := suite.AddNewChild("assertions", i, l.Assertion)
			if err != nil {
				return err
			}
			if _, err := l.Build(a, "condition", 0, src); err != nil {
				return fmt.Errorf("assertion %d: %w", i, err)
			}
		}
		return nil
	})
	return id, err
}

// Sample fills m with the document the demo opens.
func (l *Language) Sample(m model.Model) (model.NodeID, error) {
	return l.NewSuite(m, "arithmetic",
		"1 + 2 == 3",
		"2 * 3 < 7",
		"(1 + 2) * 3 <= 9",
		"let x = 4 in x * x == 16",
		"true",
	)
}
