package completion

import "strings"

// Token is one element of the pattern an action is matched against.
type Token interface {
	// String renders the token as it appears in the completion pattern.
	String() string
	// consume strips the token from the front of text. It returns false if
	// text does not start with the token. stop is set when consumption must
	// not continue past the token.
	consume(text string) (rest string, stop bool, ok bool)
}

// Constant is literal text.
type Constant string

func (c Constant) String() string { return string(c) }

func (c Constant) consume(text string) (string, bool, bool) {
	if !strings.HasPrefix(text, string(c)) {
		return text, false, false
	}
	return text[len(c):], false, true
}

// Space separates two tokens. A mandatory space renders as " "; an optional
// one renders as nothing and is skipped if absent.
type Space struct {
	Mandatory bool
}

func (s Space) String() string {
	if s.Mandatory {
		return " "
	}
	return ""
}

func (s Space) consume(text string) (string, bool, bool) {
	if rest, ok := strings.CutPrefix(text, " "); ok {
		return rest, false, true
	}
	return text, false, !s.Mandatory
}

// Placeholder stands for a part that is filled in after the action ran,
// such as an empty child. It renders as nothing and ends auto-apply
// consumption.
type Placeholder struct{}

func (Placeholder) String() string { return "" }

func (Placeholder) consume(text string) (string, bool, bool) { return text, true, true }

// List is a sequence of tokens.
type List []Token

func (l List) String() string {
	var b strings.Builder
	for _, t := range l {
		b.WriteString(t.String())
	}
	return b.String()
}

func (l List) consume(text string) (string, bool, bool) {
	for _, t := range l {
		var stop, ok bool
		text, stop, ok = t.consume(text)
		if !ok {
			return text, false, false
		}
		if stop {
			return text, true, true
		}
	}
	return text, false, true
}

// Tokens builds a normalized list from ts.
func Tokens(ts ...Token) List {
	return List(ts).Normalize()
}

// Normalize flattens nested lists and drops empty constants.
func (l List) Normalize() List {
	out := make(List, 0, len(l))
	for _, t := range l {
		switch t := t.(type) {
		case nil:
		case List:
			out = append(out, t.Normalize()...)
		case Constant:
			if t != "" {
				out = append(out, t)
			}
		default:
			out = append(out, t)
		}
	}
	return out
}

// IsEmpty reports whether the list holds no tokens.
func (l List) IsEmpty() bool { return len(l.Normalize()) == 0 }

// ConsumeForAutoApply strips t from the front of text and returns what is
// left. Consumption stops at the first placeholder. ok is false if text does
// not match the tokens before that point.
func ConsumeForAutoApply(t Token, text string) (rest string, ok bool) {
	rest, _, ok = t.consume(text)
	return rest, ok
}
