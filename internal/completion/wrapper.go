package completion

import (
	"context"

	"github.com/dshills/cellstorm/internal/protocol"
)

// Wrapper decorates an Action. Shadowing looks through wrappers.
type Wrapper struct {
	Action

	text        func(string) string
	description *string
	tokens      func(Token) Token
	policy      func(protocol.CaretPolicy) protocol.CaretPolicy
	after       func()
}

// Unwrap returns the decorated action.
func (w *Wrapper) Unwrap() Action { return w.Action }

func (w *Wrapper) MatchingText() string {
	t := w.Action.MatchingText()
	if w.text != nil {
		return w.text(t)
	}
	return t
}

func (w *Wrapper) Description() string {
	if w.description != nil {
		return *w.description
	}
	return w.Action.Description()
}

func (w *Wrapper) Tokens() Token {
	if w.text != nil {
		return Constant(w.MatchingText())
	}
	t := w.Action.Tokens()
	if w.tokens != nil {
		return w.tokens(t)
	}
	return t
}

func (w *Wrapper) Execute(ctx context.Context) (protocol.CaretPolicy, error) {
	p, err := w.Action.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if w.after != nil {
		w.after()
	}
	if w.policy != nil {
		p = w.policy(p)
	}
	return p, nil
}

// WithDescription overrides the description of a.
func WithDescription(a Action, desc string) Action {
	return &Wrapper{Action: a, description: &desc}
}

// WithMatchingText rewrites the matching text of a. The pattern becomes
// the rewritten text.
func WithMatchingText(a Action, fn func(string) string) Action {
	return &Wrapper{Action: a, text: fn}
}

// WithTokens rewrites the token pattern of a.
func WithTokens(a Action, fn func(Token) Token) Action {
	return &Wrapper{Action: a, tokens: fn}
}

// WithCaretPolicy rewrites the policy returned by a.
func WithCaretPolicy(a Action, fn func(protocol.CaretPolicy) protocol.CaretPolicy) Action {
	return &Wrapper{Action: a, policy: fn}
}

// After runs fn after a executed successfully.
func After(a Action, fn func()) Action {
	return &Wrapper{Action: a, after: fn}
}

// WrapProvider applies wrap to every action p expands into, including
// actions of nested providers.
func WrapProvider(p Provider, wrap func(*Params, Action) Action) Provider {
	return ProviderFunc(func(params *Params) ([]Item, error) {
		items, err := p.Provide(params)
		if err != nil {
			return nil, err
		}
		out := make([]Item, 0, len(items))
		for _, it := range items {
			switch {
			case it.Action != nil:
				out = append(out, ActionItem(wrap(params, it.Action)))
			case it.Provider != nil:
				out = append(out, ProviderItem(WrapProvider(it.Provider, wrap)))
			}
		}
		return out, nil
	})
}

// AsProvider turns an item into a provider.
func AsProvider(it Item) Provider {
	if it.Provider != nil {
		return it.Provider
	}
	return Static{it}
}
