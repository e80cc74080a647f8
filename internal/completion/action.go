package completion

import (
	"context"

	"github.com/dshills/cellstorm/internal/protocol"
)

// Action is an entry that can be offered in the completion menu.
type Action interface {
	// MatchingText is the text the user types to select the action.
	MatchingText() string
	// Tokens is the full pattern of the action. Most actions return
	// Constant(MatchingText()).
	Tokens() Token
	Description() string
	// Execute performs the action. The returned policy, if any, places the
	// caret after the resulting update.
	Execute(ctx context.Context) (protocol.CaretPolicy, error)
}

// Pattern returns the string the typed text is matched against.
func Pattern(a Action) string {
	return a.Tokens().String()
}

// Provider expands into actions and further providers.
type Provider interface {
	Provide(p *Params) ([]Item, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(p *Params) ([]Item, error)

// Provide implements Provider.
func (f ProviderFunc) Provide(p *Params) ([]Item, error) { return f(p) }

// Item is either an Action or a Provider.
type Item struct {
	Action   Action
	Provider Provider
}

// ActionItem wraps a.
func ActionItem(a Action) Item { return Item{Action: a} }

// ProviderItem wraps p.
func ProviderItem(p Provider) Item { return Item{Provider: p} }

// Actions wraps each action in an Item.
func Actions(as ...Action) []Item {
	out := make([]Item, len(as))
	for i, a := range as {
		out[i] = ActionItem(a)
	}
	return out
}

// Static is a provider returning fixed items.
type Static []Item

// Provide implements Provider.
func (s Static) Provide(*Params) ([]Item, error) { return s, nil }

// Params are passed to providers during one expansion.
type Params struct {
	pattern  string
	accessed bool
}

// NewParams returns params for the typed pattern.
func NewParams(pattern string) *Params {
	return &Params{pattern: pattern}
}

// Pattern returns the typed text. Calling it marks the current expansion as
// pattern dependent.
func (p *Params) Pattern() string {
	p.accessed = true
	return p.pattern
}

// consumeAccessed reports whether Pattern was called since the last call
// and resets the flag.
func (p *Params) consumeAccessed() bool {
	a := p.accessed
	p.accessed = false
	return a
}

// SimpleAction is an Action built from fields.
type SimpleAction struct {
	Text string
	// Desc is returned by Description.
	Desc string
	// Pattern overrides Constant(Text) when set.
	Pattern Token
	Run     func(ctx context.Context) (protocol.CaretPolicy, error)
}

func (a *SimpleAction) MatchingText() string { return a.Text }
func (a *SimpleAction) Description() string  { return a.Desc }

func (a *SimpleAction) Tokens() Token {
	if a.Pattern != nil {
		return a.Pattern
	}
	return Constant(a.Text)
}

func (a *SimpleAction) Execute(ctx context.Context) (protocol.CaretPolicy, error) {
	if a.Run == nil {
		return nil, nil
	}
	return a.Run(ctx)
}

func (a *SimpleAction) String() string { return a.Text }
