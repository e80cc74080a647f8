package completion

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// sortKey folds the pattern. Casers are stateful, so each call gets its own.
func sortKey(a Action) string {
	return cases.Fold().String(Pattern(a))
}

// Filter keeps the actions with a non-empty pattern starting with typed,
// removes shadowed actions and sorts by case-folded pattern. Equal keys keep
// their relative order.
func Filter(actions []Action, typed string, shadow ShadowFunc) []Action {
	matching := make([]Action, 0, len(actions))
	for _, a := range actions {
		p := Pattern(a)
		if p != "" && strings.HasPrefix(p, typed) {
			matching = append(matching, a)
		}
	}
	matching = ApplyShadowing(matching, shadow)
	slices.SortStableFunc(matching, func(a, b Action) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})
	return matching
}

// AutoApply returns the single action whose tokens consume all of text, if
// exactly one does after shadowing.
func AutoApply(actions []Action, text string, shadow ShadowFunc) (Action, bool) {
	var full []Action
	for _, a := range actions {
		if rest, ok := ConsumeForAutoApply(a.Tokens(), text); ok && rest == "" {
			full = append(full, a)
		}
	}
	full = ApplyShadowing(full, shadow)
	if len(full) != 1 {
		return nil, false
	}
	return full[0], true
}

// Menu holds the actions of one completion menu activation.
type Menu struct {
	cache   *Cache
	shadow  ShadowFunc
	entries []Action
}

// NewMenu returns a menu over providers. A nil shadow uses DefaultShadow.
func NewMenu(shadow ShadowFunc, providers ...Provider) *Menu {
	return &Menu{cache: NewCache(providers...), shadow: shadow}
}

// Compute returns the entries for pattern without storing them.
func (m *Menu) Compute(pattern string) ([]Action, error) {
	params := NewParams(pattern)
	actions, err := m.cache.Update(params)
	if err != nil {
		return nil, err
	}
	return Filter(actions, pattern, m.shadow), nil
}

// Update computes and stores the entries for pattern.
func (m *Menu) Update(pattern string) ([]Action, error) {
	entries, err := m.Compute(pattern)
	if err != nil {
		return nil, err
	}
	m.entries = entries
	return entries, nil
}

// Entries returns the stored entries.
func (m *Menu) Entries() []Action { return m.entries }

// Entry returns stored entry i.
func (m *Menu) Entry(i int) (Action, error) {
	if i < 0 || i >= len(m.entries) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchEntry, i, len(m.entries))
	}
	return m.entries[i], nil
}
