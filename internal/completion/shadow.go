package completion

// Shadower is implemented by actions that hide equivalent entries.
type Shadower interface {
	// Shadows reports whether the receiver hides other.
	Shadows(other Action) bool
	// ShadowedBy reports whether other hides the receiver.
	ShadowedBy(other Action) bool
}

// ShadowFunc reports whether a hides b. It is only asked about actions with
// equal patterns.
type ShadowFunc func(a, b Action) bool

// Unwrap strips every wrapper from a.
func Unwrap(a Action) Action {
	for {
		w, ok := a.(interface{ Unwrap() Action })
		if !ok {
			return a
		}
		a = w.Unwrap()
	}
}

// DefaultShadow consults the Shadower implementations of the unwrapped
// actions.
func DefaultShadow(a, b Action) bool {
	ua, ub := Unwrap(a), Unwrap(b)
	if s, ok := ua.(Shadower); ok && s.Shadows(ub) {
		return true
	}
	if s, ok := ub.(Shadower); ok && s.ShadowedBy(ua) {
		return true
	}
	return false
}

// ApplyShadowing removes every action that another action with the same
// pattern shadows. Groups appear in order of their first action; order
// within a group is kept. Whether an action survives does not depend on the
// input order.
func ApplyShadowing(actions []Action, shadow ShadowFunc) []Action {
	if shadow == nil {
		shadow = DefaultShadow
	}
	var order []string
	groups := make(map[string][]Action)
	for _, a := range actions {
		p := Pattern(a)
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], a)
	}

	out := make([]Action, 0, len(actions))
	for _, p := range order {
		group := groups[p]
		for i, a := range group {
			shadowed := false
			for j, b := range group {
				if i != j && shadow(b, a) {
					shadowed = true
					break
				}
			}
			if !shadowed {
				out = append(out, a)
			}
		}
	}
	return out
}
