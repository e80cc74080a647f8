package protocol

import (
	"fmt"
	"iter"
	"slices"

	"github.com/dshills/cellstorm/internal/celltree"
)

// CaretPolicy describes where the caret should go after an update. The
// frontend resolves it once the update's ops are applied.
type CaretPolicy interface {
	fmt.Stringer
	caretPolicy()
}

// CaretPositionPolicy places the caret at the end of one of the cells
// named by Preferred. Tab targets win; among the rest the candidate with the
// fewest ancestors named by Avoided is chosen.
type CaretPositionPolicy struct {
	Avoided   []celltree.Reference
	Preferred []celltree.Reference
}

// PreferCells returns a policy preferring refs.
func PreferCells(refs ...celltree.Reference) CaretPositionPolicy {
	return CaretPositionPolicy{}.Prefer(refs...)
}

// Prefer returns a copy that also prefers refs.
func (p CaretPositionPolicy) Prefer(refs ...celltree.Reference) CaretPositionPolicy {
	return CaretPositionPolicy{Avoided: p.Avoided, Preferred: union(p.Preferred, refs)}
}

// Avoid returns a copy that also avoids refs.
func (p CaretPositionPolicy) Avoid(refs ...celltree.Reference) CaretPositionPolicy {
	return CaretPositionPolicy{Avoided: union(p.Avoided, refs), Preferred: p.Preferred}
}

// Merge returns the union of both policies.
func (p CaretPositionPolicy) Merge(o CaretPositionPolicy) CaretPositionPolicy {
	return CaretPositionPolicy{
		Avoided:   union(p.Avoided, o.Avoided),
		Preferred: union(p.Preferred, o.Preferred),
	}
}

// IsAvoided reports whether any of refs is avoided.
func (p CaretPositionPolicy) IsAvoided(refs []celltree.Reference) bool {
	for _, r := range refs {
		if slices.Contains(p.Avoided, r) {
			return true
		}
	}
	return false
}

func (p CaretPositionPolicy) String() string {
	return fmt.Sprintf("prefer%v avoid%v", p.Preferred, p.Avoided)
}

// PolicyWithIndex resolves Policy and then moves the caret to Index. A
// negative Index counts from the end of the text: -1 is the end.
type PolicyWithIndex struct {
	Policy CaretPositionPolicy
	Index  int
}

// AtIndex returns a policy placing the caret at index of the cell carrying
// any of refs.
func AtIndex(refs []celltree.Reference, index int) PolicyWithIndex {
	return PolicyWithIndex{Policy: PreferCells(refs...), Index: index}
}

// Offset returns the caret offset for a text of the given length.
func (p PolicyWithIndex) Offset(length int) int {
	if p.Index < 0 {
		return length + p.Index + 1
	}
	return p.Index
}

func (p PolicyWithIndex) String() string {
	return fmt.Sprintf("%v at %d", p.Policy, p.Index)
}

// SavedCaretPosition remembers the surroundings of a selected cell so the
// caret can be restored near it after the cell disappeared. Previous and
// Next hold one reference per leaf, nearest first.
type SavedCaretPosition struct {
	Previous []celltree.Reference
	Next     []celltree.Reference
	Selected celltree.Reference
}

// SaveCaretPosition records the surroundings of c.
func SaveCaretPosition(c *celltree.Cell) SavedCaretPosition {
	s := SavedCaretPosition{
		Previous: leafRefs(celltree.PreviousCells(c)),
		Next:     leafRefs(celltree.NextCells(c)),
	}
	if refs := c.References(); len(refs) > 0 {
		s.Selected = refs[0]
	}
	return s
}

func leafRefs(cells iter.Seq[*celltree.Cell]) []celltree.Reference {
	var out []celltree.Reference
	for c := range cells {
		if !celltree.IsLeaf(c) {
			continue
		}
		if refs := c.References(); len(refs) > 0 && !slices.Contains(out, refs[0]) {
			out = append(out, refs[0])
		}
	}
	return out
}

func (s SavedCaretPosition) String() string {
	return fmt.Sprintf("saved(%v | %v | %v)", s.Previous, s.Selected, s.Next)
}

func (CaretPositionPolicy) caretPolicy() {}
func (PolicyWithIndex) caretPolicy()     {}
func (SavedCaretPosition) caretPolicy()  {}

func union(a, b []celltree.Reference) []celltree.Reference {
	out := slices.Clone(a)
	for _, r := range b {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
