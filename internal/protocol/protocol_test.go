package protocol

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/dshills/cellstorm/internal/celltree"
)

func TestPolicyWithIndexOffset(t *testing.T) {
	tests := []struct {
		index int
		want  int
	}{
		{0, 0},
		{2, 2},
		{-1, 5},
		{-3, 3},
	}
	for _, tt := range tests {
		p := AtIndex(nil, tt.index)
		if got := p.Offset(5); got != tt.want {
			t.Errorf("Offset(5) with index %d = %d, want %d", tt.index, got, tt.want)
		}
	}
}

func TestCaretPositionPolicyUnion(t *testing.T) {
	a := celltree.NodeRef{Node: "a"}
	b := celltree.NodeRef{Node: "b"}
	p := PreferCells(a).Prefer(a, b).Avoid(b)
	if len(p.Preferred) != 2 {
		t.Errorf("Preferred = %v, want two distinct refs", p.Preferred)
	}
	merged := p.Merge(CaretPositionPolicy{Avoided: []celltree.Reference{b, a}})
	if !reflect.DeepEqual(merged.Avoided, []celltree.Reference{b, a}) {
		t.Errorf("Avoided = %v", merged.Avoided)
	}
	if !merged.IsAvoided([]celltree.Reference{celltree.NodeRef{Node: "x"}, a}) {
		t.Error("IsAvoided should match a")
	}
}

func TestSaveCaretPosition(t *testing.T) {
	bt := celltree.NewBackendTree()
	var cells []*celltree.MutableCell
	_, err := bt.RunUpdate(func() error {
		for _, name := range []string{"a", "b", "c"} {
			c, err := bt.MutableRoot().AddNewChild(bt.Root().ChildCount())
			if err != nil {
				return err
			}
			celltree.Set(c, celltree.ReferencesKey, []celltree.Reference{celltree.NodeRef{Node: name}})
			cells = append(cells, c)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunUpdate: %v", err)
	}

	saved := SaveCaretPosition(cells[1].Cell)
	if saved.Selected != (celltree.NodeRef{Node: "b"}) {
		t.Errorf("Selected = %v", saved.Selected)
	}
	if !reflect.DeepEqual(saved.Previous, []celltree.Reference{celltree.NodeRef{Node: "a"}}) {
		t.Errorf("Previous = %v", saved.Previous)
	}
	if !reflect.DeepEqual(saved.Next, []celltree.Reference{celltree.NodeRef{Node: "c"}}) {
		t.Errorf("Next = %v", saved.Next)
	}
}

func TestEditorUpdateJSON(t *testing.T) {
	ref := celltree.SeparatorRef{Before: celltree.ChildNodeRef{Parent: "n1", Link: "args", Index: 2}}
	in := &EditorUpdate{
		Seq: 42,
		Changes: []celltree.Op{
			celltree.NewChildOp{Parent: 1, Index: 0, Child: 7},
			celltree.PropertyChangeOp{ID: 7, Key: "text", Value: celltree.Value{Kind: celltree.KindString, Str: "x"}},
			celltree.PropertyChangeOp{ID: 7, Key: "cell-references", Value: celltree.Value{
				Kind: celltree.KindReferences,
				Refs: []celltree.Reference{ref},
			}},
			celltree.DetachOp{ID: 5},
			celltree.DeleteOp{ID: 5},
		},
		Selection: PolicyWithIndex{Policy: PreferCells(ref), Index: -1},
		Menu:      &CompletionMenuTrigger{Anchor: 7, Position: CompletionRight, Pattern: "+", CaretPosition: 1},
		Entries:   []CompletionEntry{{ID: 0, MatchingText: "+", Description: "plus"}},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out EditorUpdate
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, &out) {
		t.Errorf("decoded update differs:\n got %#v\nwant %#v", out, *in)
	}
}

func TestEditorUpdateEntriesPresence(t *testing.T) {
	var u EditorUpdate
	if err := json.Unmarshal([]byte(`{"changes":[]}`), &u); err != nil {
		t.Fatal(err)
	}
	if u.Entries != nil {
		t.Error("missing entries should decode as nil")
	}
	if err := json.Unmarshal([]byte(`{"changes":[],"entries":[]}`), &u); err != nil {
		t.Fatal(err)
	}
	if u.Entries == nil || len(u.Entries) != 0 {
		t.Errorf("empty entries should decode as empty slice, got %#v", u.Entries)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	var u EditorUpdate
	err := json.Unmarshal([]byte(`{"changes":[{"kind":"explode","id":1}]}`), &u)
	if err == nil {
		t.Fatal("expected error for unknown op kind")
	}
}
