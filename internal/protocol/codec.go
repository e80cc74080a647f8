package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/cellstorm/internal/celltree"
)

// JSON encoding. Tagged unions (references, values, ops, policies) are
// objects with a "kind" field; decoding peeks at it with gjson and reads the
// remaining fields from the same parse.

type object = map[string]any

func encodeRef(r celltree.Reference) object {
	switch r := r.(type) {
	case celltree.PropertyRef:
		return object{"kind": "property", "node": r.Node, "property": r.Property}
	case celltree.NodeRef:
		return object{"kind": "node", "node": r.Node}
	case celltree.ChildNodeRef:
		return object{"kind": "child", "parent": r.Parent, "link": r.Link, "index": r.Index}
	case celltree.SeparatorRef:
		return object{"kind": "separator", "before": encodeRef(r.Before)}
	case celltree.ReferencedNodeRef:
		return object{"kind": "target", "source": r.Source, "link": r.Link}
	case celltree.TemplateRef:
		return object{"kind": "template", "template": r.Template, "node": r.Node}
	case celltree.PlaceholderRef:
		return object{"kind": "placeholder", "parent": r.Parent, "link": r.Link}
	default:
		return nil
	}
}

func decodeRef(v gjson.Result) (celltree.Reference, error) {
	switch kind := v.Get("kind").String(); kind {
	case "property":
		return celltree.PropertyRef{Node: v.Get("node").String(), Property: v.Get("property").String()}, nil
	case "node":
		return celltree.NodeRef{Node: v.Get("node").String()}, nil
	case "child":
		return celltree.ChildNodeRef{
			Parent: v.Get("parent").String(),
			Link:   v.Get("link").String(),
			Index:  int(v.Get("index").Int()),
		}, nil
	case "separator":
		before, err := decodeRef(v.Get("before"))
		if err != nil {
			return nil, err
		}
		return celltree.SeparatorRef{Before: before}, nil
	case "target":
		return celltree.ReferencedNodeRef{Source: v.Get("source").String(), Link: v.Get("link").String()}, nil
	case "template":
		return celltree.TemplateRef{Template: v.Get("template").String(), Node: v.Get("node").String()}, nil
	case "placeholder":
		return celltree.PlaceholderRef{Parent: v.Get("parent").String(), Link: v.Get("link").String()}, nil
	default:
		return nil, fmt.Errorf("%w: reference kind %q", ErrInvalidMessage, kind)
	}
}

func encodeRefs(refs []celltree.Reference) []object {
	out := make([]object, 0, len(refs))
	for _, r := range refs {
		if o := encodeRef(r); o != nil {
			out = append(out, o)
		}
	}
	return out
}

func decodeRefs(v gjson.Result) ([]celltree.Reference, error) {
	var out []celltree.Reference
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		var r celltree.Reference
		if r, err = decodeRef(item); err != nil {
			return false
		}
		out = append(out, r)
		return true
	})
	return out, err
}

func encodeValue(v celltree.Value) object {
	o := object{"kind": v.Kind.String()}
	switch v.Kind {
	case celltree.KindBool:
		o["value"] = v.Bool
	case celltree.KindString, celltree.KindEnum:
		o["value"] = v.Str
	case celltree.KindReferences:
		o["value"] = encodeRefs(v.Refs)
	}
	return o
}

func decodeValue(v gjson.Result) (celltree.Value, error) {
	switch kind := v.Get("kind").String(); kind {
	case "bool":
		return celltree.Value{Kind: celltree.KindBool, Bool: v.Get("value").Bool()}, nil
	case "string":
		return celltree.Value{Kind: celltree.KindString, Str: v.Get("value").String()}, nil
	case "enum":
		return celltree.Value{Kind: celltree.KindEnum, Str: v.Get("value").String()}, nil
	case "references":
		refs, err := decodeRefs(v.Get("value"))
		if err != nil {
			return celltree.Value{}, err
		}
		return celltree.Value{Kind: celltree.KindReferences, Refs: refs}, nil
	default:
		return celltree.Value{}, fmt.Errorf("%w: value kind %q", ErrInvalidMessage, kind)
	}
}

func encodeOp(op celltree.Op) (object, error) {
	switch op := op.(type) {
	case celltree.NewCellOp:
		return object{"kind": "newCell", "id": op.ID}, nil
	case celltree.NewChildOp:
		return object{"kind": "newChild", "parent": op.Parent, "index": op.Index, "child": op.Child}, nil
	case celltree.PropertyChangeOp:
		return object{"kind": "set", "id": op.ID, "key": op.Key, "value": encodeValue(op.Value)}, nil
	case celltree.PropertyRemoveOp:
		return object{"kind": "remove", "id": op.ID, "key": op.Key}, nil
	case celltree.MoveOp:
		return object{"kind": "move", "id": op.ID, "index": op.Index}, nil
	case celltree.MoveToOp:
		return object{"kind": "moveTo", "id": op.ID, "parent": op.Parent, "index": op.Index}, nil
	case celltree.DetachOp:
		return object{"kind": "detach", "id": op.ID}, nil
	case celltree.DeleteOp:
		return object{"kind": "delete", "id": op.ID}, nil
	default:
		return nil, fmt.Errorf("%w: op %T", ErrInvalidMessage, op)
	}
}

func decodeOp(v gjson.Result) (celltree.Op, error) {
	id := celltree.ID(v.Get("id").Int())
	switch kind := v.Get("kind").String(); kind {
	case "newCell":
		return celltree.NewCellOp{ID: id}, nil
	case "newChild":
		return celltree.NewChildOp{
			Parent: celltree.ID(v.Get("parent").Int()),
			Index:  int(v.Get("index").Int()),
			Child:  celltree.ID(v.Get("child").Int()),
		}, nil
	case "set":
		value, err := decodeValue(v.Get("value"))
		if err != nil {
			return nil, err
		}
		return celltree.PropertyChangeOp{ID: id, Key: v.Get("key").String(), Value: value}, nil
	case "remove":
		return celltree.PropertyRemoveOp{ID: id, Key: v.Get("key").String()}, nil
	case "move":
		return celltree.MoveOp{ID: id, Index: int(v.Get("index").Int())}, nil
	case "moveTo":
		return celltree.MoveToOp{
			ID:     id,
			Parent: celltree.ID(v.Get("parent").Int()),
			Index:  int(v.Get("index").Int()),
		}, nil
	case "detach":
		return celltree.DetachOp{ID: id}, nil
	case "delete":
		return celltree.DeleteOp{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: op kind %q", ErrInvalidMessage, kind)
	}
}

func encodePolicy(p CaretPolicy) object {
	switch p := p.(type) {
	case CaretPositionPolicy:
		return object{"kind": "caret", "preferred": encodeRefs(p.Preferred), "avoided": encodeRefs(p.Avoided)}
	case PolicyWithIndex:
		return object{"kind": "index", "policy": encodePolicy(p.Policy), "index": p.Index}
	case SavedCaretPosition:
		o := object{"kind": "saved", "previous": encodeRefs(p.Previous), "next": encodeRefs(p.Next)}
		if p.Selected != nil {
			o["selected"] = encodeRef(p.Selected)
		}
		return o
	default:
		return nil
	}
}

func decodePolicy(v gjson.Result) (CaretPolicy, error) {
	switch kind := v.Get("kind").String(); kind {
	case "caret":
		preferred, err := decodeRefs(v.Get("preferred"))
		if err != nil {
			return nil, err
		}
		avoided, err := decodeRefs(v.Get("avoided"))
		if err != nil {
			return nil, err
		}
		return CaretPositionPolicy{Preferred: preferred, Avoided: avoided}, nil
	case "index":
		inner, err := decodePolicy(v.Get("policy"))
		if err != nil {
			return nil, err
		}
		cp, ok := inner.(CaretPositionPolicy)
		if !ok {
			return nil, fmt.Errorf("%w: nested policy %T", ErrInvalidMessage, inner)
		}
		return PolicyWithIndex{Policy: cp, Index: int(v.Get("index").Int())}, nil
	case "saved":
		s := SavedCaretPosition{}
		var err error
		if s.Previous, err = decodeRefs(v.Get("previous")); err != nil {
			return nil, err
		}
		if s.Next, err = decodeRefs(v.Get("next")); err != nil {
			return nil, err
		}
		if sel := v.Get("selected"); sel.Exists() {
			if s.Selected, err = decodeRef(sel); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: policy kind %q", ErrInvalidMessage, kind)
	}
}

// MarshalJSON implements json.Marshaler.
func (u *EditorUpdate) MarshalJSON() ([]byte, error) {
	o, err := u.toObject()
	if err != nil {
		return nil, err
	}
	return json.Marshal(o)
}

func (u *EditorUpdate) toObject() (object, error) {
	changes := make([]object, 0, len(u.Changes))
	for _, op := range u.Changes {
		o, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		changes = append(changes, o)
	}
	o := object{"changes": changes}
	if u.Seq != 0 {
		o["seq"] = u.Seq
	}
	if u.Selection != nil {
		o["selection"] = encodePolicy(u.Selection)
	}
	if u.Menu != nil {
		o["menu"] = object{
			"anchor":        u.Menu.Anchor,
			"position":      u.Menu.Position,
			"pattern":       u.Menu.Pattern,
			"caretPosition": u.Menu.CaretPosition,
		}
	}
	if u.Entries != nil {
		entries := make([]object, 0, len(u.Entries))
		for _, e := range u.Entries {
			entries = append(entries, object{"id": e.ID, "matchingText": e.MatchingText, "description": e.Description})
		}
		o["entries"] = entries
	}
	return o, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *EditorUpdate) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: malformed update", ErrInvalidMessage)
	}
	return u.fromResult(gjson.ParseBytes(data))
}

func (u *EditorUpdate) fromResult(v gjson.Result) error {
	*u = EditorUpdate{Seq: v.Get("seq").Uint()}
	var err error
	v.Get("changes").ForEach(func(_, item gjson.Result) bool {
		var op celltree.Op
		if op, err = decodeOp(item); err != nil {
			return false
		}
		u.Changes = append(u.Changes, op)
		return true
	})
	if err != nil {
		return err
	}
	if sel := v.Get("selection"); sel.Exists() && sel.Type != gjson.Null {
		if u.Selection, err = decodePolicy(sel); err != nil {
			return err
		}
	}
	if menu := v.Get("menu"); menu.Exists() && menu.Type != gjson.Null {
		u.Menu = &CompletionMenuTrigger{
			Anchor:        celltree.ID(menu.Get("anchor").Int()),
			Position:      CompletionPosition(menu.Get("position").String()),
			Pattern:       menu.Get("pattern").String(),
			CaretPosition: int(menu.Get("caretPosition").Int()),
		}
	}
	if entries := v.Get("entries"); entries.IsArray() {
		u.Entries = []CompletionEntry{}
		entries.ForEach(func(_, e gjson.Result) bool {
			u.Entries = append(u.Entries, CompletionEntry{
				ID:           int(e.Get("id").Int()),
				MatchingText: e.Get("matchingText").String(),
				Description:  e.Get("description").String(),
			})
			return true
		})
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r ServiceResult) MarshalJSON() ([]byte, error) {
	o := object{"result": r.Result}
	if r.Update != nil {
		uo, err := r.Update.toObject()
		if err != nil {
			return nil, err
		}
		o["update"] = uo
	}
	return json.Marshal(o)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ServiceResult) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: malformed result", ErrInvalidMessage)
	}
	v := gjson.ParseBytes(data)
	*r = ServiceResult{Result: v.Get("result").Bool()}
	if uv := v.Get("update"); uv.IsObject() {
		r.Update = &EditorUpdate{}
		return r.Update.fromResult(uv)
	}
	return nil
}
