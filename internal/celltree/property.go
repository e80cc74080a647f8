package celltree

import (
	"fmt"
	"slices"
	"sync"
)

// Kind is the closed set of property value kinds.
type Kind uint8

// Property kinds.
const (
	KindBool Kind = iota + 1
	KindString
	KindEnum
	KindReferences
	// KindOpaque values are backend-only and never serialized.
	KindOpaque
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindReferences:
		return "references"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is the wire form of a frontend-visible property value.
// Enum values travel as their name in Str.
type Value struct {
	Kind Kind
	Bool bool
	Str  string
	Refs []Reference
}

// KeyInfo describes a registered property key independently of its Go type.
type KeyInfo struct {
	name     string
	kind     Kind
	frontend bool
	inherits bool
	def      any

	encode func(any) (Value, bool)
	decode func(Value) (any, bool)
	equal  func(a, b any) bool
}

// Name returns the key name.
func (k *KeyInfo) Name() string { return k.name }

// Kind returns the value kind.
func (k *KeyInfo) Kind() Kind { return k.kind }

// Frontend reports whether values cross to the frontend.
func (k *KeyInfo) Frontend() bool { return k.frontend }

// Inherits reports whether descendants inherit the value while rendering.
func (k *KeyInfo) Inherits() bool { return k.inherits }

// Encode converts a value of this key to its wire form.
// It returns false for backend-only keys and values of the wrong type.
func (k *KeyInfo) Encode(v any) (Value, bool) {
	if !k.frontend || k.encode == nil {
		return Value{}, false
	}
	return k.encode(v)
}

// Decode converts a wire value back to the key's Go type.
func (k *KeyInfo) Decode(v Value) (any, bool) {
	if k.decode == nil || v.Kind != k.kind {
		return nil, false
	}
	return k.decode(v)
}

func (k *KeyInfo) String() string { return k.name }

// Info returns k, so a KeyInfo can stand in for its key.
func (k *KeyInfo) Info() *KeyInfo { return k }

// AnyKey is implemented by every Key[T].
type AnyKey interface {
	Info() *KeyInfo
}

// Key is a typed property key.
type Key[T any] struct {
	info *KeyInfo
}

// Info returns the registered key description.
func (k Key[T]) Info() *KeyInfo { return k.info }

// Name returns the key name.
func (k Key[T]) Name() string { return k.info.name }

// Default returns the value reported for cells that do not set the key.
func (k Key[T]) Default() T {
	if k.info.def == nil {
		var zero T
		return zero
	}
	return k.info.def.(T)
}

func (k Key[T]) String() string { return k.info.name }

// KeyOption configures a key at registration.
type KeyOption func(*KeyInfo)

// Inherited marks the key as inherited by descendants during rendering.
func Inherited() KeyOption {
	return func(k *KeyInfo) { k.inherits = true }
}

var registry = struct {
	sync.RWMutex
	keys map[string]*KeyInfo
}{keys: make(map[string]*KeyInfo)}

// register adds info to the process-wide registry. Registering the same name
// twice is a programming error.
func register(info *KeyInfo, opts []KeyOption) *KeyInfo {
	for _, opt := range opts {
		opt(info)
	}
	registry.Lock()
	defer registry.Unlock()
	if existing, ok := registry.keys[info.name]; ok {
		panic(fmt.Sprintf("celltree: property key %q already registered as %s", info.name, existing.kind))
	}
	registry.keys[info.name] = info
	return info
}

// LookupKey returns the registered key with the given name.
func LookupKey(name string) (*KeyInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	k, ok := registry.keys[name]
	return k, ok
}

func equalComparable[T comparable](a, b any) bool {
	x, ok1 := a.(T)
	y, ok2 := b.(T)
	return ok1 && ok2 && x == y
}

// NewBoolKey registers a frontend-visible boolean key.
func NewBoolKey(name string, def bool, opts ...KeyOption) Key[bool] {
	return Key[bool]{register(&KeyInfo{
		name:     name,
		kind:     KindBool,
		frontend: true,
		def:      def,
		encode: func(v any) (Value, bool) {
			b, ok := v.(bool)
			return Value{Kind: KindBool, Bool: b}, ok
		},
		decode: func(v Value) (any, bool) { return v.Bool, true },
		equal:  equalComparable[bool],
	}, opts)}
}

// NewStringKey registers a frontend-visible string key.
func NewStringKey(name string, def string, opts ...KeyOption) Key[string] {
	return Key[string]{register(&KeyInfo{
		name:     name,
		kind:     KindString,
		frontend: true,
		def:      def,
		encode: func(v any) (Value, bool) {
			s, ok := v.(string)
			return Value{Kind: KindString, Str: s}, ok
		},
		decode: func(v Value) (any, bool) { return v.Str, true },
		equal:  equalComparable[string],
	}, opts)}
}

// NewEnumKey registers a frontend-visible enum key. Decoding a name that is
// not in values fails and leaves the property unset on the receiving side.
func NewEnumKey[E ~string](name string, def E, values []E, opts ...KeyOption) Key[E] {
	allowed := slices.Clone(values)
	return Key[E]{register(&KeyInfo{
		name:     name,
		kind:     KindEnum,
		frontend: true,
		def:      def,
		encode: func(v any) (Value, bool) {
			e, ok := v.(E)
			return Value{Kind: KindEnum, Str: string(e)}, ok
		},
		decode: func(v Value) (any, bool) {
			e := E(v.Str)
			if !slices.Contains(allowed, e) {
				return nil, false
			}
			return e, true
		},
		equal: equalComparable[E],
	}, opts)}
}

// NewReferencesKey registers a frontend-visible key holding cell references.
func NewReferencesKey(name string, opts ...KeyOption) Key[[]Reference] {
	return Key[[]Reference]{register(&KeyInfo{
		name:     name,
		kind:     KindReferences,
		frontend: true,
		encode: func(v any) (Value, bool) {
			refs, ok := v.([]Reference)
			return Value{Kind: KindReferences, Refs: slices.Clone(refs)}, ok
		},
		decode: func(v Value) (any, bool) { return slices.Clone(v.Refs), true },
		equal: func(a, b any) bool {
			x, ok1 := a.([]Reference)
			y, ok2 := b.([]Reference)
			return ok1 && ok2 && slices.Equal(x, y)
		},
	}, opts)}
}

// NewOpaqueKey registers a backend-only key. Values are never compared or
// serialized, so every Set stores the new value without recording an op.
func NewOpaqueKey[T any](name string, opts ...KeyOption) Key[T] {
	return Key[T]{register(&KeyInfo{
		name: name,
		kind: KindOpaque,
	}, opts)}
}

// Get returns the value of k on c, or the key's default.
func Get[T any](c *Cell, k Key[T]) T {
	if v, ok := Lookup(c, k); ok {
		return v
	}
	return k.Default()
}

// Lookup returns the value of k on c and whether it is set.
func Lookup[T any](c *Cell, k Key[T]) (T, bool) {
	if c != nil {
		if raw, ok := c.props[k.info.name]; ok {
			if v, ok := raw.(T); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// GetInherited returns the value of k on c. Inherited keys that c does not
// set are looked up on the nearest ancestor that sets them.
func GetInherited[T any](c *Cell, k Key[T]) T {
	for cur := c; cur != nil; cur = cur.Parent() {
		if v, ok := Lookup(cur, k); ok {
			return v
		}
		if !k.info.inherits {
			break
		}
	}
	return k.Default()
}
