package incremental

import (
	"fmt"
	"sync"
)

// TrackableMap is a map whose reads are recorded as dependencies and whose
// writes invalidate the computations that read the written key.
type TrackableMap[K comparable, V any] struct {
	engine *Engine
	name   string

	mu sync.RWMutex
	m  map[K]V
}

// NewTrackableMap creates a map whose dependencies are named after name.
func NewTrackableMap[K comparable, V any](e *Engine, name string) *TrackableMap[K, V] {
	return &TrackableMap[K, V]{engine: e, name: name, m: make(map[K]V)}
}

// Dependency returns the dependency name of key k.
func (t *TrackableMap[K, V]) Dependency(k K) string {
	return fmt.Sprintf("%s[%v]", t.name, k)
}

// Get returns the value of k and records the read on f.
func (t *TrackableMap[K, V]) Get(f *Frame, k K) (V, bool) {
	f.Read(t.Dependency(k))
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[k]
	return v, ok
}

// Set stores v under k.
func (t *TrackableMap[K, V]) Set(k K, v V) {
	t.mu.Lock()
	t.m[k] = v
	t.mu.Unlock()
	t.engine.Invalidate(t.Dependency(k))
}

// Delete removes k. Deleting a missing key invalidates nothing.
func (t *TrackableMap[K, V]) Delete(k K) {
	t.mu.Lock()
	_, ok := t.m[k]
	delete(t.m, k)
	t.mu.Unlock()
	if ok {
		t.engine.Invalidate(t.Dependency(k))
	}
}

// Clear removes all keys.
func (t *TrackableMap[K, V]) Clear() {
	t.mu.Lock()
	deps := make([]string, 0, len(t.m))
	for k := range t.m {
		deps = append(deps, t.Dependency(k))
	}
	t.m = make(map[K]V)
	t.mu.Unlock()
	if len(deps) > 0 {
		t.engine.Invalidate(deps...)
	}
}

// Len returns the number of keys. The read is not tracked.
func (t *TrackableMap[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
