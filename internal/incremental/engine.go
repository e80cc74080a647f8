package incremental

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/cellstorm/internal/logging"
)

// Engine caches computation results keyed by string and drops them when a
// dependency they read is invalidated. It is safe for concurrent use;
// concurrent computations of the same key run once.
type Engine struct {
	mu      sync.Mutex
	entries map[string]*entry
	rdeps   map[string]map[string]struct{}

	// epoch counts invalidations. invalidated records the epoch at which a
	// dependency was last invalidated, so a computation that read it while
	// it changed is not cached. running counts the computations in flight
	// by start epoch; invalidations older than all of them are forgotten.
	epoch       uint64
	invalidated map[string]uint64
	running     map[uint64]int

	group  singleflight.Group
	logger *logging.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry struct {
	value any
	deps  []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		entries:     make(map[string]*entry),
		rdeps:       make(map[string]map[string]struct{}),
		invalidated: make(map[string]uint64),
		running:     make(map[uint64]int),
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Frame records the dependencies of one running computation.
// A Frame belongs to the goroutine running the computation.
type Frame struct {
	key    string
	parent *Frame
	deps   map[string]struct{}
}

// Read records dep as a dependency of the computation. Reading on a nil
// Frame does nothing.
func (f *Frame) Read(dep string) {
	if f == nil {
		return
	}
	f.deps[dep] = struct{}{}
}

// Key returns the key being computed.
func (f *Frame) Key() string {
	if f == nil {
		return ""
	}
	return f.key
}

func (f *Frame) onStack(key string) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.key == key {
			return true
		}
	}
	return false
}

// Compute returns the cached value for key or runs fn to compute it. The
// key becomes a dependency of parent. Failed computations are not cached.
func Compute[T any](e *Engine, parent *Frame, key string, fn func(*Frame) (T, error)) (T, error) {
	var zero T
	if parent.onStack(key) {
		return zero, fmt.Errorf("%w: %s", ErrCycle, key)
	}
	parent.Read(key)

	e.mu.Lock()
	if en, ok := e.entries[key]; ok {
		e.mu.Unlock()
		e.hits.Add(1)
		return en.value.(T), nil
	}
	e.mu.Unlock()

	v, err, _ := e.group.Do(key, func() (any, error) {
		e.mu.Lock()
		if en, ok := e.entries[key]; ok {
			e.mu.Unlock()
			e.hits.Add(1)
			return en.value, nil
		}
		start := e.begin()
		e.mu.Unlock()
		defer func() {
			e.mu.Lock()
			e.end(start)
			e.mu.Unlock()
		}()

		e.misses.Add(1)
		f := &Frame{key: key, parent: parent, deps: make(map[string]struct{})}
		v, err := fn(f)
		if err != nil {
			return nil, err
		}
		e.store(key, v, f.deps, start)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (e *Engine) store(key string, v any, deps map[string]struct{}, start uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for dep := range deps {
		if e.invalidated[dep] > start {
			e.logger.Debug("not caching %s: %s changed while computing", key, dep)
			return
		}
	}
	en := &entry{value: v, deps: make([]string, 0, len(deps))}
	for dep := range deps {
		en.deps = append(en.deps, dep)
		set, ok := e.rdeps[dep]
		if !ok {
			set = make(map[string]struct{})
			e.rdeps[dep] = set
		}
		set[key] = struct{}{}
	}
	e.entries[key] = en
}

// begin registers a computation starting now. Callers hold mu.
func (e *Engine) begin() uint64 {
	e.running[e.epoch]++
	return e.epoch
}

// end unregisters a computation begun at start and forgets the
// invalidations no running computation can observe. Callers hold mu.
func (e *Engine) end(start uint64) {
	e.running[start]--
	if e.running[start] > 0 {
		return
	}
	delete(e.running, start)
	if len(e.running) == 0 {
		clear(e.invalidated)
		return
	}
	oldest := e.epoch
	for at := range e.running {
		oldest = min(oldest, at)
	}
	if start > oldest {
		return
	}
	for dep, at := range e.invalidated {
		if at <= oldest {
			delete(e.invalidated, dep)
		}
	}
}

// Invalidate drops every cached value that depends on any of deps,
// directly or through other cached values. It returns the number of
// dropped entries.
func (e *Engine) Invalidate(deps ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	dropped := 0
	queue := append([]string(nil), deps...)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if len(e.running) > 0 {
			e.invalidated[dep] = e.epoch
		}
		if e.drop(dep) {
			dropped++
		}
		for key := range e.rdeps[dep] {
			if e.drop(key) {
				dropped++
				queue = append(queue, key)
			}
		}
		delete(e.rdeps, dep)
	}
	if dropped > 0 {
		e.logger.Debug("invalidated %d entries", dropped)
	}
	return dropped
}

// drop removes a cached entry and its reverse edges. Callers hold mu.
func (e *Engine) drop(key string) bool {
	en, ok := e.entries[key]
	if !ok {
		return false
	}
	delete(e.entries, key)
	for _, dep := range en.deps {
		if set, ok := e.rdeps[dep]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(e.rdeps, dep)
			}
		}
	}
	return true
}

// Forget drops the entry for key and everything depending on it.
func (e *Engine) Forget(key string) int {
	return e.Invalidate(key)
}

// Clear drops all cached values.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	if len(e.running) > 0 {
		for key := range e.entries {
			e.invalidated[key] = e.epoch
		}
		for dep := range e.rdeps {
			e.invalidated[dep] = e.epoch
		}
	}
	e.entries = make(map[string]*entry)
	e.rdeps = make(map[string]map[string]struct{})
}

// Cached reports whether key has a cached value.
func (e *Engine) Cached(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[key]
	return ok
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	n := len(e.entries)
	e.mu.Unlock()
	return Stats{Entries: n, Hits: e.hits.Load(), Misses: e.misses.Load()}
}
