// Package watcher reports changes of configuration files and script
// directories.
//
// Files are watched through their parent directory so that editors saving
// by rename are still seen. Bursts of events for one path are coalesced and
// delivered once the path was quiet for the debounce interval.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/cellstorm/internal/logging"
)

// ErrClosed indicates use of a closed watcher.
var ErrClosed = errors.New("watcher closed")

// Event is a change of a watched path.
type Event struct {
	Path string
	Op   Operation
	Time time.Time
}

// Operation is the kind of change.
type Operation int

// Operations.
const (
	OpWrite Operation = iota
	OpCreate
	OpRemove
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler receives coalesced events.
type Handler func(Event)

// Watcher watches files and directories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *logging.Logger
	debounce time.Duration

	mu       sync.Mutex
	files    map[string]struct{}
	patterns map[string][]string
	dirs     map[string]struct{}
	handlers []Handler
	pending  map[string]Event
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a path must be quiet before its event is
// delivered. Zero delivers every event at once.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New starts a watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   logging.Nop(),
		debounce: 100 * time.Millisecond,
		files:    make(map[string]struct{}),
		patterns: make(map[string][]string),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]Event),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("watcher")
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch reports changes of the file at path, which need not exist yet.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.addDirLocked(filepath.Dir(abs)); err != nil {
		return err
	}
	w.files[abs] = struct{}{}
	return nil
}

// WatchDir reports changes of files in dir whose name matches pattern.
func (w *Watcher) WatchDir(dir, pattern string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.addDirLocked(abs); err != nil {
		return err
	}
	w.patterns[abs] = append(w.patterns[abs], pattern)
	return nil
}

func (w *Watcher) addDirLocked(dir string) error {
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// OnChange registers a handler.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var tick <-chan time.Time
	if w.debounce > 0 {
		t := time.NewTicker(w.debounce / 2)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("%v", err)
		case <-tick:
			w.flush(time.Now())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Operation
	switch {
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}
	path := filepath.Clean(ev.Name)
	if !w.matches(path) {
		return
	}
	e := Event{Path: path, Op: op, Time: time.Now()}
	if w.debounce == 0 {
		w.emit(e)
		return
	}
	w.queue(e)
}

func (w *Watcher) matches(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[path]; ok {
		return true
	}
	name := filepath.Base(path)
	for _, p := range w.patterns[filepath.Dir(path)] {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// queue coalesces e with a pending event of the same path: a removal wins,
// a creation is kept over later writes.
func (w *Watcher) queue(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.pending[e.Path]
	if ok && e.Op == OpWrite && prev.Op != OpWrite {
		e.Op = prev.Op
	}
	w.pending[e.Path] = e
}

// flush delivers the pending events that were quiet for the debounce
// interval.
func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	var ready []Event
	for path, e := range w.pending {
		if now.Sub(e.Time) >= w.debounce {
			ready = append(ready, e)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
	for _, e := range ready {
		w.emit(e)
	}
}

func (w *Watcher) emit(e Event) {
	w.mu.Lock()
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.Unlock()
	for _, h := range handlers {
		w.call(h, e)
	}
}

func (w *Watcher) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("handler panic for %s: %v", e.Path, r)
		}
	}()
	h(e)
}
