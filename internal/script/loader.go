package script

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/cellstorm/internal/config/watcher"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
)

// Pattern selects script files in a directory.
const Pattern = "*.lua"

// Loader runs script files and registers their editors with an engine.
// Editors of files loaded later win over earlier ones, so a reloaded file
// takes precedence.
type Loader struct {
	engine   *engine.Engine
	logger   *logging.Logger
	timeout  time.Duration
	onReload func()

	mu    sync.Mutex
	files map[string]*file
}

type file struct {
	path       string
	state      *State
	api        *api
	unregister []func()
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithScriptTimeout bounds every script run and editor build.
func WithScriptTimeout(d time.Duration) Option {
	return func(ld *Loader) { ld.timeout = d }
}

// WithOnReload sets a function called after the editors changed, to
// refresh open editors.
func WithOnReload(fn func()) Option {
	return func(ld *Loader) { ld.onReload = fn }
}

// NewLoader returns a loader registering with e.
func NewLoader(e *engine.Engine, opts ...Option) *Loader {
	l := &Loader{
		engine:  e,
		logger:  logging.Nop(),
		timeout: DefaultTimeout,
		files:   make(map[string]*file),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("script")
	return l
}

// LoadDir loads every script in dir in name order. A failing file does not
// stop the others; the failures are joined.
func (l *Loader) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	var errs []error
	for _, p := range paths {
		if err := l.LoadFile(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadFile runs the script at path and replaces the editors it registered
// before. On failure the previous editors stay registered.
func (l *Loader) LoadFile(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	f := &file{path: path, state: NewState(WithTimeout(l.timeout)), api: newAPI()}
	err = f.state.Run(func(L *lua.LState) error {
		f.api.install(L)
		return L.DoFile(path)
	})
	if err != nil {
		f.state.Close()
		return &ScriptError{Path: path, Err: err}
	}
	editors, err := l.editors(f)
	if err != nil {
		f.state.Close()
		return &ScriptError{Path: path, Err: err}
	}

	l.mu.Lock()
	for _, ed := range editors {
		f.unregister = append(f.unregister, l.engine.Register(ed))
	}
	old := l.files[path]
	l.files[path] = f
	l.mu.Unlock()

	if old != nil {
		old.release()
	}
	l.logger.Info("loaded %d editors from %s", len(editors), path)
	l.reloaded()
	return nil
}

// Unload removes the editors of the script at path.
func (l *Loader) Unload(path string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}
	l.mu.Lock()
	f := l.files[path]
	delete(l.files, path)
	l.mu.Unlock()
	if f == nil {
		return
	}
	f.release()
	l.logger.Info("unloaded %s", path)
	l.reloaded()
}

// Files returns the loaded scripts, sorted.
func (l *Loader) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.files))
	for p := range l.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Close unregisters every script.
func (l *Loader) Close() {
	l.mu.Lock()
	files := l.files
	l.files = make(map[string]*file)
	l.mu.Unlock()
	for _, f := range files {
		f.release()
	}
}

// Watch reloads scripts in dirs when they change until ctx is done.
func (l *Loader) Watch(ctx context.Context, dirs ...string) error {
	w, err := watcher.New(watcher.WithLogger(l.logger))
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.WatchDir(d, Pattern); err != nil {
			_ = w.Close()
			return err
		}
	}
	w.OnChange(func(ev watcher.Event) {
		switch ev.Op {
		case watcher.OpRemove, watcher.OpRename:
			l.Unload(ev.Path)
		default:
			if err := l.LoadFile(ev.Path); err != nil {
				l.logger.Warn("reload failed, keeping previous editors: %v", err)
			}
		}
	})
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	return nil
}

func (l *Loader) reloaded() {
	if l.onReload != nil {
		l.onReload()
	}
}

// editors resolves the definitions of f against the engine's language.
func (l *Loader) editors(f *file) ([]engine.ConceptEditor, error) {
	lang := l.engine.Language()
	var out []engine.ConceptEditor
	for _, def := range f.api.defs {
		var c *model.Concept
		if def.concept != "" {
			var ok bool
			if c, ok = lang.Concept(def.concept); !ok {
				return nil, fmt.Errorf("%w %q", ErrUnknownConcept, def.concept)
			}
		}
		out = append(out, engine.ConceptEditor{Concept: c, Build: l.build(f, def)})
	}
	return out, nil
}

// build calls the editor function of def for each concrete concept. A
// failing function yields no template and the engine shows an error cell.
func (l *Loader) build(f *file, def definition) func(*model.Concept) engine.Template {
	return func(c *model.Concept) engine.Template {
		var t engine.Template
		err := f.state.Run(func(L *lua.LState) error {
			ret, err := call(L, def.build, conceptTable(L, c))
			if err != nil {
				return err
			}
			t, err = f.api.toTemplate(ret)
			return err
		})
		if err != nil {
			l.logger.Warn("editor for %s in %s: %v", c, f.path, err)
			return nil
		}
		return t
	}
}

func (f *file) release() {
	for _, u := range f.unregister {
		u()
	}
	f.state.Close()
}
