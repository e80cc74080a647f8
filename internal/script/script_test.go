package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/lang/expr"
	"github.com/dshills/cellstorm/internal/model"
)

type fixture struct {
	lang   *expr.Language
	m      *model.Memory
	e      *engine.Engine
	loader *Loader
	suite  model.NodeID
}

func newFixture(t *testing.T, assertions ...string) *fixture {
	t.Helper()
	f := &fixture{lang: expr.New(), m: model.NewMemory()}
	f.e = engine.New(f.lang.Language)
	f.lang.Register(f.e)
	f.loader = NewLoader(f.e)
	t.Cleanup(f.loader.Close)
	var err error
	if f.suite, err = f.lang.NewSuite(f.m, "s", assertions...); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) render(t *testing.T) string {
	t.Helper()
	c := f.e.Open(f.m, f.suite)
	if _, err := c.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	var words []string
	for d := range celltree.Descendants(c.Tree().Root(), false) {
		if d.Type() != celltree.TypeText {
			continue
		}
		text := celltree.Get(d, celltree.TextKey)
		if text == "" {
			text = celltree.Get(d, celltree.PlaceholderTextKey)
		}
		words = append(words, text)
	}
	return strings.Join(words, " ")
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const brackets = `
editor("Parens", function(c)
  return collection(
    constant("[", {nospace = true}),
    child("inner"),
    constant("]", {nospace = true}))
end)

editor("TrueLiteral", function() return constant("yes", {color = "green"}) end)
`

func TestLoadFileRegistersEditors(t *testing.T) {
	f := newFixture(t, "(true)")
	if got, want := f.render(t), "suite s assert ( true )"; got != want {
		t.Fatalf("builtin render = %q, want %q", got, want)
	}
	path := writeScript(t, t.TempDir(), "brackets.lua", brackets)
	if err := f.loader.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if got, want := f.render(t), "suite s assert [ yes ]"; got != want {
		t.Errorf("scripted render = %q, want %q", got, want)
	}
	if files := f.loader.Files(); len(files) != 1 || files[0] != path {
		t.Errorf("Files = %v", files)
	}

	f.loader.Unload(path)
	if got, want := f.render(t), "suite s assert ( true )"; got != want {
		t.Errorf("render after Unload = %q, want %q", got, want)
	}
}

func TestReloadReplacesEditors(t *testing.T) {
	f := newFixture(t, "true")
	dir := t.TempDir()
	path := writeScript(t, dir, "t.lua", `editor("TrueLiteral", function() return constant("yes") end)`)
	if err := f.loader.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	writeScript(t, dir, "t.lua", `editor("TrueLiteral", function() return constant("TRUE") end)`)
	if err := f.loader.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if got, want := f.render(t), "suite s assert TRUE"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}

	writeScript(t, dir, "t.lua", `editor("TrueLiteral", function(`)
	var se *ScriptError
	if err := f.loader.LoadFile(path); !errors.As(err, &se) {
		t.Fatalf("err = %v, want a ScriptError", err)
	}
	if got, want := f.render(t), "suite s assert TRUE"; got != want {
		t.Errorf("render after a failed reload = %q, want %q", got, want)
	}
}

func TestUnknownConcept(t *testing.T) {
	f := newFixture(t)
	path := writeScript(t, t.TempDir(), "x.lua", `editor("Nope", function() return constant("x") end)`)
	if err := f.loader.LoadFile(path); !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("err = %v, want ErrUnknownConcept", err)
	}
	if len(f.loader.Files()) != 0 {
		t.Error("a failed file was kept")
	}
}

func TestEditorFailuresShowErrorCells(t *testing.T) {
	tests := map[string]string{
		"runtime error":  `editor("TrueLiteral", function() error("boom") end)`,
		"not a template": `editor("TrueLiteral", function() return 42 end)`,
		"reused template": `
local k = constant("x")
editor("TrueLiteral", function() return collection(k, k) end)`,
		"bad option":  `editor("TrueLiteral", function() return constant("x", {size = 3}) end)`,
		"bad pattern": `editor("TrueLiteral", function() return property("value", {validate = "("}) end)`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "true")
			if err := f.loader.LoadFile(writeScript(t, t.TempDir(), "e.lua", src)); err != nil {
				t.Fatal(err)
			}
			if got := f.render(t); !strings.Contains(got, "<ERROR: ") {
				t.Errorf("render = %q, want an error cell", got)
			}
		})
	}
}

func TestConceptTable(t *testing.T) {
	f := newFixture(t, "1 + 2")
	path := writeScript(t, t.TempDir(), "ops.lua", `
local ops = {Plus = "plus"}
editor("BinaryExpression", function(c)
  assert(c.super[1] == "BinaryExpression")
  assert(c.children[1] == "left" and c.children[2] == "right")
  return collection(child("left"), label(ops[c.name] or c.name), child("right"))
end)
`)
	if err := f.loader.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if got, want := f.render(t), "suite s assert 1 plus 2"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestChildOptions(t *testing.T) {
	f := newFixture(t)
	err := f.m.Write(func() error {
		s, err := f.m.Writable(f.suite)
		if err != nil {
			return err
		}
		_, err = s.AddNewChild("assertions", 0, f.lang.Assertion)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	path := writeScript(t, t.TempDir(), "a.lua", `
editor("Assertion", function()
  return collection(constant("check"), child("condition", {placeholder = "<cond>"}))
end)
`)
	if err := f.loader.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if got, want := f.render(t), "suite s check <cond>"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestLoadDirJoinsErrors(t *testing.T) {
	f := newFixture(t, "(true)")
	dir := t.TempDir()
	writeScript(t, dir, "a.lua", brackets)
	writeScript(t, dir, "b.lua", `this is not lua`)
	writeScript(t, dir, "notes.txt", `ignored`)
	err := f.loader.LoadDir(dir)
	var se *ScriptError
	if !errors.As(err, &se) || filepath.Base(se.Path) != "b.lua" {
		t.Fatalf("err = %v, want the error of b.lua", err)
	}
	if got, want := f.render(t), "suite s assert [ yes ]"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestSandbox(t *testing.T) {
	s := NewState()
	defer s.Close()
	if err := s.DoString(`assert(os == nil and io == nil and debug == nil)
assert(dofile == nil and loadfile == nil and load == nil and require == nil)
assert(string.upper("a") == "A" and math.max(1, 2) == 2)`); err != nil {
		t.Error(err)
	}
}

func TestTimeout(t *testing.T) {
	s := NewState(WithTimeout(50 * time.Millisecond))
	defer s.Close()
	if err := s.DoString(`while true do end`); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if err := s.DoString(`x = 1`); err != nil {
		t.Errorf("state unusable after a timeout: %v", err)
	}
	s.Close()
	if err := s.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("err = %v, want ErrStateClosed", err)
	}
}

func TestWatchLoadsNewScripts(t *testing.T) {
	lang := expr.New()
	e := engine.New(lang.Language)
	lang.Register(e)
	reloaded := make(chan struct{}, 8)
	l := NewLoader(e, WithOnReload(func() { reloaded <- struct{}{} }))
	defer l.Close()

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Watch(ctx, dir); err != nil {
		t.Fatal(err)
	}
	path := writeScript(t, dir, "w.lua", brackets)
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("script not loaded")
	}
	if files := l.Files(); len(files) != 1 || files[0] != path {
		t.Errorf("Files = %v", files)
	}
}
