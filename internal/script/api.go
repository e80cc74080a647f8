package script

import (
	"fmt"
	"regexp"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/model"
)

const templateType = "cellstorm.template"

// definition is an editor declared by a script. An empty concept name
// declares the default editor.
type definition struct {
	concept string
	build   *lua.LFunction
}

// api holds the globals a script sees. It is only used under the lock of
// its State.
type api struct {
	defs []definition
	used map[engine.Template]bool
}

func newAPI() *api {
	return &api{used: make(map[engine.Template]bool)}
}

func (a *api) install(L *lua.LState) {
	L.NewTypeMetatable(templateType)
	for name, fn := range map[string]lua.LGFunction{
		"editor":     a.editor,
		"constant":   a.constant,
		"label":      a.label,
		"property":   a.property,
		"child":      a.child,
		"reference":  a.reference,
		"newline":    a.newline,
		"collection": a.collection(engine.Collection),
		"vertical":   a.collection(engine.Vertical),
		"indented":   a.collection(engine.Indented),
		"optional":   a.optional,
		"with":       a.with,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// editor(name, fn) declares fn as the editor of the named concept. The
// name "*" declares the default editor.
func (a *api) editor(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if name == "*" {
		name = ""
	}
	a.defs = append(a.defs, definition{concept: name, build: fn})
	return 0
}

func (a *api) constant(L *lua.LState) int {
	t := engine.Constant(L.CheckString(1))
	return a.push(L, engine.With(t, a.options(L, 2, nil)...))
}

func (a *api) label(L *lua.LState) int {
	t := engine.Label(L.CheckString(1))
	return a.push(L, engine.With(t, a.options(L, 2, nil)...))
}

// property(name, {placeholder=, validate=})
func (a *api) property(L *lua.LState) int {
	t := engine.Property(L.CheckString(1))
	opts := a.options(L, 2, map[string]func(lua.LValue){
		"placeholder": func(v lua.LValue) { t.Placeholder(optString(L, "placeholder", v)) },
		"validate": func(v lua.LValue) {
			re, err := regexp.Compile(optString(L, "validate", v))
			if err != nil {
				L.ArgError(2, "validate: "+err.Error())
			}
			t.Validate(re)
		},
	})
	return a.push(L, engine.With(t, opts...))
}

// child(link, {vertical=, separator=, placeholder=})
func (a *api) child(L *lua.LState) int {
	t := engine.Child(L.CheckString(1))
	opts := a.options(L, 2, map[string]func(lua.LValue){
		"vertical": func(v lua.LValue) {
			if optBool(L, "vertical", v) {
				t.Vertical()
			}
		},
		"separator":   func(v lua.LValue) { t.Separator(optString(L, "separator", v)) },
		"placeholder": func(v lua.LValue) { t.Placeholder(optString(L, "placeholder", v)) },
	})
	return a.push(L, engine.With(t, opts...))
}

// reference(link, {show=}) names the target by its show property, "name"
// by default.
func (a *api) reference(L *lua.LState) int {
	link := L.CheckString(1)
	show := "name"
	opts := a.options(L, 2, map[string]func(lua.LValue){
		"show": func(v lua.LValue) { show = optString(L, "show", v) },
	})
	t := engine.Reference(link, func(n model.Node) string {
		if v := n.Property(show); v != "" {
			return v
		}
		return string(n.ID())
	})
	return a.push(L, engine.With(t, opts...))
}

func (a *api) newline(L *lua.LState) int {
	return a.push(L, engine.NewLine())
}

func (a *api) collection(ctor func(...engine.Template) *engine.CollectionTemplate) lua.LGFunction {
	return func(L *lua.LState) int {
		return a.push(L, ctor(a.templates(L, 1)...))
	}
}

func (a *api) optional(L *lua.LState) int {
	return a.push(L, engine.Optional(a.templates(L, 1)...))
}

// with(t, opts) styles t and returns it.
func (a *api) with(L *lua.LState) int {
	t := checkTemplate(L, 1)
	engine.With(t, a.options(L, 2, nil)...)
	L.Push(L.Get(1))
	return 1
}

func (a *api) push(L *lua.LState, t engine.Template) int {
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(templateType))
	L.Push(ud)
	return 1
}

// templates returns the arguments from index on, each marked as used.
func (a *api) templates(L *lua.LState, from int) []engine.Template {
	var out []engine.Template
	for i := from; i <= L.GetTop(); i++ {
		out = append(out, a.take(L, i))
	}
	return out
}

// take marks the template at n as placed in a tree. A template can only
// be placed once.
func (a *api) take(L *lua.LState, n int) engine.Template {
	t := checkTemplate(L, n)
	if a.used[t] {
		L.ArgError(n, "template is already used")
	}
	a.used[t] = true
	return t
}

func checkTemplate(L *lua.LState, n int) engine.Template {
	ud := L.CheckUserData(n)
	t, ok := ud.Value.(engine.Template)
	if !ok {
		L.ArgError(n, "template expected")
	}
	return t
}

// toTemplate converts the result of an editor function.
func (a *api) toTemplate(v lua.LValue) (engine.Template, error) {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("editor returned %s, want a template", v.Type())
	}
	t, ok := ud.Value.(engine.Template)
	if !ok {
		return nil, fmt.Errorf("editor returned a foreign userdata")
	}
	if a.used[t] {
		return nil, fmt.Errorf("editor returned a template that is already used")
	}
	a.used[t] = true
	return t, nil
}

// options reads the table at n. Keys in specific are handed to their
// function; the others must be cell styles.
func (a *api) options(L *lua.LState, n int, specific map[string]func(lua.LValue)) []engine.TemplateOption {
	tbl := L.OptTable(n, nil)
	if tbl == nil {
		return nil
	}
	var opts []engine.TemplateOption
	tbl.ForEach(func(k, v lua.LValue) {
		key := lua.LVAsString(k)
		if fn, ok := specific[key]; ok {
			fn(v)
			return
		}
		style, ok := styles[key]
		if !ok {
			L.ArgError(n, "unknown option "+key)
		}
		opts = append(opts, style(L, key, v))
	})
	return opts
}

type styleFunc func(L *lua.LState, key string, v lua.LValue) engine.TemplateOption

var styles = map[string]styleFunc{
	"color":            stringStyle(celltree.TextColorKey),
	"background":       stringStyle(celltree.BackgroundColorKey),
	"placeholderColor": stringStyle(celltree.PlaceholderTextColorKey),
	"completion":       stringStyle(celltree.CodeCompletionTextKey),
	"nospace":          boolStyle(celltree.NoSpaceKey),
	"newline":          boolStyle(celltree.OnNewLineKey),
	"indent":           boolStyle(celltree.IndentChildrenKey),
	"selectable":       boolStyle(celltree.SelectableKey),
	"tab":              boolStyle(celltree.TabTargetKey),
}

func stringStyle(k celltree.Key[string]) styleFunc {
	return func(L *lua.LState, key string, v lua.LValue) engine.TemplateOption {
		return engine.Prop(k, optString(L, key, v))
	}
}

func boolStyle(k celltree.Key[bool]) styleFunc {
	return func(L *lua.LState, key string, v lua.LValue) engine.TemplateOption {
		return engine.Prop(k, optBool(L, key, v))
	}
}

func optString(L *lua.LState, key string, v lua.LValue) string {
	s, ok := v.(lua.LString)
	if !ok {
		L.RaiseError("option %s: string expected, got %s", key, v.Type())
	}
	return string(s)
}

func optBool(L *lua.LState, key string, v lua.LValue) bool {
	b, ok := v.(lua.LBool)
	if !ok {
		L.RaiseError("option %s: boolean expected, got %s", key, v.Type())
	}
	return bool(b)
}

// conceptTable describes c to an editor function.
func conceptTable(L *lua.LState, c *model.Concept) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(c.Name))
	t.RawSetString("abstract", lua.LBool(c.Abstract))
	t.RawSetString("description", lua.LString(c.ShortDescription))
	list := func(names []string) *lua.LTable {
		l := L.NewTable()
		for _, n := range names {
			l.Append(lua.LString(n))
		}
		return l
	}
	var super, children, refs []string
	for _, s := range c.AllConcepts()[1:] {
		super = append(super, s.Name)
	}
	for _, l := range c.AllChildLinks() {
		children = append(children, l.Name)
	}
	for _, r := range c.AllReferenceLinks() {
		refs = append(refs, r.Name)
	}
	t.RawSetString("super", list(super))
	t.RawSetString("properties", list(c.AllProperties()))
	t.RawSetString("children", list(children))
	t.RawSetString("references", list(refs))
	return t
}
