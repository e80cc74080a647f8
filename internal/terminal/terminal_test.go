package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/config"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/frontend"
	"github.com/dshills/cellstorm/internal/input"
	"github.com/dshills/cellstorm/internal/lang/expr"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/service"
)

const (
	screenWidth  = 60
	screenHeight = 8
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.SetSize(screenWidth, screenHeight)
	t.Cleanup(s.Fini)
	return s
}

func row(s tcell.SimulationScreen, y int) string {
	cells, w, _ := s.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

type fixture struct {
	ed    *frontend.Editor
	term  *Terminal
	sim   tcell.SimulationScreen
	suite model.NodeID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	lang := expr.New()
	m := model.NewMemory()
	e := engine.New(lang.Language)
	lang.Register(e)
	svc := service.New(e, m)
	suite, err := lang.NewSuite(m, "demo", "1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{sim: newScreen(t), suite: suite}
	f.term = New(f.sim, opts...)
	f.ed = frontend.New(svc, frontend.WithOnChange(f.term.Refresh))
	ctx := context.Background()
	if err := f.ed.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = f.ed.Close()
		_ = svc.Close()
	})
	if err := f.ed.Open(ctx, string(suite)); err != nil {
		t.Fatal(err)
	}
	return f
}

// nameCell returns the cell showing the suite name and its position.
func (f *fixture) nameCell(t *testing.T) (c *celltree.Cell, line, col int) {
	t.Helper()
	f.ed.WithTree(func(tree *frontend.Tree) {
		cells := tree.Resolve(celltree.PropertyRef{Node: string(f.suite), Property: "name"})
		if len(cells) == 0 {
			return
		}
		c = cells[0]
		p, _ := tree.Position(c.ID())
		line, col = p.Line, p.Column
	})
	if c == nil {
		t.Fatal("name cell not shown")
	}
	return c, line, col
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConvertKey(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want input.KeyEvent
	}{
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), input.Rune('x')},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), input.Special(input.KeySpace, input.ModNone)},
		{"ctrl space", tcell.NewEventKey(tcell.KeyCtrlSpace, 0, tcell.ModCtrl), input.Special(input.KeySpace, input.ModCtrl)},
		{"backspace2", tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), input.Special(input.KeyBackspace, input.ModNone)},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), input.Special(input.KeyTab, input.ModShift)},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), input.Special(input.KeyEnter, input.ModNone)},
		{"f5", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), input.Special(input.KeyF5, input.ModNone)},
		{"shift left", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModShift), input.Special(input.KeyLeft, input.ModShift)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertKey(tt.ev)
			if !ok || got != tt.want {
				t.Errorf("convertKey = %v, %v; want %v", got, ok, tt.want)
			}
		})
	}

	got, ok := convertKey(tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl))
	if !ok || got.Key != input.KeyRune || got.Rune != 'a' || !got.Modifiers.HasCtrl() {
		t.Errorf("Ctrl+A = %v, %v", got, ok)
	}
	if got.TypedText() != "" {
		t.Errorf("Ctrl+A types %q", got.TypedText())
	}
	if _, ok := convertKey(tcell.NewEventKey(tcell.KeyInsert, 0, tcell.ModNone)); ok {
		t.Error("Insert converted")
	}
}

func TestTheme(t *testing.T) {
	th := DefaultTheme()
	if got := th.resolve("red", th.Text); got != th.Error {
		t.Errorf("red = %v, want the error color %v", got, th.Error)
	}
	if got := th.resolve("", th.Placeholder); got != th.Placeholder {
		t.Errorf("empty name = %v, want the fallback", got)
	}
	if got := th.resolve("#102030", th.Text).Hex(); got != "#102030" {
		t.Errorf("hex = %s", got)
	}
	if got := th.resolve("no-such-color", th.Text); got != th.Text {
		t.Errorf("unknown name = %v, want the fallback", got)
	}

	cfg := config.Default().Theme
	cfg.Caret = "white"
	if _, err := NewTheme(cfg); err == nil || !strings.Contains(err.Error(), "caret") {
		t.Errorf("NewTheme: err = %v, want a caret error", err)
	}
}

func TestDrawShowsDocument(t *testing.T) {
	f := newFixture(t)
	f.term.Draw(f.ed)
	var doc []string
	for y := 0; y < screenHeight-1; y++ {
		doc = append(doc, row(f.sim, y))
	}
	text := strings.Join(doc, "\n")
	for _, want := range []string{"suite", "demo", "assert", "1", "+", "2"} {
		if !strings.Contains(text, want) {
			t.Errorf("screen lacks %q:\n%s", want, text)
		}
	}
	if got := row(f.sim, screenHeight-1); !strings.Contains(got, "Ctrl+Q quit") {
		t.Errorf("status line = %q", got)
	}
}

func TestClickPlacesCaret(t *testing.T) {
	f := newFixture(t)
	f.term.Draw(f.ed)
	c, line, col := f.nameCell(t)

	f.term.Handle(f.ed, tcell.NewEventMouse(col+2, line, tcell.Button1, tcell.ModNone))
	waitFor(t, "the caret", func() bool {
		s, ok := f.ed.Selection().(frontend.CaretSelection)
		return ok && s.Cell == c.ID() && s.End == 2
	})

	// Holding the button is not a second click.
	f.ed.Select(frontend.Caret(c, 0))
	f.term.Handle(f.ed, tcell.NewEventMouse(col+3, line, tcell.Button1, tcell.ModNone))
	time.Sleep(20 * time.Millisecond)
	if s, ok := f.ed.Selection().(frontend.CaretSelection); !ok || s.End != 0 {
		t.Errorf("drag moved the caret: %v", f.ed.Selection())
	}
}

func TestCopySelection(t *testing.T) {
	var copied []string
	f := newFixture(t, WithClipboard(func(s string) error {
		copied = append(copied, s)
		return nil
	}))
	ctrlC := tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)

	f.term.Handle(f.ed, ctrlC)
	if len(copied) != 0 {
		t.Errorf("copied %q without a selection", copied)
	}
	if got := row(f.sim, screenHeight-1); !strings.Contains(got, "nothing selected") {
		t.Errorf("status line = %q", got)
	}

	c, _, _ := f.nameCell(t)
	f.ed.Select(frontend.CaretRange(c, 0, 4))
	f.term.Handle(f.ed, ctrlC)
	if len(copied) != 1 || copied[0] != "demo" {
		t.Errorf("copied = %q, want [demo]", copied)
	}
	if got := row(f.sim, screenHeight-1); !strings.Contains(got, "copied 4 characters") {
		t.Errorf("status line = %q", got)
	}
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	if f.term.Handle(f.ed, tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)) {
		t.Error("Ctrl+Q did not quit")
	}
	if !f.term.Handle(f.ed, tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("q quit")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	term := New(tcell.NewSimulationScreen("UTF-8"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx, f.ed) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Error(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func line(spans ...frontend.Span) frontend.ViewLine {
	return frontend.ViewLine{Spans: spans}
}

func TestMenu(t *testing.T) {
	term := New(newScreen(t))
	sim := term.screen.(tcell.SimulationScreen)
	v := frontend.View{
		Lines: []frontend.ViewLine{
			line(frontend.Span{Text: "x", Column: 0}, frontend.Span{Text: "=", Column: 2}, frontend.Span{Text: "1", Column: 4}),
		},
		Cursor: frontend.Cursor{Line: 0, Column: 4, Visible: true},
		Menu: &frontend.MenuView{
			Line:   0,
			Column: 4,
			Entries: []protocol.CompletionEntry{
				{ID: 1, MatchingText: "true"},
				{ID: 2, MatchingText: "false", Description: "the boolean constant false"},
			},
			Selected: 1,
		},
	}
	term.draw(v)
	if got := row(sim, 0); got != "x = 1" {
		t.Errorf("row 0 = %q", got)
	}
	if got := row(sim, 1); !strings.HasPrefix(got, "     true") {
		t.Errorf("row 1 = %q", got)
	}
	if got := row(sim, 2); !strings.HasPrefix(got, "     false") || !strings.Contains(got, "the boolean constant false") {
		t.Errorf("row 2 = %q", got)
	}
	cx, cy, visible := sim.GetCursor()
	if !visible || cx != 4 || cy != 0 {
		t.Errorf("cursor = %d,%d,%v", cx, cy, visible)
	}
}

func TestMenuDescriptionBesideSelection(t *testing.T) {
	term := New(newScreen(t))
	sim := term.screen.(tcell.SimulationScreen)
	v := frontend.View{
		Lines: []frontend.ViewLine{line(frontend.Span{Text: "x"})},
		Menu: &frontend.MenuView{
			Entries: []protocol.CompletionEntry{
				{ID: 1, MatchingText: "a"},
				{ID: 2, MatchingText: "b"},
				{ID: 3, MatchingText: "c", Description: "third"},
			},
			Selected: 2,
		},
	}
	term.draw(v)
	if got := row(sim, 1); strings.Contains(got, "third") {
		t.Errorf("row 1 = %q, description drawn beside the first entry", got)
	}
	if got := row(sim, 3); !strings.HasPrefix(got, " c") || !strings.Contains(got, "third") {
		t.Errorf("row 3 = %q, want the selected entry and its description", got)
	}
}

func TestStatusHintsFit(t *testing.T) {
	tests := []struct {
		width int
		want  string
	}{
		{5, "Ctrl+Q quit"},
		{20, "Ctrl+Q quit"},
		{32, "Ctrl+Q quit  Ctrl+Space complete"},
		{200, "Ctrl+Q quit  Ctrl+Space complete  Tab next  Ctrl+C copy  F5 reload layout"},
	}
	for _, tt := range tests {
		if got := fitHints(tt.width); got != tt.want {
			t.Errorf("fitHints(%d) = %q, want %q", tt.width, got, tt.want)
		}
	}

	term := New(newScreen(t))
	sim := term.screen.(tcell.SimulationScreen)
	term.draw(frontend.View{Cursor: frontend.Cursor{Line: 9, Column: 99, Visible: true}})
	got := row(sim, screenHeight-1)
	if !strings.HasPrefix(got, " Ctrl+Q quit") || !strings.HasSuffix(got, "10:100") {
		t.Errorf("status line = %q", got)
	}
}

func TestScrollFollowsCursor(t *testing.T) {
	term := New(newScreen(t))
	sim := term.screen.(tcell.SimulationScreen)
	var lines []frontend.ViewLine
	for i := 0; i < 20; i++ {
		lines = append(lines, line(frontend.Span{Text: string(rune('a' + i))}))
	}
	v := frontend.View{Lines: lines, Cursor: frontend.Cursor{Line: 15, Visible: true}}
	term.draw(v)
	rows := screenHeight - 1
	if term.scroll != 15-rows+1 {
		t.Errorf("scroll = %d", term.scroll)
	}
	if got := row(sim, rows-1); got != "p" {
		t.Errorf("last row = %q, want the cursor line", got)
	}

	// The wheel moves the view while the cursor stays put.
	term.scroll = 0
	term.draw(v)
	if got := row(sim, 0); got != "a" {
		t.Errorf("first row = %q after scrolling up", got)
	}
}
