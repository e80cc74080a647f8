package frontend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/input"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// fakeService edits a backend cell tree directly. Text changes go to the
// TextKey of the addressed cell; the caret follows the cell's references.
type fakeService struct {
	t     *testing.T
	build func(root *celltree.MutableCell)

	mu       sync.Mutex
	bt       *celltree.BackendTree
	seq      uint64
	calls    []string
	entries  []protocol.CompletionEntry
	executed []int
	closed   int
}

func newFakeService(t *testing.T, build func(root *celltree.MutableCell)) *fakeService {
	return &fakeService{t: t, build: build, bt: celltree.NewBackendTree()}
}

func (f *fakeService) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// update runs fn as one pass and returns the sequenced result. Must run
// with f.mu held.
func (f *fakeService) update(fn func(root *celltree.MutableCell)) *protocol.EditorUpdate {
	ops, err := f.bt.RunUpdate(func() error {
		fn(f.bt.MutableRoot())
		return nil
	})
	if err != nil {
		f.t.Errorf("RunUpdate: %v", err)
	}
	f.seq++
	return &protocol.EditorUpdate{Seq: f.seq, Changes: ops}
}

func (f *fakeService) mutable(id celltree.ID) *celltree.MutableCell {
	c, err := f.bt.Cell(id)
	if err != nil {
		f.t.Errorf("cell %d: %v", id, err)
		return nil
	}
	return f.bt.Mutable(c)
}

func (f *fakeService) OpenNode(ctx context.Context, editor protocol.EditorID, node string) (<-chan *protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open %s", node)
	stream := make(chan *protocol.EditorUpdate, 16)
	stream <- f.update(f.build)
	return stream, nil
}

func (f *fakeService) CloseEditor(ctx context.Context, editor protocol.EditorID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeService) NavigateTab(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("tab %d %v", cell, forward)
	return f.update(func(*celltree.MutableCell) {}), nil
}

func (f *fakeService) ExecuteDelete(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete %d %v", cell, forward)
	return f.update(func(*celltree.MutableCell) {
		if c := f.mutable(cell); c != nil {
			if err := c.Delete(); err != nil {
				f.t.Error(err)
			}
		}
	}), nil
}

func (f *fakeService) ExecuteInsert(ctx context.Context, editor protocol.EditorID, cell celltree.ID) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("insert %d", cell)
	return f.update(func(*celltree.MutableCell) {}), nil
}

func (f *fakeService) replace(cell celltree.ID, r protocol.Range, text string) *protocol.EditorUpdate {
	var refs []celltree.Reference
	u := f.update(func(*celltree.MutableCell) {
		c := f.mutable(cell)
		if c == nil {
			return
		}
		refs = c.References()
		old := celltree.Get(c.Cell, celltree.TextKey)
		celltree.Set(c, celltree.TextKey, textutil.ReplaceRange(old, r.Start, r.End, text))
	})
	return u.WithSelection(protocol.AtIndex(refs, r.Start+textutil.Len(text)))
}

func (f *fakeService) ProcessTypedText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("type %d %v %q", cell, r, text)
	return f.replace(cell, r, text), nil
}

func (f *fakeService) ReplaceText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string, triggerCompletion bool) (protocol.ServiceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("replace %d %v %q", cell, r, text)
	return protocol.ServiceResult{Result: true, Update: f.replace(cell, r, text)}, nil
}

func (f *fakeService) TriggerCodeCompletion(ctx context.Context, editor protocol.EditorID, cell celltree.ID, caret int) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("complete %d %d", cell, caret)
	u := f.update(func(*celltree.MutableCell) {})
	u.Menu = &protocol.CompletionMenuTrigger{Anchor: cell, Position: protocol.CompletionLeft}
	u.Entries = f.entries
	return u, nil
}

func (f *fakeService) UpdateCodeCompletionActions(ctx context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.update(func(*celltree.MutableCell) {})
	u.Entries = f.entries
	return u, nil
}

func (f *fakeService) HasCodeCompletionActions(ctx context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Matches(pattern) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeService) ExecuteCodeCompletionAction(ctx context.Context, editor protocol.EditorID, id int) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, id)
	return f.update(func(*celltree.MutableCell) {}), nil
}

func (f *fakeService) ResetState(ctx context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reset")
	return f.update(func(*celltree.MutableCell) {}), nil
}

func (f *fakeService) Flush(ctx context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("flush")
	return f.update(func(*celltree.MutableCell) {}), nil
}

var _ protocol.Service = (*fakeService)(nil)

func textCell(t *testing.T, parent *celltree.MutableCell, text string, refs ...celltree.Reference) *celltree.MutableCell {
	t.Helper()
	c, err := parent.AddNewChild(parent.ChildCount())
	if err != nil {
		t.Fatal(err)
	}
	celltree.Set(c, celltree.TypeKey, celltree.TypeText)
	celltree.Set(c, celltree.TextKey, text)
	if len(refs) > 0 {
		celltree.Set(c, celltree.ReferencesKey, refs)
	}
	return c
}

// threeWords builds "a bc d".
func threeWords(t *testing.T) func(root *celltree.MutableCell) {
	return func(root *celltree.MutableCell) {
		textCell(t, root, "a", prop("a", "v"))
		textCell(t, root, "bc", prop("bc", "v"))
		textCell(t, root, "d", prop("d", "v"))
	}
}

func startEditor(t *testing.T, svc protocol.Service) (*Editor, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	e := New(svc)
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if err := e.Open(ctx, "doc"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e, ctx
}

func selectRef(t *testing.T, e *Editor, ref celltree.Reference, pos int) {
	t.Helper()
	var sel Selection
	e.WithTree(func(tree *Tree) {
		if cells := tree.Resolve(ref); len(cells) > 0 {
			sel = Caret(cells[0], pos)
		}
	})
	if sel == nil {
		t.Fatalf("no cell for %v", ref)
	}
	e.Select(sel)
}

func caretOf(t *testing.T, e *Editor) CaretSelection {
	t.Helper()
	s, ok := e.Selection().(CaretSelection)
	if !ok {
		t.Fatalf("selection = %v, want a caret", e.Selection())
	}
	return s
}

func cellText(e *Editor, id celltree.ID) string {
	var text string
	e.WithTree(func(tree *Tree) {
		if c, err := tree.Cell(id); err == nil {
			text = celltree.Get(c, celltree.TextKey)
		}
	})
	return text
}

func press(t *testing.T, ctx context.Context, e *Editor, evs ...input.KeyEvent) {
	t.Helper()
	for _, ev := range evs {
		if err := e.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("%v: %v", ev, err)
		}
	}
}

func TestEditorLifecycle(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e := New(svc)
	ctx := context.Background()
	if err := e.Open(ctx, "doc"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Open before Start = %v, want ErrNotStarted", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}
	if err := e.Flush(ctx); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Flush before Open = %v, want ErrNotOpen", err)
	}
	if err := e.Open(ctx, "doc"); err != nil {
		t.Fatal(err)
	}
	if got := e.Text(); got != "a bc d" {
		t.Errorf("Text = %q", got)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if svc.closed != 1 {
		t.Errorf("CloseEditor called %d times", svc.closed)
	}
	if err := e.Flush(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
	if e.Post(input.Rune('x')) {
		t.Error("Post accepted an event after Close")
	}
}

func TestBackspaceInsideCell(t *testing.T) {
	ref := prop("expr", "value")
	svc := newFakeService(t, func(root *celltree.MutableCell) {
		textCell(t, root, "1+2", ref)
	})
	e, ctx := startEditor(t, svc)
	selectRef(t, e, ref, 1)

	press(t, ctx, e, input.Special(input.KeyBackspace, input.ModNone))

	calls := svc.Calls()
	if last := calls[len(calls)-1]; last != fmt.Sprintf("replace %d [0,1) \"\"", caretOf(t, e).Cell) {
		t.Errorf("last call = %q", last)
	}
	if got := e.Text(); got != "+2" {
		t.Errorf("Text = %q, want %q", got, "+2")
	}
	if s := caretOf(t, e); s.End != 0 || !s.IsEmpty() {
		t.Errorf("caret = %v, want offset 0", s)
	}
}

func TestDeleteRangeAndTyping(t *testing.T) {
	ref := prop("name", "value")
	svc := newFakeService(t, func(root *celltree.MutableCell) {
		textCell(t, root, "hello", ref)
	})
	e, ctx := startEditor(t, svc)
	selectRef(t, e, ref, 4)

	press(t, ctx, e,
		input.Special(input.KeyLeft, input.ModShift),
		input.Special(input.KeyLeft, input.ModShift),
	)
	if got := e.SelectedText(); got != "ll" {
		t.Fatalf("SelectedText = %q, want %q", got, "ll")
	}
	press(t, ctx, e, input.Special(input.KeyDelete, input.ModNone))
	if got := e.Text(); got != "heo" {
		t.Errorf("after deleting the range: %q", got)
	}

	press(t, ctx, e, input.Type("LL")...)
	if got := e.Text(); got != "heLLo" {
		t.Errorf("after typing: %q", got)
	}
	if s := caretOf(t, e); s.End != 4 {
		t.Errorf("caret = %v, want offset 4", s)
	}
}

func TestDeleteAtCellBoundary(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("bc", "v"), 2)
	bc := caretOf(t, e).Cell

	press(t, ctx, e, input.Special(input.KeyDelete, input.ModNone))

	calls := svc.Calls()
	if last := calls[len(calls)-1]; last != fmt.Sprintf("delete %d true", bc) {
		t.Errorf("last call = %q", last)
	}
	if got := e.Text(); got != "a d" {
		t.Errorf("Text = %q", got)
	}
	s := caretOf(t, e)
	if cellText(e, s.Cell) != "a" || s.End != 1 {
		t.Errorf("caret = %v in %q, want the end of the left neighbour", s, cellText(e, s.Cell))
	}
}

func TestArrowKeysCrossCells(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("a", "v"), 1)

	press(t, ctx, e, input.Special(input.KeyRight, input.ModNone))
	s := caretOf(t, e)
	if cellText(e, s.Cell) != "bc" || s.End != 0 {
		t.Fatalf("after Right: %v in %q", s, cellText(e, s.Cell))
	}

	press(t, ctx, e, input.Special(input.KeyEnd, input.ModNone))
	if s := caretOf(t, e); s.End != 2 {
		t.Errorf("after End: %v", s)
	}
	press(t, ctx, e, input.Special(input.KeyHome, input.ModNone))
	if s := caretOf(t, e); s.End != 0 {
		t.Errorf("after Home: %v", s)
	}

	press(t, ctx, e, input.Special(input.KeyLeft, input.ModNone))
	s = caretOf(t, e)
	if cellText(e, s.Cell) != "a" || s.End != 1 {
		t.Errorf("after Left: %v in %q", s, cellText(e, s.Cell))
	}

	// Nothing before the first word.
	press(t, ctx, e, input.Special(input.KeyHome, input.ModNone), input.Special(input.KeyLeft, input.ModNone))
	if s := caretOf(t, e); cellText(e, s.Cell) != "a" || s.End != 0 {
		t.Errorf("Left at the start moved the caret: %v", s)
	}
}

func TestKeysUseCurrentSelection(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("a", "v"), 0)

	var a, d Selection
	e.WithTree(func(tree *Tree) {
		a = Caret(tree.Resolve(prop("a", "v"))[0], 0)
		d = Caret(tree.Resolve(prop("d", "v"))[0], 0)
	})

	// The key waits for the editor state while the selection moves to d.
	e.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- e.HandleEvent(ctx, input.Special(input.KeyRight, input.ModNone)) }()
	time.Sleep(20 * time.Millisecond)
	e.selectLocked(d)
	e.mu.Unlock()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if s := caretOf(t, e); cellText(e, s.Cell) != "d" || s.End != 1 {
		t.Errorf("Right moved %v in %q, want the end of d", s, cellText(e, s.Cell))
	}

	stop := make(chan struct{})
	moved := make(chan struct{})
	go func() {
		defer close(moved)
		for {
			select {
			case <-stop:
				return
			default:
				e.Select(a)
			}
		}
	}()
	for range 100 {
		press(t, ctx, e, input.Special(input.KeyRight, input.ModNone))
	}
	close(stop)
	<-moved
	if _, ok := e.Selection().(CaretSelection); !ok {
		t.Errorf("selection = %v", e.Selection())
	}
}

func TestVerticalMovement(t *testing.T) {
	svc := newFakeService(t, func(root *celltree.MutableCell) {
		celltree.Set(root, celltree.LayoutKey, celltree.LayoutVertical)
		textCell(t, root, "first", prop("1", "v"))
		textCell(t, root, "xy", prop("2", "v"))
		textCell(t, root, "third", prop("3", "v"))
	})
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("1", "v"), 4)

	press(t, ctx, e, input.Special(input.KeyDown, input.ModNone))
	s := caretOf(t, e)
	if cellText(e, s.Cell) != "xy" || s.End != 2 {
		t.Fatalf("after Down: %v in %q", s, cellText(e, s.Cell))
	}
	press(t, ctx, e, input.Special(input.KeyDown, input.ModNone))
	s = caretOf(t, e)
	if cellText(e, s.Cell) != "third" || s.End != 4 {
		t.Errorf("Down did not return to the desired column: %v in %q", s, cellText(e, s.Cell))
	}
}

func TestCellSelection(t *testing.T) {
	svc := newFakeService(t, func(root *celltree.MutableCell) {
		g, err := root.AddNewChild(0)
		if err != nil {
			t.Fatal(err)
		}
		celltree.Set(g, celltree.SelectableKey, true)
		celltree.Set(g, celltree.ReferencesKey, []celltree.Reference{celltree.NodeRef{Node: "g"}})
		textCell(t, g, "a", prop("a", "v"))
		textCell(t, g, "b", prop("b", "v"))
	})
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("a", "v"), 1)

	press(t, ctx, e, input.Special(input.KeyRight, input.ModShift))
	cs, ok := e.Selection().(CellSelection)
	if !ok {
		t.Fatalf("selection = %v, want the selectable group", e.Selection())
	}
	if got := e.SelectedText(); got != "a b" {
		t.Errorf("SelectedText = %q", got)
	}
	if cs.Left {
		t.Error("selection grown to the right is marked Left")
	}

	press(t, ctx, e, input.Special(input.KeyDown, input.ModMeta))
	if s := caretOf(t, e); cellText(e, s.Cell) != "a" || s.End != 1 {
		t.Errorf("Meta+Down did not restore the caret: %v", s)
	}
}

func TestTabAndEnterReachBackend(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("a", "v"), 0)
	id := caretOf(t, e).Cell

	press(t, ctx, e,
		input.Special(input.KeyTab, input.ModNone),
		input.Special(input.KeyTab, input.ModShift),
		input.Special(input.KeyEnter, input.ModNone),
	)
	calls := svc.Calls()
	want := []string{
		fmt.Sprintf("tab %d true", id),
		fmt.Sprintf("tab %d false", id),
		fmt.Sprintf("insert %d", id),
	}
	got := calls[len(calls)-3:]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClick(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, _ := startEditor(t, svc)

	tests := []struct {
		x, y int
		cell string
		pos  int
	}{
		{3, 0, "bc", 1},
		{0, 0, "a", 0},
		{5, 0, "d", 0},
		{40, 0, "d", 1},
	}
	for _, tt := range tests {
		if err := e.HandleEvent(context.Background(), input.Click(tt.x, tt.y)); err != nil {
			t.Fatal(err)
		}
		s := caretOf(t, e)
		if cellText(e, s.Cell) != tt.cell || s.End != tt.pos {
			t.Errorf("click at %d: caret %v in %q, want %q@%d", tt.x, s, cellText(e, s.Cell), tt.cell, tt.pos)
		}
	}

	before := e.Selection().String()
	if err := e.HandleEvent(context.Background(), input.Click(0, 7)); err != nil {
		t.Fatal(err)
	}
	if e.Selection().String() != before {
		t.Error("click below the document moved the caret")
	}
}

func TestF5ClearsLayoutCache(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	e, ctx := startEditor(t, svc)
	e.WithTree(func(tree *Tree) { tree.RootLayout() })

	press(t, ctx, e, input.Special(input.KeyF5, input.ModNone))
	e.WithTree(func(tree *Tree) {
		if len(tree.cache) != 0 {
			t.Errorf("%d layouts cached after F5", len(tree.cache))
		}
	})
	if got := e.Text(); got != "a bc d" {
		t.Errorf("Text after F5 = %q", got)
	}
}

func TestCompletionMenuKeys(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	svc.entries = []protocol.CompletionEntry{
		{ID: 0, MatchingText: "if"},
		{ID: 1, MatchingText: "int"},
		{ID: 2, MatchingText: "x"},
	}
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("bc", "v"), 0)

	press(t, ctx, e, input.Special(input.KeySpace, input.ModCtrl))
	m := e.Menu()
	if m == nil {
		t.Fatal("Ctrl+Space opened no menu")
	}
	if len(m.Entries()) != 3 {
		t.Fatalf("entries = %v", m.Entries())
	}

	press(t, ctx, e, input.Rune('i'))
	m = e.Menu()
	if m == nil || m.Pattern() != "i" || len(m.Entries()) != 2 {
		t.Fatalf("after typing: %+v", m)
	}

	press(t, ctx, e, input.Special(input.KeyDown, input.ModNone))
	if m := e.Menu(); m.SelectedIndex() != 1 {
		t.Errorf("selected = %d, want 1", m.SelectedIndex())
	}
	press(t, ctx, e, input.Special(input.KeyEnter, input.ModNone))
	if e.Menu() != nil {
		t.Error("menu still open after Enter")
	}
	if len(svc.executed) != 1 || svc.executed[0] != 1 {
		t.Errorf("executed = %v, want [1]", svc.executed)
	}

	press(t, ctx, e, input.Special(input.KeySpace, input.ModCtrl), input.Special(input.KeyEscape, input.ModNone))
	if e.Menu() != nil {
		t.Error("Escape did not close the menu")
	}
}

func TestCompletionMenuSingleExactMatch(t *testing.T) {
	svc := newFakeService(t, threeWords(t))
	svc.entries = []protocol.CompletionEntry{
		{ID: 7, MatchingText: "x"},
		{ID: 8, MatchingText: "y"},
	}
	e, ctx := startEditor(t, svc)
	selectRef(t, e, prop("bc", "v"), 0)

	press(t, ctx, e, input.Special(input.KeySpace, input.ModCtrl), input.Rune('x'))
	if e.Menu() != nil {
		t.Error("menu still open after an exact match")
	}
	if len(svc.executed) != 1 || svc.executed[0] != 7 {
		t.Errorf("executed = %v, want [7]", svc.executed)
	}
}

func TestUpdatesApplyInSequence(t *testing.T) {
	svc := newFakeService(t, nil)
	e := New(svc)
	var id celltree.ID
	u1 := svc.update(func(root *celltree.MutableCell) {
		id = textCell(t, root, "one").ID()
	})
	u2 := svc.update(func(*celltree.MutableCell) {
		celltree.Set(svc.mutable(id), celltree.TextKey, "two")
	})

	e.receive(0, u2)
	if got := e.Text(); got != "" {
		t.Fatalf("update 2 applied before update 1: %q", got)
	}
	e.receive(0, u1)
	if got := e.Text(); got != "two" {
		t.Fatalf("Text = %q, want both updates applied", got)
	}
	e.receive(0, u1)
	if got := e.Text(); got != "two" {
		t.Errorf("stale update reapplied: %q", got)
	}

	e.receive(99, &protocol.EditorUpdate{Seq: 3, Changes: []celltree.Op{celltree.DeleteOp{ID: id}}})
	if got := e.Text(); got != "two" {
		t.Errorf("update of another stream applied: %q", got)
	}
}

func TestUpdateGapIsSkipped(t *testing.T) {
	e := New(newFakeService(t, nil))
	last := uint64(maxPendingUpdates + 3)
	for seq := uint64(3); seq <= last; seq++ {
		e.receive(0, &protocol.EditorUpdate{Seq: seq})
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.applied != last {
		t.Errorf("applied = %d, want %d after skipping the gap", e.applied, last)
	}
	if len(e.pending) != 0 {
		t.Errorf("%d updates still pending", len(e.pending))
	}
}

func TestPostedEventsAreHandled(t *testing.T) {
	ref := prop("name", "value")
	svc := newFakeService(t, func(root *celltree.MutableCell) {
		textCell(t, root, "", ref)
	})
	changed := make(chan struct{}, 64)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := New(svc, WithOnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Open(ctx, "doc"); err != nil {
		t.Fatal(err)
	}
	selectRef(t, e, ref, 0)

	for _, ev := range input.Type("abc") {
		e.Post(ev)
	}
	for e.Text() != "abc" {
		select {
		case <-changed:
		case <-ctx.Done():
			t.Fatalf("posted input not applied, text %q", e.Text())
		}
	}
}
