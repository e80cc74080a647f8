package terminal

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/cellstorm/internal/frontend"
	"github.com/dshills/cellstorm/internal/input"
	"github.com/dshills/cellstorm/internal/logging"
)

// Terminal shows one editor on a tcell screen and feeds it key and mouse
// input.
type Terminal struct {
	screen tcell.Screen
	theme  *Theme
	logger *logging.Logger
	copy   func(string) error
	onDraw func()

	// life guards running: events are only posted to an initialized screen.
	life    sync.RWMutex
	running bool

	mu      sync.Mutex
	scroll  int
	cursor  frontend.Cursor
	status  string
	buttons tcell.ButtonMask
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithTheme sets the colors.
func WithTheme(th *Theme) Option {
	return func(t *Terminal) { t.theme = th }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Terminal) { t.logger = l }
}

// WithClipboard replaces the system clipboard used by Ctrl+C.
func WithClipboard(write func(string) error) Option {
	return func(t *Terminal) { t.copy = write }
}

// WithOnDraw sets a function called after every frame was shown. It runs
// on the drawing goroutine and must not block.
func WithOnDraw(fn func()) Option {
	return func(t *Terminal) { t.onDraw = fn }
}

// New returns a terminal drawing on screen. The screen is initialized by
// Run.
func New(screen tcell.Screen, opts ...Option) *Terminal {
	t := &Terminal{
		screen: screen,
		theme:  DefaultTheme(),
		logger: logging.Nop(),
		copy:   clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent("terminal")
	return t
}

// NewScreen returns the screen of the controlling terminal.
func NewScreen() (tcell.Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTerminal, err)
	}
	return s, nil
}

// Refresh asks the running loop to redraw. It is safe to call from any
// goroutine and suits frontend.WithOnChange.
func (t *Terminal) Refresh() {
	t.life.RLock()
	defer t.life.RUnlock()
	if t.running {
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

// Run draws ed and dispatches terminal events to it until ctx is done or
// the user quits with Ctrl+Q.
func (t *Terminal) Run(ctx context.Context, ed *frontend.Editor) error {
	t.life.Lock()
	if err := t.screen.Init(); err != nil {
		t.life.Unlock()
		return fmt.Errorf("%w: %v", ErrNoTerminal, err)
	}
	t.screen.EnableMouse()
	t.screen.EnablePaste()
	t.running = true
	t.life.Unlock()
	defer func() {
		t.life.Lock()
		t.running = false
		t.screen.Fini()
		t.life.Unlock()
	}()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go t.screen.ChannelEvents(events, quit)
	defer close(quit)

	t.Draw(ed)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !t.Handle(ed, ev) {
				return nil
			}
		}
	}
}

// Draw paints the current view of ed.
func (t *Terminal) Draw(ed *frontend.Editor) {
	v := ed.View()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draw(v)
}

// Handle processes one terminal event and redraws. It reports false when
// the user asked to quit.
func (t *Terminal) Handle(ed *frontend.Editor, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyCtrlQ {
			return false
		}
		if ev.Key() == tcell.KeyCtrlC {
			t.copySelection(ed)
			break
		}
		if k, ok := convertKey(ev); ok {
			t.setStatus("")
			ed.Post(k)
		}
	case *tcell.EventMouse:
		t.mouse(ed, ev)
	case *tcell.EventResize:
		t.screen.Sync()
	case *tcell.EventInterrupt:
	default:
		return true
	}
	t.Draw(ed)
	return true
}

// mouse turns a button press into a click in document coordinates and
// wheel motion into scrolling.
func (t *Terminal) mouse(ed *frontend.Editor, ev *tcell.EventMouse) {
	x, y := ev.Position()
	b := ev.Buttons()
	t.mu.Lock()
	pressed := b &^ t.buttons
	t.buttons = b
	if d := wheel(b); d != 0 {
		t.scroll = max(t.scroll+d, 0)
	}
	scroll := t.scroll
	_, h := t.screen.Size()
	t.mu.Unlock()

	if y >= h-1 {
		return
	}
	if btn := convertButton(pressed); btn != input.ButtonNone {
		ed.Post(input.MouseEvent{X: x, Y: y + scroll, Button: btn, Modifiers: convertMod(ev.Modifiers())})
	}
}

func (t *Terminal) copySelection(ed *frontend.Editor) {
	text := ed.SelectedText()
	if text == "" {
		t.setStatus("nothing selected")
		return
	}
	if err := t.copy(text); err != nil {
		t.logger.Warn("copy: %v", err)
		t.setStatus("copy failed: " + err.Error())
		return
	}
	t.setStatus(fmt.Sprintf("copied %d characters", len([]rune(text))))
}

func (t *Terminal) setStatus(msg string) {
	t.mu.Lock()
	t.status = msg
	t.mu.Unlock()
}
