package input

import (
	"fmt"
	"strings"
)

// Event is a KeyEvent or a MouseEvent.
type Event interface {
	fmt.Stringer
	inputEvent()
}

// KeyEvent is a single key press.
type KeyEvent struct {
	Key       Key
	Rune      rune
	Modifiers Modifier
}

// Rune returns the event for typing r.
func Rune(r rune) KeyEvent {
	return KeyEvent{Key: KeyRune, Rune: r}
}

// Special returns the event for a named key.
func Special(k Key, mods Modifier) KeyEvent {
	return KeyEvent{Key: k, Modifiers: mods}
}

// Type returns one rune event per character of text.
func Type(text string) []KeyEvent {
	out := make([]KeyEvent, 0, len(text))
	for _, r := range text {
		out = append(out, Rune(r))
	}
	return out
}

// TypedText returns the text the event inserts, or "" for keys that do not
// insert text. Ctrl, Alt and Meta chords never insert text.
func (e KeyEvent) TypedText() string {
	if e.Modifiers&(ModCtrl|ModAlt|ModMeta) != 0 {
		return ""
	}
	switch e.Key {
	case KeyRune:
		if e.Rune == 0 {
			return ""
		}
		return string(e.Rune)
	case KeySpace:
		return " "
	default:
		return ""
	}
}

// IsCompletionTrigger reports whether the event is Ctrl+Space.
func (e KeyEvent) IsCompletionTrigger() bool {
	if !e.Modifiers.HasCtrl() {
		return false
	}
	return e.Key == KeySpace || (e.Key == KeyRune && e.Rune == ' ')
}

// Is reports whether the event is key k without modifiers other than mods.
func (e KeyEvent) Is(k Key, mods Modifier) bool {
	return e.Key == k && e.Modifiers == mods
}

// String returns the modifier style representation, e.g. "Ctrl+Space".
func (e KeyEvent) String() string {
	var name string
	switch {
	case e.Key == KeyRune && e.Rune == ' ':
		name = "Space"
	case e.Key == KeyRune:
		name = string(e.Rune)
	default:
		name = e.Key.String()
	}
	mods := e.Modifiers
	if e.Key == KeyRune {
		mods &^= ModShift
	}
	if mods == ModNone {
		return name
	}
	return mods.String() + "+" + name
}

func (KeyEvent) inputEvent() {}

// Button is a mouse button.
type Button uint8

// Buttons.
const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "none"
	}
}

// MouseEvent is a click at absolute screen coordinates.
type MouseEvent struct {
	X, Y      int
	Button    Button
	Modifiers Modifier
}

// Click returns a left click at (x, y).
func Click(x, y int) MouseEvent {
	return MouseEvent{X: x, Y: y, Button: ButtonLeft}
}

func (e MouseEvent) String() string {
	var b strings.Builder
	if e.Modifiers != ModNone {
		b.WriteString(e.Modifiers.String())
		b.WriteByte('+')
	}
	fmt.Fprintf(&b, "click(%s, %d, %d)", e.Button, e.X, e.Y)
	return b.String()
}

func (MouseEvent) inputEvent() {}
