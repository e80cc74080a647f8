package terminal

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/cellstorm/internal/input"
)

// convertKey converts a tcell key event. ok is false for keys an editor
// does not handle.
func convertKey(ev *tcell.EventKey) (input.KeyEvent, bool) {
	mods := convertMod(ev.Modifiers())
	k := ev.Key()
	switch k {
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			return input.KeyEvent{Key: input.KeySpace, Modifiers: mods}, true
		}
		return input.KeyEvent{Key: input.KeyRune, Rune: ev.Rune(), Modifiers: mods}, true
	case tcell.KeyCtrlSpace:
		return input.KeyEvent{Key: input.KeySpace, Modifiers: mods | input.ModCtrl}, true
	case tcell.KeyBacktab:
		return input.KeyEvent{Key: input.KeyTab, Modifiers: mods | input.ModShift}, true
	}
	if key, ok := keys[k]; ok {
		return input.KeyEvent{Key: key, Modifiers: mods}, true
	}
	// Tab, Enter, Backspace and Escape share codes with Ctrl+I, Ctrl+M,
	// Ctrl+H and Ctrl+[ and are matched above.
	if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		r := 'a' + rune(k-tcell.KeyCtrlA)
		return input.KeyEvent{Key: input.KeyRune, Rune: r, Modifiers: mods | input.ModCtrl}, true
	}
	return input.KeyEvent{}, false
}

var keys = map[tcell.Key]input.Key{
	tcell.KeyEscape:     input.KeyEscape,
	tcell.KeyEnter:      input.KeyEnter,
	tcell.KeyTab:        input.KeyTab,
	tcell.KeyBackspace:  input.KeyBackspace,
	tcell.KeyBackspace2: input.KeyBackspace,
	tcell.KeyDelete:     input.KeyDelete,
	tcell.KeyHome:       input.KeyHome,
	tcell.KeyEnd:        input.KeyEnd,
	tcell.KeyPgUp:       input.KeyPageUp,
	tcell.KeyPgDn:       input.KeyPageDown,
	tcell.KeyUp:         input.KeyUp,
	tcell.KeyDown:       input.KeyDown,
	tcell.KeyLeft:       input.KeyLeft,
	tcell.KeyRight:      input.KeyRight,
	tcell.KeyF1:         input.KeyF1,
	tcell.KeyF2:         input.KeyF2,
	tcell.KeyF3:         input.KeyF3,
	tcell.KeyF4:         input.KeyF4,
	tcell.KeyF5:         input.KeyF5,
	tcell.KeyF6:         input.KeyF6,
	tcell.KeyF7:         input.KeyF7,
	tcell.KeyF8:         input.KeyF8,
	tcell.KeyF9:         input.KeyF9,
	tcell.KeyF10:        input.KeyF10,
	tcell.KeyF11:        input.KeyF11,
	tcell.KeyF12:        input.KeyF12,
}

func convertMod(m tcell.ModMask) input.Modifier {
	var mods input.Modifier
	if m&tcell.ModShift != 0 {
		mods |= input.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		mods |= input.ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		mods |= input.ModAlt
	}
	if m&tcell.ModMeta != 0 {
		mods |= input.ModMeta
	}
	return mods
}

func convertButton(b tcell.ButtonMask) input.Button {
	switch {
	case b&tcell.Button1 != 0:
		return input.ButtonLeft
	case b&tcell.Button2 != 0:
		return input.ButtonRight
	case b&tcell.Button3 != 0:
		return input.ButtonMiddle
	default:
		return input.ButtonNone
	}
}

// wheel returns the scroll direction of a mouse event: -1 up, 1 down.
func wheel(b tcell.ButtonMask) int {
	switch {
	case b&tcell.WheelUp != 0:
		return -1
	case b&tcell.WheelDown != 0:
		return 1
	default:
		return 0
	}
}
