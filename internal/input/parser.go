package input

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Parse errors.
var (
	ErrEmptySpec   = errors.New("empty key specification")
	ErrInvalidSpec = errors.New("invalid key specification")
)

// Parse parses a key specification such as "a", "Enter", "Ctrl+Space" or
// "<S-Tab>".
func Parse(spec string) (KeyEvent, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return KeyEvent{}, ErrEmptySpec
	}
	if len(spec) > 2 && strings.HasPrefix(spec, "<") && strings.HasSuffix(spec, ">") {
		return parseChord(spec[1:len(spec)-1], "-", true)
	}
	if utf8.RuneCountInString(spec) > 1 && strings.Contains(spec, "+") {
		return parseChord(spec, "+", false)
	}
	return parseKey(spec, ModNone)
}

// MustParse is like Parse but panics on error. It is meant for key tables
// built at init.
func MustParse(spec string) KeyEvent {
	e, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return e
}

// parseChord splits modifiers from the final key. A trailing separator
// ("Ctrl++") names the separator character itself.
func parseChord(spec, sep string, short bool) (KeyEvent, error) {
	var keyPart string
	head := spec
	if strings.HasSuffix(spec, sep+sep) {
		keyPart = sep
		head = strings.TrimSuffix(spec, sep+sep)
	} else if i := strings.LastIndex(spec, sep); i >= 0 {
		keyPart = spec[i+1:]
		head = spec[:i]
	} else {
		return parseKey(spec, ModNone)
	}

	var mods Modifier
	for _, p := range strings.Split(head, sep) {
		mod := ModifierFromName(p)
		if mod == ModNone || (!short && len(strings.TrimSpace(p)) == 1) {
			return KeyEvent{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods |= mod
	}
	return parseKey(keyPart, mods)
}

func parseKey(name string, mods Modifier) (KeyEvent, error) {
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		if r == ' ' {
			return Special(KeySpace, mods), nil
		}
		return KeyEvent{Key: KeyRune, Rune: r, Modifiers: mods}, nil
	}
	if k := KeyFromName(name); k != KeyNone {
		return Special(k, mods), nil
	}
	return KeyEvent{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, name)
}
