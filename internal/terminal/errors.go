package terminal

import "errors"

// ErrNoTerminal is returned when no terminal screen can be opened.
var ErrNoTerminal = errors.New("terminal: no usable terminal")
