// Package input defines the key and mouse events an editor consumes.
//
// Events are host independent: the terminal frontend converts tcell events
// into KeyEvent and MouseEvent values, and tests build them with Parse or
// Type.
//
// Key specifications accept two notations:
//
//   - Modifier style: "a", "Enter", "Ctrl+Space", "Shift+Left"
//   - Vim style: "<C-Space>", "<S-Tab>", "<BS>", "<CR>"
package input
