// Package terminal runs a frontend editor on a tcell screen. It paints the
// editor's view, turns screen events into editor input and copies the
// selected text to the system clipboard.
package terminal
