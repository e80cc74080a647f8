package layout

import "github.com/dshills/cellstorm/internal/celltree"

// VisibleText returns what a text cell shows: the pending text replacement,
// else its text, else its placeholder.
func VisibleText(c *celltree.Cell) string {
	if r, ok := celltree.Lookup(c, celltree.TextReplacementKey); ok {
		return r
	}
	if text := celltree.Get(c, celltree.TextKey); text != "" {
		return text
	}
	return celltree.Get(c, celltree.PlaceholderTextKey)
}

// SelectableText returns the text a caret moves through: the pending
// replacement, else the text. ok is false for cells that take no caret.
func SelectableText(c *celltree.Cell) (text string, ok bool) {
	if c.Type() != celltree.TypeText {
		return "", false
	}
	if r, ok := celltree.Lookup(c, celltree.TextReplacementKey); ok {
		return r, true
	}
	return celltree.Get(c, celltree.TextKey), true
}

// IsVisible reports whether c is a text cell that shows something.
func IsVisible(c *celltree.Cell) bool {
	return c.Type() == celltree.TypeText && VisibleText(c) != ""
}

// Layout computes the layout of c. Children are laid out through child,
// which lets callers serve them from a cache.
func Layout(c *celltree.Cell, child func(*celltree.Cell) *LayoutedText) *LayoutedText {
	var l TextLayouter
	Into(&l, c, child)
	return l.Done()
}

// Uncached lays out c and its whole subtree without caching.
func Uncached(c *celltree.Cell) *LayoutedText {
	return Layout(c, Uncached)
}

// Into appends the layout of c to l.
func Into(l *TextLayouter, c *celltree.Cell, child func(*celltree.Cell) *LayoutedText) {
	onNewLine := celltree.Get(c, celltree.OnNewLineKey)
	noSpace := celltree.Get(c, celltree.NoSpaceKey)

	if c.Type() == celltree.TypeText {
		if onNewLine {
			l.OnNewLine()
		}
		if noSpace {
			l.NoSpace()
		}
		l.Append(NewCellWord(c.ID(), VisibleText(c)))
		if noSpace {
			l.NoSpace()
		}
		return
	}

	body := func() {
		if onNewLine {
			l.OnNewLine()
		}
		if noSpace {
			l.NoSpace()
		}
		vertical := celltree.Get(c, celltree.LayoutKey) == celltree.LayoutVertical
		for i, ch := range c.Children() {
			if vertical && i > 0 {
				l.OnNewLine()
			}
			l.AppendText(child(ch))
		}
		if noSpace {
			l.NoSpace()
		}
	}
	if celltree.Get(c, celltree.IndentChildrenKey) {
		l.WithIndent(body)
	} else {
		body()
	}
}
