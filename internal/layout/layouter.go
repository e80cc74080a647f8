package layout

// TextLayouter builds a LayoutedText word by word.
type TextLayouter struct {
	lines  []*TextLine
	cur    *TextLine
	indent int

	pendingNewLine bool
	pendingNoSpace bool

	newLineBefore bool
	noSpaceBefore bool
}

// OnNewLine requests that the next word starts a new line.
func (l *TextLayouter) OnNewLine() { l.pendingNewLine = true }

// NoSpace suppresses the space before the next word.
func (l *TextLayouter) NoSpace() { l.pendingNoSpace = true }

// WithIndent runs body with the indent level increased by one.
func (l *TextLayouter) WithIndent(body func()) {
	l.indent++
	defer func() { l.indent-- }()
	body()
}

// startWord resolves the pending boundary before a word. relIndent is added
// to the current indent if a new line is started.
func (l *TextLayouter) startWord(relIndent int) {
	switch {
	case l.cur == nil:
		l.newLineBefore = l.pendingNewLine
		l.noSpaceBefore = l.pendingNoSpace
		l.newLine(relIndent)
	case l.pendingNewLine:
		l.newLine(relIndent)
	case !l.pendingNoSpace:
		l.cur.Words = append(l.cur.Words, Space{})
	}
	l.pendingNewLine = false
	l.pendingNoSpace = false
}

func (l *TextLayouter) newLine(relIndent int) {
	l.cur = &TextLine{Indent: l.indent + relIndent}
	l.lines = append(l.lines, l.cur)
}

// Append adds a rendering leaf.
func (l *TextLayouter) Append(w Layoutable) {
	l.startWord(0)
	l.cur.Words = append(l.cur.Words, w)
}

// AppendText adds the layout of a child subtree, resolving its boundary
// flags against the current position.
func (l *TextLayouter) AppendText(t *LayoutedText) {
	if t.NewLineBefore {
		l.OnNewLine()
	}
	if t.NoSpaceBefore {
		l.NoSpace()
	}
	for i, line := range t.Lines {
		if i == 0 {
			l.startWord(line.Indent)
		} else {
			l.newLine(line.Indent)
		}
		l.cur.Words = append(l.cur.Words, line.Words...)
	}
	if t.NewLineAfter {
		l.OnNewLine()
	}
	if t.NoSpaceAfter {
		l.NoSpace()
	}
}

// Done returns the collected layout. Requests that were not consumed by a
// word are reported through the LayoutedText flags.
func (l *TextLayouter) Done() *LayoutedText {
	t := &LayoutedText{Lines: l.lines}
	if l.cur == nil {
		t.NewLineBefore = l.pendingNewLine
		t.NoSpaceBefore = l.pendingNoSpace
		return t
	}
	t.NewLineBefore = l.newLineBefore
	t.NoSpaceBefore = l.noSpaceBefore
	t.NewLineAfter = l.pendingNewLine
	t.NoSpaceAfter = l.pendingNoSpace
	return t
}
