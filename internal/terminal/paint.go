package terminal

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dshills/cellstorm/internal/frontend"
)

const (
	maxMenuRows      = 8
	descriptionWidth = 32
)

// draw paints v onto the screen. The last row is the status line.
func (t *Terminal) draw(v frontend.View) {
	s := t.screen
	s.Clear()
	w, h := s.Size()
	rows := max(h-1, 0)
	t.follow(v.Cursor, rows)

	marks := make(map[int][]frontend.Mark)
	for _, m := range v.Marks {
		marks[m.Line] = append(marks[m.Line], m)
	}
	for y := 0; y < rows; y++ {
		li := y + t.scroll
		if li >= len(v.Lines) {
			break
		}
		for _, span := range v.Lines[li].Spans {
			st := t.theme.spanStyle(span.Color, span.Background, span.Placeholder)
			t.text(span.Column, y, w, span.Text, func(col int) tcell.Style {
				for _, m := range marks[li] {
					if col >= m.From && col < m.To {
						return st.Background(t.theme.marked(span.Background))
					}
				}
				return st
			})
		}
	}

	if v.Cursor.Visible && v.Cursor.Line-t.scroll >= 0 && v.Cursor.Line-t.scroll < rows {
		s.ShowCursor(v.Cursor.Column, v.Cursor.Line-t.scroll)
	} else {
		s.HideCursor()
	}
	if v.Menu != nil {
		t.drawMenu(v.Menu, w, rows)
	}
	t.drawStatus(v, w, h-1)
	s.Show()
	if t.onDraw != nil {
		t.onDraw()
	}
}

// text writes str at (x, y) and returns the column after it. style is
// asked for the style of each column.
func (t *Terminal) text(x, y, width int, str string, style func(col int) tcell.Style) int {
	for _, r := range str {
		if x >= width {
			break
		}
		t.screen.SetContent(x, y, r, nil, style(x))
		x += runewidth.RuneWidth(r)
	}
	return x
}

func fixed(st tcell.Style) func(int) tcell.Style {
	return func(int) tcell.Style { return st }
}

// follow scrolls so that the cursor line is visible after the cursor
// moved. Wheel scrolling may move it off screen.
func (t *Terminal) follow(c frontend.Cursor, rows int) {
	if !c.Visible || rows == 0 || c == t.cursor {
		return
	}
	t.cursor = c
	if c.Line < t.scroll {
		t.scroll = c.Line
	} else if c.Line >= t.scroll+rows {
		t.scroll = c.Line - rows + 1
	}
}

// drawMenu paints the completion entries below the anchor. The selected
// entry's description is shown next to the box.
func (t *Terminal) drawMenu(m *frontend.MenuView, width, rows int) {
	y := m.Line - t.scroll + 1
	if y < 0 || y >= rows {
		return
	}
	entries := m.Entries
	first := 0
	if m.Selected >= maxMenuRows {
		first = m.Selected - maxMenuRows + 1
	}
	entries = entries[first:min(len(entries), first+maxMenuRows)]

	boxWidth := runewidth.StringWidth(m.Pattern) + 2
	for _, e := range entries {
		boxWidth = max(boxWidth, runewidth.StringWidth(e.MatchingText)+2)
	}
	normal := tcell.StyleDefault.Background(toTcell(t.theme.Menu)).Foreground(toTcell(t.theme.Text))
	selected := normal.Background(toTcell(t.theme.MenuSelected))

	if len(entries) == 0 {
		t.text(m.Column, y, width, pad(" no completions", boxWidth+2), fixed(normal.Italic(true)))
		return
	}
	for i, e := range entries {
		if y+i >= rows {
			break
		}
		st := normal
		if first+i == m.Selected {
			st = selected
		}
		t.text(m.Column, y+i, width, pad(" "+e.MatchingText, boxWidth), fixed(st))
	}

	if m.Selected < 0 || m.Selected >= len(m.Entries) {
		return
	}
	desc := m.Entries[m.Selected].Description
	if desc == "" {
		return
	}
	x := m.Column + boxWidth + 1
	top := y + m.Selected - first
	for i, line := range strings.Split(wordwrap.String(desc, descriptionWidth), "\n") {
		if top+i >= rows {
			break
		}
		t.text(x, top+i, width, line, fixed(normal.Italic(true)))
	}
}

func (t *Terminal) drawStatus(v frontend.View, width, y int) {
	if y < 0 {
		return
	}
	st := tcell.StyleDefault.Reverse(true)
	pos := ""
	if v.Cursor.Visible {
		pos = fmt.Sprintf("%d:%d ", v.Cursor.Line+1, v.Cursor.Column+1)
	}
	msg := t.status
	if msg == "" {
		msg = fitHints(width - runewidth.StringWidth(pos) - 2)
	}
	line := pad(" "+msg, max(width-runewidth.StringWidth(pos), 0)) + pos
	t.text(0, y, width, line, fixed(st))
}

// hints are listed by priority; the ones that do not fit are dropped.
var hints = []string{"Ctrl+Q quit", "Ctrl+Space complete", "Tab next", "Ctrl+C copy", "F5 reload layout"}

// fitHints joins the leading hints that fit in width cells. The first hint
// is always kept.
func fitHints(width int) string {
	out := hints[0]
	for _, h := range hints[1:] {
		next := out + "  " + h
		if runewidth.StringWidth(next) > width {
			break
		}
		out = next
	}
	return out
}

// pad fills s with spaces to width cells.
func pad(s string, width int) string {
	if n := width - runewidth.StringWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
