// Package render prints editor views as styled text, for the render command
// and for logs and tests.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/cellstorm/internal/config"
	"github.com/dshills/cellstorm/internal/frontend"
	"github.com/dshills/cellstorm/internal/layout"
)

// ansi maps the color names used by cell properties to terminal colors.
var ansi = map[string]string{
	"black":   "0",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
}

// Renderer prints views.
type Renderer struct {
	lg          *lipgloss.Renderer
	theme       config.ThemeConfig
	plain       bool
	lineNumbers bool
	title       string
	indent      int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme sets the colors.
func WithTheme(th config.ThemeConfig) Option {
	return func(r *Renderer) { r.theme = th }
}

// Plain disables styling.
func Plain() Option {
	return func(r *Renderer) { r.plain = true }
}

// WithLineNumbers prefixes every line with its number.
func WithLineNumbers() Option {
	return func(r *Renderer) { r.lineNumbers = true }
}

// WithIndentWidth sets the columns per indent level of the output.
func WithIndentWidth(n int) Option {
	return func(r *Renderer) { r.indent = n }
}

// WithTitle draws a frame titled title around the document.
func WithTitle(title string) Option {
	return func(r *Renderer) { r.title = title }
}

// New returns a renderer for output written to w. Colors follow what w
// supports.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		lg:     lipgloss.NewRenderer(w),
		theme:  config.Default().Theme,
		indent: layout.IndentWidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) color(name, fallback string) lipgloss.Color {
	switch {
	case name == "":
		return lipgloss.Color(fallback)
	case strings.HasPrefix(name, "#"):
		return lipgloss.Color(name)
	case strings.EqualFold(name, "red"):
		return lipgloss.Color(r.theme.Error)
	}
	if c, ok := ansi[strings.ToLower(name)]; ok {
		return lipgloss.Color(c)
	}
	return lipgloss.Color(fallback)
}

func (r *Renderer) span(s frontend.Span) string {
	if r.plain {
		return s.Text
	}
	fallback := r.theme.Text
	if s.Placeholder {
		fallback = r.theme.Placeholder
	}
	st := r.lg.NewStyle().Foreground(r.color(s.Color, fallback)).Italic(s.Placeholder)
	if s.Background != "" {
		st = st.Background(r.color(s.Background, r.theme.Menu))
	}
	return st.Render(s.Text)
}

// String renders the lines of v. The cursor, marks and menu are not shown.
func (r *Renderer) String(v frontend.View) string {
	var b strings.Builder
	gutter := len(fmt.Sprint(len(v.Lines)))
	numStyle := r.lg.NewStyle().Foreground(lipgloss.Color(r.theme.Placeholder))
	for i, line := range v.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if r.lineNumbers {
			num := fmt.Sprintf("%*d ", gutter, i+1)
			if !r.plain {
				num = numStyle.Render(num)
			}
			b.WriteString(num)
		}
		shift := line.Indent * (r.indent - layout.IndentWidth)
		col := 0
		for _, s := range line.Spans {
			if at := s.Column + shift; at > col {
				b.WriteString(strings.Repeat(" ", at-col))
				col = at
			}
			b.WriteString(r.span(s))
			col += runewidth.StringWidth(s.Text)
		}
	}
	out := b.String()
	if r.title == "" {
		return out
	}
	frame := r.lg.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if !r.plain {
		frame = frame.BorderForeground(lipgloss.Color(r.theme.Placeholder))
	}
	head := r.title
	if !r.plain {
		head = r.lg.NewStyle().Bold(true).Render(head)
	}
	return head + "\n" + frame.Render(out)
}

// Write renders v to w followed by a newline.
func (r *Renderer) Write(w io.Writer, v frontend.View) error {
	_, err := fmt.Fprintln(w, r.String(v))
	return err
}
