package terminal

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/cellstorm/internal/config"
)

// Theme holds the colors of the terminal editor.
type Theme struct {
	Text         colorful.Color
	Placeholder  colorful.Color
	Error        colorful.Color
	Caret        colorful.Color
	Selection    colorful.Color
	Menu         colorful.Color
	MenuSelected colorful.Color
}

// NewTheme parses the hex colors of cfg.
func NewTheme(cfg config.ThemeConfig) (*Theme, error) {
	t := &Theme{}
	fields := []struct {
		name string
		hex  string
		dst  *colorful.Color
	}{
		{"text", cfg.Text, &t.Text},
		{"placeholder", cfg.Placeholder, &t.Placeholder},
		{"error", cfg.Error, &t.Error},
		{"caret", cfg.Caret, &t.Caret},
		{"selection", cfg.Selection, &t.Selection},
		{"menu", cfg.Menu, &t.Menu},
		{"menuSelected", cfg.MenuSelected, &t.MenuSelected},
	}
	for _, f := range fields {
		c, err := colorful.Hex(f.hex)
		if err != nil {
			return nil, fmt.Errorf("theme %s: %w", f.name, err)
		}
		*f.dst = c
	}
	return t, nil
}

// DefaultTheme returns the theme of the default configuration.
func DefaultTheme() *Theme {
	t, err := NewTheme(config.Default().Theme)
	if err != nil {
		panic(err)
	}
	return t
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// resolve maps a cell color, a hex value or a color name, to a terminal
// color. Error cells use "red", which follows the theme.
func (t *Theme) resolve(name string, fallback colorful.Color) colorful.Color {
	if name == "" {
		return fallback
	}
	if strings.HasPrefix(name, "#") {
		if c, err := colorful.Hex(name); err == nil {
			return c
		}
		return fallback
	}
	name = strings.ToLower(name)
	if name == "red" {
		return t.Error
	}
	tc := tcell.GetColor(name)
	if tc == tcell.ColorDefault {
		return fallback
	}
	r, g, b := tc.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// spanStyle returns the style of a word.
func (t *Theme) spanStyle(color, background string, placeholder bool) tcell.Style {
	fallback := t.Text
	if placeholder {
		fallback = t.Placeholder
	}
	st := tcell.StyleDefault.Foreground(toTcell(t.resolve(color, fallback)))
	if background != "" {
		st = st.Background(toTcell(t.resolve(background, t.Menu)))
	}
	if placeholder {
		st = st.Italic(true)
	}
	return st
}

// marked returns the background of selected text over background.
func (t *Theme) marked(background string) tcell.Color {
	if background == "" {
		return toTcell(t.Selection)
	}
	bg := t.resolve(background, t.Selection)
	return toTcell(bg.BlendLab(t.Selection, 0.7).Clamped())
}
