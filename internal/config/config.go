// Package config loads the cellstorm configuration.
//
// Settings come from built-in defaults, then a TOML file, then CELLSTORM_
// environment variables, each overriding the previous one:
//
//	[log]
//	level = "debug"
//	file = "/tmp/cellstorm.log"
//
//	[server]
//	address = "127.0.0.1:7070"
//	path = "/ws"
//
//	[editor]
//	validatorDelay = "150ms"
//	inputCapacity = 100
//	tabStop = 2
//
//	[scripts]
//	dirs = ["~/.config/cellstorm/scripts"]
//	watch = true
//
//	[theme]
//	text = "#d0d0d0"
//
// CELLSTORM_EDITOR_TAB_STOP=4 overrides editor.tabStop. Watch reloads the
// file when it changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/cellstorm/internal/logging"
)

// Config is the complete configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Editor  EditorConfig  `toml:"editor"`
	Scripts ScriptsConfig `toml:"scripts"`
	Theme   ThemeConfig   `toml:"theme"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ServerConfig configures the websocket backend.
type ServerConfig struct {
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// EditorConfig configures editor sessions.
type EditorConfig struct {
	// ValidatorDelay debounces validation after model changes.
	ValidatorDelay Duration `toml:"validatorDelay"`
	// InputCapacity is the number of queued input events before the oldest
	// is dropped.
	InputCapacity int `toml:"inputCapacity"`
	// TabStop is the indent width of the render command's output.
	TabStop int `toml:"tabStop"`
}

// ScriptsConfig configures Lua concept editors.
type ScriptsConfig struct {
	Dirs  []string `toml:"dirs"`
	Watch bool     `toml:"watch"`
}

// ThemeConfig holds hex colors for the terminal and static renderers.
type ThemeConfig struct {
	Text         string `toml:"text"`
	Placeholder  string `toml:"placeholder"`
	Error        string `toml:"error"`
	Caret        string `toml:"caret"`
	Selection    string `toml:"selection"`
	Menu         string `toml:"menu"`
	MenuSelected string `toml:"menuSelected"`
}

// Duration is a time.Duration written as a string like "150ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Address: "127.0.0.1:7070", Path: "/ws"},
		Editor: EditorConfig{
			ValidatorDelay: Duration(150 * time.Millisecond),
			InputCapacity:  100,
			TabStop:        2,
		},
		Theme: ThemeConfig{
			Text:         "#d0d0d0",
			Placeholder:  "#808080",
			Error:        "#ff5f5f",
			Caret:        "#ffffff",
			Selection:    "#3a3a6a",
			Menu:         "#262626",
			MenuSelected: "#005f87",
		},
	}
}

// Validate checks every setting. The error is a ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	if c.Server.Address == "" {
		add("server.address", "must not be empty", c.Server.Address)
	}
	if len(c.Server.Path) == 0 || c.Server.Path[0] != '/' {
		add("server.path", "must start with /", c.Server.Path)
	}
	if c.Editor.ValidatorDelay < 0 {
		add("editor.validatorDelay", "must not be negative", c.Editor.ValidatorDelay.Std())
	}
	if c.Editor.InputCapacity < 1 {
		add("editor.inputCapacity", "must be at least 1", c.Editor.InputCapacity)
	}
	if c.Editor.TabStop < 1 || c.Editor.TabStop > 16 {
		add("editor.tabStop", "must be between 1 and 16", c.Editor.TabStop)
	}
	for name, v := range c.Theme.colors() {
		if _, err := colorful.Hex(v); err != nil {
			add("theme."+name, "must be a #rrggbb color", v)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (t ThemeConfig) colors() map[string]string {
	return map[string]string{
		"text":         t.Text,
		"placeholder":  t.Placeholder,
		"error":        t.Error,
		"caret":        t.Caret,
		"selection":    t.Selection,
		"menu":         t.Menu,
		"menuSelected": t.MenuSelected,
	}
}

// LogLevel returns the configured level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

func (c *Config) String() string {
	return fmt.Sprintf("config(log=%s server=%s%s scripts=%v)",
		c.Log.Level, c.Server.Address, c.Server.Path, c.Scripts.Dirs)
}
