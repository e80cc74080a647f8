package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/cellstorm/internal/config/loader"
)

// Errors returned by configuration operations.
var (
	// ErrValidationFailed indicates a configuration with invalid values.
	ErrValidationFailed = errors.New("validation failed")

	// ErrFileNotFound indicates an explicitly named file that does not exist.
	ErrFileNotFound = errors.New("config file not found")
)

// ParseError reports a malformed configuration file.
type ParseError = loader.ParseError

// ValidationError describes one invalid setting.
type ValidationError struct {
	// Path is the dotted setting path, e.g. "editor.tabStop".
	Path    string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting of a configuration.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid settings: %s", len(es), strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, ErrValidationFailed) hold.
func (es ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}
