package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "CELLSTORM_"

// EnvLoader reads prefixed environment variables. A variable name maps to
// a section and a camelCase key: CELLSTORM_EDITOR_INPUT_CAPACITY sets
// editor.inputCapacity.
type EnvLoader struct {
	prefix  string
	environ func() []string
	mapping map[string]string
}

// NewEnvLoader returns a loader for variables starting with prefix, which
// includes the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: os.Environ, mapping: defaultEnvMapping()}
}

// NewEnvLoaderFrom reads from a fixed environment instead of the process
// one. Entries have the form KEY=value.
func NewEnvLoaderFrom(prefix string, environ []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return environ }
	return l
}

// defaultEnvMapping covers names the generic conversion gets wrong.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"CELLSTORM_ADDR":        "server.address",
		"CELLSTORM_SCRIPTS_DIR": "scripts.dirs",
	}
}

// Load implements Loader.
func (l *EnvLoader) Load() (map[string]any, error) {
	cfg := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if path, ok := l.mapping[name]; ok {
			if path == "scripts.dirs" {
				setByPath(cfg, path, splitList(value))
			} else {
				setByPath(cfg, path, parseValue(value))
			}
			continue
		}
		setByPath(cfg, l.envToPath(name), parseValue(value))
	}
	return cfg, nil
}

// envToPath converts CELLSTORM_EDITOR_TAB_STOP to editor.tabStop.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}
	key := strings.ToLower(parts[1])
	for _, p := range parts[2:] {
		if p != "" {
			key += strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		}
	}
	return section + "." + key
}

// parseValue guesses the type of an environment value.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func splitList(s string) []any {
	var out []any
	for _, p := range strings.Split(s, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setByPath sets a dotted path, creating intermediate tables.
func setByPath(cfg map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := cfg
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
