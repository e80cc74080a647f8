package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/cellstorm/internal/config/loader"
)

// FileName is the name of the configuration file in the config directory.
const FileName = "config.toml"

// DefaultPath returns the user configuration file, or "" if the config
// directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cellstorm", FileName)
}

// Options selects the sources Load reads.
type Options struct {
	// Path is the TOML file. Empty means DefaultPath, where a missing file
	// is not an error.
	Path string
	// FS reads the file. Defaults to the OS.
	FS loader.FileSystem
	// Environ replaces the process environment when non-nil.
	Environ []string
}

// Load reads the configuration at path. See LoadWith.
func Load(path string) (*Config, error) {
	return LoadWith(Options{Path: path})
}

// LoadWith merges defaults, the file and the environment, then validates
// the result.
func LoadWith(opts Options) (*Config, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}
	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path = DefaultPath()
	}

	merged := map[string]any{}
	if path != "" {
		if explicit {
			if _, err := fsys.Stat(path); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
		}
		file, err := loader.NewTOMLLoaderWithFS(fsys, path).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, file)
	}

	env := loader.NewEnvLoader(loader.EnvPrefix)
	if opts.Environ != nil {
		env = loader.NewEnvLoaderFrom(loader.EnvPrefix, opts.Environ)
	}
	vars, err := env.Load()
	if err != nil {
		return nil, err
	}
	merged = loader.DeepMerge(merged, vars)

	cfg, err := decode(merged)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode applies a merged map on top of the defaults.
func decode(m map[string]any) (*Config, error) {
	cfg := Default()
	data, err := loader.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// expandPaths resolves a leading ~ in file and directory settings.
func (c *Config) expandPaths() {
	c.Log.File = expandHome(c.Log.File)
	for i, d := range c.Scripts.Dirs {
		c.Scripts.Dirs[i] = expandHome(d)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
