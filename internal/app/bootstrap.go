package app

import (
	"errors"
	"os"
	"slices"

	"github.com/dshills/cellstorm/internal/config"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/lang/expr"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/script"
	"github.com/dshills/cellstorm/internal/service"
)

// bootstrapper starts the components in dependency order and stops the
// started ones again when a later one fails.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{app: app, opts: opts}
}

func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"language", b.initLanguage},
		{"service", b.initService},
		{"scripts", b.initScripts},
		{"documents", b.initDocuments},
		{"config watcher", b.initConfigWatch},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			var ie *InitError
			if errors.As(err, &ie) {
				return err
			}
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.logger.Debug("started: %v", b.initOrder)
	return nil
}

func (b *bootstrapper) initConfig() error {
	cfg, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		return err
	}
	b.app.config = cfg
	return nil
}

func (b *bootstrapper) initLogging() error {
	cfg := b.app.config
	level := cfg.LogLevel()
	if b.opts.LogLevel != "" {
		level = logging.ParseLevel(b.opts.LogLevel)
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		lc.Output = f
		b.app.logFile = f
	case b.opts.Quiet:
		b.app.logger = logging.Nop()
		return nil
	case b.opts.LogOutput != nil:
		lc.Output = b.opts.LogOutput
	}
	b.app.logger = logging.New(lc)
	return nil
}

func (b *bootstrapper) initLanguage() error {
	b.app.lang = expr.New()
	b.app.model = model.NewMemory()
	b.app.engine = engine.New(b.app.lang.Language)
	b.app.lang.Register(b.app.engine)
	return nil
}

func (b *bootstrapper) initService() error {
	b.app.service = service.New(b.app.engine, b.app.model,
		service.WithLogger(b.app.logger),
		service.WithValidatorDelay(b.app.config.Editor.ValidatorDelay.Std()),
	)
	return nil
}

// initScripts loads the Lua editors. A broken script is logged and skipped
// so that the built-in editors stay usable.
func (b *bootstrapper) initScripts() error {
	app := b.app
	app.scripts = script.NewLoader(app.engine,
		script.WithLogger(app.logger),
		script.WithOnReload(app.service.TriggerUpdates),
	)
	dirs := slices.Concat(app.config.Scripts.Dirs, b.opts.ScriptDirs)
	var watched []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			app.logger.Warn("script directory %s: %v", dir, err)
			continue
		}
		if err := app.scripts.LoadDir(dir); err != nil {
			app.logger.Warn("scripts in %s: %v", dir, err)
		}
		watched = append(watched, dir)
	}
	if app.config.Scripts.Watch && len(watched) > 0 {
		if err := app.scripts.Watch(app.ctx, watched...); err != nil {
			app.logger.Warn("watch scripts: %v", err)
		}
	}
	return nil
}

func (b *bootstrapper) initDocuments() error {
	if len(b.opts.Documents) == 0 {
		doc, err := b.app.loadSample()
		if err != nil {
			return err
		}
		b.app.docs = append(b.app.docs, doc)
		return nil
	}
	for _, path := range b.opts.Documents {
		doc, err := b.app.LoadDocument(path)
		if err != nil {
			return err
		}
		b.app.docs = append(b.app.docs, doc)
	}
	return nil
}

// initConfigWatch follows changes of the configuration file. Only the log
// level takes effect without a restart.
func (b *bootstrapper) initConfigWatch() error {
	app := b.app
	path := b.opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	err := config.Watch(app.ctx, path, app.logger, func(cfg *config.Config) {
		app.cfgMu.Lock()
		app.config = cfg
		app.cfgMu.Unlock()
		if b.opts.LogLevel == "" {
			app.logger.SetLevel(cfg.LogLevel())
		}
	})
	if err != nil {
		app.logger.Warn("watch config: %v", err)
	}
	return nil
}

func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
	b.app.cancel()
}

func (b *bootstrapper) cleanupComponent(component string) {
	app := b.app
	switch component {
	case "logging":
		if app.logFile != nil {
			_ = app.logFile.Close()
			app.logFile = nil
		}
	case "service":
		_ = app.service.Close()
		app.service = nil
	case "scripts":
		app.scripts.Close()
		app.scripts = nil
	case "documents":
		app.docs = nil
	}
}
