// Package app wires the cellstorm components together: configuration,
// logging, the demo language, the engine and its service, Lua concept
// editors, and the serve, edit and render entry points.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/dshills/cellstorm/internal/config"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/lang/expr"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/script"
	"github.com/dshills/cellstorm/internal/service"
)

// Application holds the components shared by every command.
type Application struct {
	opts Options

	cfgMu   sync.RWMutex
	config  *config.Config
	logger  *logging.Logger
	logFile io.Closer

	lang    *expr.Language
	model   *model.Memory
	engine  *engine.Engine
	service *service.Service
	scripts *script.Loader

	docs []Document

	// ctx bounds the watchers; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	shutdown sync.Once
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty means the default path.
	ConfigPath string

	// LogLevel overrides the configured level when set.
	LogLevel string

	// ScriptDirs are searched for Lua concept editors in addition to the
	// configured directories.
	ScriptDirs []string

	// Documents are the files to load. The sample document is loaded when
	// there are none.
	Documents []string

	// Quiet discards log output unless a log file is configured. Used
	// while the terminal owns the screen.
	Quiet bool

	// LogOutput replaces stderr as the log destination.
	LogOutput io.Writer
}

// New loads the configuration and starts every component.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	app.ctx, app.cancel = context.WithCancel(context.Background())
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		app.cancel()
		return nil, err
	}
	return app, nil
}

// Config returns the active configuration. A watched file replaces it on
// change.
func (app *Application) Config() *config.Config {
	app.cfgMu.RLock()
	defer app.cfgMu.RUnlock()
	return app.config
}

// Logger returns the root logger.
func (app *Application) Logger() *logging.Logger { return app.logger }

// Service returns the editor service.
func (app *Application) Service() *service.Service { return app.service }

// Scripts returns the Lua editor loader.
func (app *Application) Scripts() *script.Loader { return app.scripts }

// Documents returns the loaded documents.
func (app *Application) Documents() []Document { return append([]Document(nil), app.docs...) }

// Shutdown stops the watchers, closes every editor and the log file.
func (app *Application) Shutdown() {
	app.shutdown.Do(func() {
		app.cancel()
		if app.scripts != nil {
			app.scripts.Close()
		}
		if app.service != nil {
			if err := app.service.Close(); err != nil {
				app.logger.Warn("close service: %v", err)
			}
		}
		app.logger.Debug("shut down")
		if app.logFile != nil {
			_ = app.logFile.Close()
		}
	})
}
