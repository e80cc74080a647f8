package config

import (
	"context"

	"github.com/dshills/cellstorm/internal/config/watcher"
	"github.com/dshills/cellstorm/internal/logging"
)

// Watch reloads the file at path whenever it changes and passes the new
// configuration to onReload. A file that fails to load or validate is
// logged and the previous configuration stays in effect. Watching stops
// when ctx is done.
func Watch(ctx context.Context, path string, logger *logging.Logger, onReload func(*Config)) error {
	if logger == nil {
		logger = logging.Nop()
	}
	if path == "" {
		path = DefaultPath()
	}
	w, err := watcher.New(watcher.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return err
	}
	log := logger.WithComponent("config").WithField("path", path)
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			log.Info("config file %s, keeping current settings", ev.Op)
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Warn("reload failed: %v", err)
			return
		}
		log.Info("reloaded")
		onReload(cfg)
	})
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	return nil
}
