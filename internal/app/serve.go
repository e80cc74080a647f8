package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/cellstorm/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the websocket backend on addr, or the configured address when
// addr is empty, until ctx is done.
func (app *Application) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = app.Config().Server.Address
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return app.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done. ln is closed on return.
func (app *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	cfg := app.Config()
	log := app.logger.WithComponent("serve")
	ws := transport.NewServer(app.service, transport.WithServerLogger(app.logger))
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, ws)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		_ = ws.Close()
		return err
	})

	log.Info("listening on ws://%s%s", ln.Addr(), cfg.Server.Path)
	for _, d := range app.docs {
		log.Info("document %s: node %s", d.Name, d.Node)
	}
	err := g.Wait()
	log.Info("stopped")
	return err
}
