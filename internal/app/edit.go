package app

import (
	"context"
	"fmt"
	"io"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/cellstorm/internal/frontend"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/render"
	"github.com/dshills/cellstorm/internal/terminal"
	"github.com/dshills/cellstorm/internal/transport"
)

// EditOptions selects what Edit opens.
type EditOptions struct {
	// Remote is the websocket URL of a serve process. Empty edits the
	// local documents.
	Remote string
	// Document is a document name, path or node ID. Remote edits need the
	// node ID the server logged.
	Document string
	// Screen replaces the controlling terminal.
	Screen tcell.Screen
	// Terminal adds options to the terminal after the theme and logger.
	Terminal []terminal.Option
}

// Edit runs the terminal editor until the user quits or ctx is done.
func (app *Application) Edit(ctx context.Context, opts EditOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var svc protocol.Service = app.service
	node := opts.Document
	if opts.Remote != "" {
		if node == "" {
			return ErrNodeRequired
		}
		c, err := transport.Dial(ctx, opts.Remote, transport.WithClientLogger(app.logger))
		if err != nil {
			return err
		}
		defer c.Close()
		go func() {
			select {
			case <-c.Done():
				app.logger.Warn("connection to %s ended", opts.Remote)
				cancel()
			case <-ctx.Done():
			}
		}()
		svc = c
	} else {
		doc, err := app.Document(node)
		if err != nil {
			return err
		}
		node = string(doc.Node)
	}

	cfg := app.Config()
	theme, err := terminal.NewTheme(cfg.Theme)
	if err != nil {
		return err
	}
	screen := opts.Screen
	if screen == nil {
		if screen, err = terminal.NewScreen(); err != nil {
			return err
		}
	}
	topts := append([]terminal.Option{terminal.WithTheme(theme), terminal.WithLogger(app.logger)}, opts.Terminal...)
	term := terminal.New(screen, topts...)

	ed, err := app.openEditor(ctx, svc, node, frontend.WithOnChange(term.Refresh))
	if err != nil {
		return err
	}
	defer ed.Close()
	return term.Run(ctx, ed)
}

func (app *Application) openEditor(ctx context.Context, svc protocol.Service, node string, opts ...frontend.Option) (*frontend.Editor, error) {
	opts = append([]frontend.Option{
		frontend.WithLogger(app.logger),
		frontend.WithInputCapacity(app.Config().Editor.InputCapacity),
	}, opts...)
	ed := frontend.New(svc, opts...)
	if err := ed.Start(ctx); err != nil {
		return nil, err
	}
	if err := ed.Open(ctx, node); err != nil {
		_ = ed.Close()
		return nil, fmt.Errorf("open %s: %w", node, err)
	}
	return ed, nil
}

// Render writes the layout of a document to w.
func (app *Application) Render(ctx context.Context, w io.Writer, key string, opts ...render.Option) error {
	doc, err := app.Document(key)
	if err != nil {
		return err
	}
	ed, err := app.openEditor(ctx, app.service, string(doc.Node))
	if err != nil {
		return err
	}
	defer ed.Close()

	cfg := app.Config()
	title := doc.Name
	if doc.Path != "" {
		title = doc.Path
	}
	opts = append([]render.Option{
		render.WithTheme(cfg.Theme),
		render.WithIndentWidth(cfg.Editor.TabStop),
		render.WithTitle(title),
	}, opts...)
	return render.New(w, opts...).Write(w, ed.View())
}
