package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/cellstorm/internal/app"
	"github.com/dshills/cellstorm/internal/render"
)

type globals struct {
	configPath string
	logLevel   string
	scripts    []string
}

func (g *globals) options(cmd *cobra.Command, docs []string) app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		LogLevel:   g.logLevel,
		ScriptDirs: g.scripts,
		Documents:  docs,
		LogOutput:  cmd.ErrOrStderr(),
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "cellstorm",
		Short:         "Projectional editor for test suites of arithmetic assertions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Edit the sample suite in the terminal
  cellstorm edit

  # Serve suites over websocket and edit one from another terminal
  cellstorm serve suites/sums.suite
  cellstorm edit --remote ws://127.0.0.1:7070/ws --node <node-id>

  # Print a suite once, with editors from a script directory
  cellstorm render --scripts ./scripts suites/sums.suite
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(g.logLevel) {
			case "", "debug", "info", "warn", "warning", "error":
				return nil
			default:
				return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", g.logLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	cmd.PersistentFlags().StringSliceVar(&g.scripts, "scripts", nil, "Directories of Lua concept editors")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newEditCmd(g))
	cmd.AddCommand(newRenderCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [suite files...]",
		Short: "Serve editor sessions over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(g.options(cmd, args))
			if err != nil {
				return err
			}
			defer a.Shutdown()
			return a.Serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from the configuration)")
	return cmd
}

func newEditCmd(g *globals) *cobra.Command {
	var remote, node string
	cmd := &cobra.Command{
		Use:   "edit [suite files...]",
		Short: "Edit a suite in the terminal",
		Long: strings.TrimSpace(`
Edit a suite in the terminal. Without --remote the suites given as arguments,
or the sample suite, are edited in process. With --remote the editor connects
to a serve process and opens the node given by --node.

Keys: arrows move, Tab and Shift+Tab jump between fields, Ctrl+Space completes,
F5 redraws the layout, Ctrl+C copies the selection, Ctrl+Q quits.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := g.options(cmd, args)
			opts.Quiet = true
			a, err := app.New(opts)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			return a.Edit(cmd.Context(), app.EditOptions{Remote: remote, Document: node})
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "Websocket URL of a serve process, e.g. ws://127.0.0.1:7070/ws")
	cmd.Flags().StringVar(&node, "node", "", "Document name, path or node ID to open")
	return cmd
}

func newRenderCmd(g *globals) *cobra.Command {
	var (
		doc         string
		plain       bool
		lineNumbers bool
		frame       bool
	)
	cmd := &cobra.Command{
		Use:   "render [suite files...]",
		Short: "Print the layout of a suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(g.options(cmd, args))
			if err != nil {
				return err
			}
			defer a.Shutdown()
			var opts []render.Option
			if plain {
				opts = append(opts, render.Plain())
			}
			if lineNumbers {
				opts = append(opts, render.WithLineNumbers())
			}
			if !frame {
				opts = append(opts, render.WithTitle(""))
			}
			return a.Render(cmd.Context(), cmd.OutOrStdout(), doc, opts...)
		},
	}
	cmd.Flags().StringVar(&doc, "document", "", "Document name, path or node ID (default: the first)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable colors")
	cmd.Flags().BoolVarP(&lineNumbers, "line-numbers", "n", false, "Number the lines")
	cmd.Flags().BoolVar(&frame, "frame", true, "Draw a titled frame")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cellstorm %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
