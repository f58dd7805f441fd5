package commands

import (
	"github.com/leapstack-labs/leapsql/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lineage HTTP API",
		Long: `Start an HTTP server exposing lineage analysis and the recorded lineage:

  POST /v1/lineage        analyze a statement (JSON {"sql": ...} or text/plain)
  GET  /v1/views          list scanned views
  GET  /v1/views/{name}   columns and lineage of one view
  GET  /v1/impact         ?column=t.c | ?table=t, &direction, &depth
  GET  /healthz`,
		Example: `  # Serve on the configured address
  viewlineage serve

  # Serve on all interfaces
  viewlineage serve --addr :8470`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: 127.0.0.1:8470)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	engineOpts, err := cmdCtx.EngineOptions(nil)
	if err != nil {
		return err
	}

	store, cleanup, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(server.Config{
		Addr:          cmdCtx.Cfg.Server.Addr,
		EngineOptions: engineOpts,
		Store:         store,
		Logger:        cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	go func() {
		select {
		case addr := <-srv.Listening():
			cmdCtx.Renderer.Successf("serving lineage API on http://%s (Ctrl+C to stop)", addr)
		case <-ctx.Done():
		}
	}()

	return srv.Serve(ctx)
}
