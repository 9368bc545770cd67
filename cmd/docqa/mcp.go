package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/mcp"
)

func mcpCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				mcp.ServerVersion = version
				server := mcp.NewServer(mcp.Deps{
					Ingester: a.indexer,
					Searcher: a.searcher,
					Chat:     a.chat,
					Store:    a.store,
					Scope:    a.cfg.RAG.Collection,
					Logger:   a.log.With("component", "mcp"),

					ChatTimeout:   a.cfg.Timeouts.Chat,
					IngestTimeout: a.cfg.Timeouts.Ingest,
				})
				err := server.Serve(ctx)
				if ctx.Err() != nil {
					a.log.Info("server stopped")
					return nil
				}
				return err
			})
		},
	}
}
