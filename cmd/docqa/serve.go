package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/api"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(cfgPath func() string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat and admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Address
				}
				if a.cfg.Server.AdminToken == "" {
					a.log.Warn("no admin token configured; admin endpoints reject every request")
				}

				srv := api.NewServer(a.chat, a.indexer, a.collections(), a.sessions, api.Config{
					AdminToken:     a.cfg.Server.AdminToken,
					Scope:          a.cfg.RAG.Collection,
					RequestTimeout: a.cfg.Server.RequestTimeout,
					ChatTimeout:    a.cfg.Timeouts.Chat,
					IngestTimeout:  a.cfg.Timeouts.Ingest,
				},
					api.WithMetrics(a.metrics),
					api.WithLogger(a.log.With("component", "api")),
				)

				httpServer := &http.Server{
					Addr:              addr,
					Handler:           srv,
					ReadHeaderTimeout: 10 * time.Second,
					IdleTimeout:       60 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					a.log.Info("starting docqa", "addr", addr, "version", version)
					errCh <- httpServer.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
					a.log.Info("shutting down...")
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.address)")
	return cmd
}
