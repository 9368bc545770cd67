package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/embedder"
)

func embedCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>",
		Short: "Embed a text with the configured provider to check connectivity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				start := time.Now()
				emb, err := a.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
					Text: strings.Join(args, " "),
				})
				if err != nil {
					return fmt.Errorf("embedding failed: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "provider:  %s\n", emb.Provider)
				fmt.Fprintf(out, "model:     %s\n", emb.Model)
				fmt.Fprintf(out, "dimension: %d\n", len(emb.Vector))
				fmt.Fprintf(out, "usable:    %v\n", embedder.IsUsable(emb))
				fmt.Fprintf(out, "latency:   %s\n", time.Since(start).Round(time.Millisecond))
				if n := len(emb.Vector); n > 0 {
					fmt.Fprintf(out, "head:      %v\n", emb.Vector[:min(n, 5)])
				}
				return nil
			})
		},
	}
}
