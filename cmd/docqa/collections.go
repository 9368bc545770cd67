package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func collectionsCmd(cfgPath func() string) *cobra.Command {
	var drop string

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List vector collections, or drop one with --delete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if drop != "" {
					if err := a.collections().DeleteCollection(ctx, drop); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted %s\n", drop)
					return nil
				}

				list, err := a.store.ListCollections(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "no collections")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tFRAGMENTS\tVECTOR SIZE\tCREATED")
				for _, c := range list {
					count, err := a.store.CountFragments(ctx, c.Name)
					if err != nil {
						a.log.Warn("failed to count fragments", "collection", c.Name, "err", err)
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", c.Name, count, c.VectorSize, c.CreatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&drop, "delete", "", "collection to drop")
	return cmd
}
