package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/searcher"
)

func searchCmd(cfgPath func() string) *cobra.Command {
	var (
		collection string
		document   string
		focus      string
		mode       string
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a retrieval query and print the ranked fragments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				if _, err := searcher.ParseMode(mode); err != nil {
					return err
				}
			}

			return withApp(cmd.Context(), cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				scope := collection
				if scope == "" {
					scope = a.cfg.RAG.Collection
				}
				ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.Chat)
				defer cancel()
				resp, err := a.searcher.Search(ctx, searcher.SearchRequest{
					Scope:    scope,
					Query:    strings.Join(args, " "),
					TopK:     limit,
					Document: document,
					Focus:    focus,
					Mode:     searcher.Mode(mode),
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(resp)
				}

				if resp.Filters.Document != "" || resp.Filters.Topic != "" {
					fmt.Fprintf(out, "filters: document=%q tema=%q subtema=%q\n",
						resp.Filters.Document, resp.Filters.Topic, resp.Filters.Subtopic)
				}
				for _, d := range resp.Degradations {
					fmt.Fprintf(out, "degraded: %s\n", d)
				}
				if len(resp.Results) == 0 {
					fmt.Fprintln(out, "no results")
					return nil
				}
				for _, r := range resp.Results {
					fmt.Fprintf(out, "%2d. [%.3f] %s (Grupo %d)", r.Rank, r.Score, r.Document, r.PageNumber)
					if r.Topic != "" {
						fmt.Fprintf(out, " tema %s", r.Topic)
					}
					fmt.Fprintf(out, "\n    %s\n", snippet(r.Text, 200))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "scope to search (default from rag.collection)")
	cmd.Flags().StringVar(&document, "document", "", "restrict to a document")
	cmd.Flags().StringVar(&focus, "focus", "", "document used when the query names none")
	cmd.Flags().StringVar(&mode, "mode", "", "semantic, hyde, hybrid or hybrid+hyde (default from rag.mode)")
	cmd.Flags().IntVarP(&limit, "limit", "n", searcher.DefaultTopK, "number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
