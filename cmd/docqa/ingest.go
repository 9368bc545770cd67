package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/chunker"
	"github.com/dshills/docqa/pkg/types"
)

func ingestCmd(cfgPath func() string) *cobra.Command {
	var (
		documentID string
		collection string
		threshold  int
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Index a chunk file (.json) or a text document (.txt, .md)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if documentID == "" {
				documentID = filepath.Base(path)
			}
			chunks, err := loadChunks(path, documentID, threshold)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				return fmt.Errorf("no text could be extracted from %s", path)
			}

			return withApp(cmd.Context(), cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				scope := collection
				if scope == "" {
					scope = a.cfg.RAG.Collection
				}
				ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.Ingest)
				defer cancel()
				stats, err := a.indexer.IndexChunks(ctx, scope, chunks, documentID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Documento '%s' indexado correctamente\n", documentID)
				fmt.Fprintf(out, "  chunks:      %d (%d skipped)\n", stats.ChunksProcessed, stats.ChunksSkipped)
				fmt.Fprintf(out, "  fragments:   %d (%d skipped)\n", stats.FragmentsCreated, stats.FragmentsSkipped)
				fmt.Fprintf(out, "  collections: %s\n", strings.Join(stats.Collections, ", "))
				fmt.Fprintf(out, "  duration:    %s\n", stats.Duration)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "document name stored on fragments (default: file name)")
	cmd.Flags().StringVar(&collection, "collection", "", "target scope (default from rag.collection)")
	cmd.Flags().IntVar(&threshold, "threshold", chunker.DefaultCharThreshold, "block size in characters for text documents")
	return cmd
}

// loadChunks reads chunks by file extension
func loadChunks(path, documentID string, threshold int) ([]types.Chunk, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return chunker.LoadChunksJSON(f)
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return chunker.ChunkText(string(data), documentID, threshold), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q: use .json, .txt or .md", ext)
	}
}
