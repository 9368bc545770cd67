// Package indexer ingests document chunks into the vector store and the
// lexical index.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, lexical, &indexer.Config{BatchSize: 50})
//	idx.OnIndexed(srch.InvalidateCache)
//
//	stats, err := idx.IndexChunks(ctx, scope, chunks, "reglamento.pdf")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d fragments in %v\n", stats.FragmentsCreated, stats.Duration)
//
// # Pipeline
//
// For every chunk, in order:
//
//  1. Structure: the sticky topic/subtopic tracker folds the chunk's heading
//  2. Collection: the target collection is ensured (failures are logged)
//  3. Lexical: the whole chunk is added to the scope's BM25 index and persisted
//  4. Split: paragraphs longer than 80 characters become level 2 fragments,
//     otherwise the chunk itself is a level 1 fragment
//  5. Embed: fragments are embedded concurrently; failures skip the fragment
//  6. Store: pending fragments are written once more than BatchSize are
//     waiting, and at the last chunk
//
// # Concurrency
//
// A scope is ingested by one caller at a time; a concurrent IndexChunks on
// the same scope returns ErrIngestInProgress. Different scopes proceed in
// parallel.
//
// # Restarts
//
// BM25 indexes live in memory. Rebuild reloads them from the lexical
// documents persisted during ingestion.
package indexer
