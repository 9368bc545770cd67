// Package searcher is the hybrid retrieval coordinator: it turns a user
// question into ranked document fragments.
//
// # Pipeline
//
//	Parse -> Reformulate -> Embed -> Filter-Resolve -> Retrieve -> Weight -> Merge -> TopK
//
//   - Parse: explicit "página N" or "tema/capítulo/subtema/sección X.Y"
//     references become exact-match filters (see parser.ParseQuery).
//   - Reformulate: in hyde modes the generator rewrites the question with
//     synonyms. Failures keep the original text.
//   - Embed: the reformulated text, then the original if that fails. If
//     both fail Search returns ErrEmbeddingUnavailable.
//   - Filter-Resolve: an explicit document wins; otherwise, when the query
//     named nothing, the session focus is inherited as a document filter.
//   - Retrieve: the scope resolves to a collection, or to its topic
//     collections by prefix. Store errors yield an empty, degraded result.
//   - Weight: scores are scaled by fragment level (chunk 0.8, paragraph
//     1.0, sentence 0.9). Hybrid modes add a BM25 boost per document page.
//
// # Basic Usage
//
//	s := searcher.New(store, emb,
//	    searcher.WithGenerator(gen),
//	    searcher.WithLexical(registry),
//	)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Scope: "knowledge_global",
//	    Query: "¿Qué dice el tema 2?",
//	    Focus: session.CurrentFocus,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s p.%d (%.3f)\n", r.Rank, r.Document, r.PageNumber, r.Score)
//	}
//
// # Degradation
//
// Fallbacks never fail a search. Each one is logged, counted and listed in
// SearchResponse.Degradations. Degraded responses are not cached.
package searcher
