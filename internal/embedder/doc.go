// Package embedder generates vector embeddings for document fragments and
// queries.
//
// Providers:
//   - openai / jina: any OpenAI-compatible /embeddings endpoint, reached
//     through langchaingo. BaseURL points it at llama.cpp, vLLM or Ollama.
//   - local: offline feature hashing, 384 dimensions by default.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    BaseURL:   "http://localhost:8080/v1",
//	    Model:     "bge-m3",
//	    Dimension: 1024,
//	    CacheSize: 10000,
//	    Fallback:  "none",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "¿Qué dice el reglamento sobre bajas?",
//	})
//
// # Failure Handling
//
// Remote calls retry 3 times with exponential backoff (100ms, doubling,
// capped at 5s), bounded by the caller's context. When the provider is
// exhausted GenerateEmbedding returns an error wrapping ErrProviderFailed.
//
// A Fallback wrapper can instead return a zero or random placeholder with
// Embedding.Fallback set. Ingestion stores placeholders so a flaky provider
// does not lose chunks; retrieval and reranking treat them as failures.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by the SHA-256 of the text.
// Cached values are deep-copied on read. Placeholders are never cached.
package embedder
