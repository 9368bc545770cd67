// Package storage is the vector store adapter: named collections of
// embedded fragments in SQLite, filtered by exact-match payload fields and
// ranked by cosine similarity.
//
// # Database Schema
//
// Tables:
//   - collections: name, vector size, distance and ANN parameters
//   - fragments: text, payload (document, session_id, tema, subtema,
//     nivel, page_number) and the float32 vector as a little-endian blob
//   - lexical_documents: raw chunks per scope, replayed into BM25 indexes
//     on startup
//   - schema_version: applied migrations (semver ordered)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore("docqa.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	name := storage.CollectionName(scope, "", false)
//	_ = store.EnsureCollection(ctx, name, storage.DefaultCollectionConfig(384))
//	_ = store.Upsert(ctx, name, fragments)
//
//	hits, err := store.Search(ctx, name, queryVec, 6, types.Filters{Document: "reglamento"})
//
// # Collection Resolution
//
// Queries name a scope rather than a collection. ResolveCollection looks
// for the exact collection and falls back to prefix matches, which covers
// per-topic collections created in multi-collection mode.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and ranks in Go. Building with
// -tags sqlite_vec switches to github.com/mattn/go-sqlite3 and ranks in SQL.
package storage
