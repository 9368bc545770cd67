// Package types provides shared type definitions for the docqa engine.
//
// This package defines domain types used across the ingestion and retrieval
// components: chunks produced by text extractors, the structure tags derived
// from them, the fragments persisted in vector collections, and the ranked
// search results handed to answer generators.
//
// # Core Types
//
// Chunk is the unit of ingestible text produced by an external extractor:
//
//	chunk := types.Chunk{
//	    Text:           "Tema 2\nIntroducción al curso...",
//	    PageNumber:     1,
//	    SourceDocument: "syllabus.pdf",
//	}
//
// StructureTag carries the hierarchical (topic, subtopic) keys detected in a
// chunk heading. Fragment is a paragraph-level or whole-chunk slice of a chunk
// with its embedding and payload:
//
//	frag := types.Fragment{
//	    ID:         uuid.NewString(),
//	    Text:       paragraph,
//	    Vector:     vec,
//	    Document:   "syllabus.pdf",
//	    Topic:      "2",
//	    Subtopic:   types.SubtopicNone,
//	    Level:      types.LevelParagraph,
//	    PageNumber: 1,
//	}
//
// # Filters
//
// Filters is an exact-match conjunction over fragment payload fields. The zero
// value of a field leaves it unconstrained, so page number 0 and level 0 are
// never used as real values.
//
// # Outcomes
//
// Outcome is the typed result of steps that may fall back instead of failing.
// A step reports OK, Degraded (a fallback value was used) or Failed:
//
//	out := types.Degraded(query, "reformulation failed: timeout")
//	if out.IsDegraded() {
//	    log.Warn("degraded", "reason", out.Reason)
//	}
package types
