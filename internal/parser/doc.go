// Package parser derives structural metadata from chunk text and user queries.
//
// Two small parsers live here. The structure extractor tags a chunk with the
// hierarchical (topic, subtopic) keys found in its heading line, and the query
// parser detects explicit page or topic references in a question so they can
// be turned into exact-match filters.
//
// # Structure Extraction
//
//	tag := parser.ExtractStructure("Tema 2\nIntroducción al curso...")
//	// tag.Topic == "2", tag.Subtopic == "general"
//
// Only the first line is inspected. Rules apply in priority order:
//   - "tema|capítulo <id>" sets the topic
//   - "subtema|sección <id>" sets the subtopic
//   - a bare dotted heading ("2.1 Objetivos") is classified by part count:
//     two parts set the topic, three or more set the subtopic
//
// The part-count heuristic is coarse on purpose: it matches how existing
// collections were indexed and must not be refined without reindexing.
//
// # Sticky State
//
// Headings appear only on some chunks, so the current topic carries forward
// across an ingestion pass. Tracker is an immutable accumulator threaded
// through the ingestion loop:
//
//	tr := parser.NewTracker()
//	for _, c := range chunks {
//	    tr = tr.Observe(c.Text)
//	    tag := tr.Current()
//	}
//
// # Query Parsing
//
//	intent := parser.ParseQuery("¿qué dice el tema 2?")
//	// intent.Filters.Topic == "2"
//
// A page reference ("en la página 4") wins over topic references.
package parser
