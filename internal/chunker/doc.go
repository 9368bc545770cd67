// Package chunker turns documents into ingestible text.
//
// Two granularities are involved. ChunkText groups the paragraphs of a plain
// text or Markdown document into chunks of about 1800 characters, opening a
// new chunk at every heading; the chunk number stands in for a page number.
// SplitFragments then cuts each chunk into the paragraph-level pieces that
// are embedded and stored:
//
//	for _, c := range chunker.ChunkText(text, "reglamento.md", 0) {
//	    for _, p := range chunker.SplitFragments(c.Text) {
//	        fmt.Println(c.PageNumber, p.Level, p.Text)
//	    }
//	}
//
// Chunks extracted elsewhere (PDF pages, for instance) are read from JSON
// with LoadChunksJSON.
package chunker
