package chunker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dshills/docqa/internal/parser"
	"github.com/dshills/docqa/pkg/types"
)

const (
	// DefaultCharThreshold is the maximum block size ChunkText aims for
	DefaultCharThreshold = 1800

	// MinParagraphLength is the trimmed length a paragraph must exceed to
	// become its own fragment
	MinParagraphLength = 80
)

var (
	lineBreaks  = regexp.MustCompile(`\n+`)
	blankLines  = regexp.MustCompile(`\n\s*\n`)
	markdownHdr = regexp.MustCompile(`^#{1,6}\s+\S`)
)

// Piece is a fragment-to-be: text cut from a chunk at a granularity level
type Piece struct {
	Text  string
	Level int
}

// SplitFragments cuts a chunk into paragraph pieces. When no paragraph is
// long enough the whole chunk becomes a single chunk-level piece.
func SplitFragments(text string) []Piece {
	var pieces []Piece
	for _, p := range lineBreaks.Split(text, -1) {
		p = strings.TrimSpace(p)
		if len([]rune(p)) > MinParagraphLength {
			pieces = append(pieces, Piece{Text: p, Level: types.LevelParagraph})
		}
	}
	if len(pieces) > 0 {
		return pieces
	}

	whole := strings.TrimSpace(text)
	if whole == "" {
		return nil
	}
	return []Piece{{Text: whole, Level: types.LevelChunk}}
}

// ChunkText groups the paragraphs of plain text or Markdown into chunks of
// roughly threshold characters. A heading always opens a new chunk. Chunks
// are numbered from 1 in PageNumber. threshold <= 0 uses
// DefaultCharThreshold.
func ChunkText(text, source string, threshold int) []types.Chunk {
	if threshold <= 0 {
		threshold = DefaultCharThreshold
	}

	var (
		chunks  []types.Chunk
		current strings.Builder
		index   = 1
	)
	flush := func() {
		if strings.TrimSpace(current.String()) == "" {
			current.Reset()
			return
		}
		chunks = append(chunks, types.Chunk{
			Text:           current.String(),
			PageNumber:     index,
			SourceDocument: source,
		})
		index++
		current.Reset()
	}

	for _, para := range blankLines.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		heading := isHeading(para)
		if heading {
			para = stripMarkdownHeading(para)
		}
		switch {
		case heading && current.Len() > 0:
			flush()
		case current.Len()+len(para) > threshold:
			flush()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	flush()

	return chunks
}

func isHeading(para string) bool {
	first := para
	if i := strings.IndexByte(para, '\n'); i >= 0 {
		first = para[:i]
	}
	return markdownHdr.MatchString(first) || parser.IsHeading(first)
}

// stripMarkdownHeading drops the leading #s so the structure extractor sees
// "Tema 2" rather than "## Tema 2"
func stripMarkdownHeading(para string) string {
	if !markdownHdr.MatchString(para) {
		return para
	}
	return strings.TrimLeft(para, "# \t")
}

// LoadChunksJSON decodes a JSON array of chunks and drops empty ones
func LoadChunksJSON(r io.Reader) ([]types.Chunk, error) {
	var raw []types.Chunk
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}

	chunks := make([]types.Chunk, 0, len(raw))
	for i, c := range raw {
		if err := c.Validate(); err != nil {
			if errors.Is(err, types.ErrEmptyContent) {
				continue
			}
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
