package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docqa/pkg/types"
)

func long(prefix string) string {
	return prefix + " " + strings.Repeat("contenido relevante del reglamento ", 4)
}

func TestSplitFragments(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantLevels []int
	}{
		{
			name:       "long paragraphs become level 2",
			text:       long("uno") + "\n" + long("dos") + "\n\n\n" + long("tres"),
			wantLevels: []int{2, 2, 2},
		},
		{
			name:       "short lines are dropped",
			text:       "Tema 2\n" + long("uno") + "\nnota breve",
			wantLevels: []int{2},
		},
		{
			name:       "no long paragraph falls back to the whole chunk",
			text:       "Tema 2\nIntroducción breve.",
			wantLevels: []int{1},
		},
		{
			name:       "blank text yields nothing",
			text:       " \n\n ",
			wantLevels: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces := SplitFragments(tt.text)
			var levels []int
			for _, p := range pieces {
				levels = append(levels, p.Level)
				assert.Equal(t, strings.TrimSpace(p.Text), p.Text)
			}
			assert.Equal(t, tt.wantLevels, levels)
		})
	}
}

func TestSplitFragments_ThresholdIsExclusive(t *testing.T) {
	exact := strings.Repeat("a", MinParagraphLength)
	pieces := SplitFragments(exact)
	require.Len(t, pieces, 1)
	assert.Equal(t, types.LevelChunk, pieces[0].Level)

	pieces = SplitFragments(exact + "b")
	require.Len(t, pieces, 1)
	assert.Equal(t, types.LevelParagraph, pieces[0].Level)
}

func TestSplitFragments_CountsRunes(t *testing.T) {
	// 50 two-byte runes is 100 bytes but only 50 characters
	pieces := SplitFragments(strings.Repeat("ñ", 50))
	require.Len(t, pieces, 1)
	assert.Equal(t, types.LevelChunk, pieces[0].Level)
}

func TestChunkText_HeadingsOpenChunks(t *testing.T) {
	text := "Introducción general.\n\n" +
		"Tema 1 Inscripciones\n\nLos alumnos se inscriben en agosto.\n\n" +
		"## Tema 2 Becas\n\nLas becas se renuevan cada semestre."

	chunks := ChunkText(text, "reglamento.md", 0)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Introducción general.\n\n", chunks[0].Text)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Tema 1 Inscripciones"))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "Tema 2 Becas"), "markdown marker is stripped")

	for i, c := range chunks {
		assert.Equal(t, i+1, c.PageNumber)
		assert.Equal(t, "reglamento.md", c.SourceDocument)
	}
}

func TestChunkText_Threshold(t *testing.T) {
	para := strings.Repeat("x", 40)
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	chunks := ChunkText(text, "doc", 100)
	// each paragraph adds 42 characters; a third would exceed 100
	require.Len(t, chunks, 3)
	assert.Equal(t, para+"\n\n"+para+"\n\n", chunks[0].Text)
	assert.Equal(t, para+"\n\n", chunks[2].Text)
}

func TestChunkText_OversizedParagraph(t *testing.T) {
	huge := strings.Repeat("y", 300)
	chunks := ChunkText("corto\n\n"+huge+"\n\nfinal", "doc", 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, huge+"\n\n", chunks[1].Text)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", "doc", 0))
	assert.Empty(t, ChunkText("\n\n  \n\n", "doc", 0))
}

func TestLoadChunksJSON(t *testing.T) {
	input := `[
		{"text_content": "Tema 2\nBecas", "page_number": 3, "source_document": "reglamento.pdf"},
		{"text_content": "   ", "page_number": 4},
		{"text_content": "Calendario", "page_number": 5}
	]`

	chunks, err := LoadChunksJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 3, chunks[0].PageNumber)
	assert.Equal(t, "reglamento.pdf", chunks[0].SourceDocument)
	assert.Equal(t, "", chunks[1].SourceDocument)

	_, err = LoadChunksJSON(strings.NewReader(`{"text_content": "x"}`))
	assert.Error(t, err)

	_, err = LoadChunksJSON(strings.NewReader(`[{"text_content": "x", "page_number": -1}]`))
	assert.ErrorIs(t, err, types.ErrInvalidPageNumber)
}
