package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/docqa/pkg/types"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		match   MatchKind
		filters types.Filters
	}{
		{"page reference", "¿Qué hay en la página 12?", MatchPage, types.Filters{PageNumber: 12}},
		{"page without accent", "resumen de la pagina 3", MatchPage, types.Filters{PageNumber: 3}},
		{"page wins over topic", "tema 2 en la página 5", MatchPage, types.Filters{PageNumber: 5}},
		{"single key is topic", "¿qué dice el tema 2?", MatchTopic, types.Filters{Topic: "2"}},
		{"two parts is topic", "explica el capítulo 2.1", MatchTopic, types.Filters{Topic: "2.1"}},
		{"three parts is subtopic", "háblame de la sección 2.1.3", MatchSubtopic, types.Filters{Subtopic: "2.1.3"}},
		{"subtopic word with one part", "subtema 4", MatchTopic, types.Filters{Topic: "4"}},
		{"no reference", "¿Cuáles son los requisitos de titulación?", MatchNone, types.Filters{}},
		{"non numeric key ignored", "tema introductorio", MatchNone, types.Filters{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := ParseQuery(tt.query)
			assert.Equal(t, tt.match, intent.Match)
			assert.Equal(t, tt.filters, intent.Filters)
			assert.Equal(t, tt.query, intent.Text)
			assert.Equal(t, !tt.filters.IsEmpty(), intent.HasFilters())
		})
	}
}
