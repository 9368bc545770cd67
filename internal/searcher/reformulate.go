package searcher

import (
	"context"
	"errors"

	"github.com/dshills/docqa/internal/generator"
	"github.com/dshills/docqa/pkg/types"
)

const reformulatePrompt = "Eres un ayudante que reformula preguntas para mejorar la búsqueda " +
	"en una base de conocimiento interna. No inventes hechos ni añadas " +
	"información externa, solo reformula con sinónimos o detalle útil."

const (
	reformulateMaxTokens   = 200
	reformulateTemperature = 0.25
)

// reformulate asks the generator for a search-friendly rewording of query.
// Any failure yields the original query.
func (s *Searcher) reformulate(ctx context.Context, query string) types.Outcome[string] {
	if s.generator == nil {
		return types.OK(query)
	}

	out, err := s.generator.Complete(ctx, generator.Request{
		System:      reformulatePrompt,
		Prompt:      query,
		MaxTokens:   reformulateMaxTokens,
		Temperature: reformulateTemperature,
	})
	switch {
	case errors.Is(err, generator.ErrDisabled):
		return types.OK(query)
	case err != nil:
		s.logger.Warn("query reformulation failed, using original", "err", err)
		return types.Degraded(query, "reformulation failed: "+err.Error())
	case out == "":
		return types.Degraded(query, "reformulation empty")
	}

	s.logger.Debug("query reformulated", "original", query, "reformulated", out)
	return types.OK(out)
}
