package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/docqa/pkg/types"
)

// DefaultOrganization names the institution in canned answers and prompts
const DefaultOrganization = "UVAQ"

// NoInformationAnswer is returned when retrieval finds nothing
const NoInformationAnswer = "No tengo información sobre ese tema en los documentos oficiales."

const (
	answerMaxTokens   = 700
	answerTemperature = 0.1

	extractiveSnippetRunes = 400
	sourceSeparator        = "\n\n---\n\n"
)

func greetingAnswer(org string) string {
	return fmt.Sprintf("¡Hola! Soy tu asistente virtual de la %s. ¿En qué te puedo ayudar?", org)
}

func identityAnswer(org string) string {
	return fmt.Sprintf("Soy un asistente virtual de la %s. Mi propósito es responder preguntas "+
		"basadas *únicamente* en la información oficial de la universidad.", org)
}

func systemPrompt(org string) string {
	return fmt.Sprintf("Eres un asistente experto de la %s que solo usa las fuentes proporcionadas.", org)
}

func answerPrompt(org, question, context string) string {
	return fmt.Sprintf(`Eres un asistente experto de la %s. Responde en español usando únicamente la información proporcionada.
REGLAS ESTRICTAS:
1. Basa tu respuesta *solo* en las fuentes de contexto.
2. Si la información es contradictoria, señálalo.
3. Si la información es complementaria, sintetízala.
4. Formatea la respuesta en Markdown.
5. Si la información no es suficiente, di "%s"
---
Pregunta del Usuario: %s
---
Contexto de los Documentos: %s
---
Tu Respuesta:`, org, NoInformationAnswer, question, context)
}

// BuildContext renders results as the source blocks handed to the generator
func BuildContext(results []types.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Fuente: %s (Grupo %s):\n%s", orUnknown(r.Document), pageLabel(r.PageNumber), r.Text)
	}
	return strings.Join(parts, sourceSeparator)
}

// extractiveAnswer lists the best fragments when no generator can answer
func extractiveAnswer(results []types.SearchResult) string {
	var b strings.Builder
	b.WriteString("No pude redactar una respuesta, pero estos fragmentos de los documentos oficiales pueden ayudarte:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n- **%s (Grupo %s):** %s", orUnknown(r.Document), pageLabel(r.PageNumber), snippet(r.Text, extractiveSnippetRunes))
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func pageLabel(page int) string {
	if page <= 0 {
		return "?"
	}
	return strconv.Itoa(page)
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
