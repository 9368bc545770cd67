package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/docqa/pkg/types"
)

var (
	pageReference = regexp.MustCompile(`(?i)(en la |de la )?p[aá]gina\s+([0-9]+)`)
	keyReference  = regexp.MustCompile(`(?i)(?:tema|cap[ií]tulo|subtema|secci[oó]n)\s+([0-9]+(?:\.[0-9]+)*)`)
)

// MatchKind names the explicit metadata reference found in a query
type MatchKind string

const (
	MatchNone     MatchKind = "none"
	MatchPage     MatchKind = "page"
	MatchTopic    MatchKind = "topic"
	MatchSubtopic MatchKind = "subtopic"
)

// QueryIntent is the metadata detected in a raw query
type QueryIntent struct {
	Filters types.Filters
	Match   MatchKind
	Text    string // text to embed; always the original query
}

// HasFilters reports whether the query carried an explicit reference
func (q QueryIntent) HasFilters() bool {
	return !q.Filters.IsEmpty()
}

// ParseQuery detects explicit page or topic references in message.
// A page reference short-circuits; otherwise a topic/chapter/subtopic/section
// key is routed to the topic or subtopic filter by its dotted depth.
func ParseQuery(message string) QueryIntent {
	intent := QueryIntent{Match: MatchNone, Text: message}

	if m := pageReference.FindStringSubmatch(message); m != nil {
		if page, err := strconv.Atoi(m[2]); err == nil && page > 0 {
			intent.Filters.PageNumber = page
			intent.Match = MatchPage
			return intent
		}
	}

	if m := keyReference.FindStringSubmatch(message); m != nil {
		key := m[1]
		if parts := strings.Count(key, ".") + 1; parts > 2 {
			intent.Filters.Subtopic = key
			intent.Match = MatchSubtopic
		} else {
			intent.Filters.Topic = key
			intent.Match = MatchTopic
		}
	}

	return intent
}
