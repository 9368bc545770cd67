package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/docqa/pkg/types"
)

// maxHeadingRunes bounds the length of a bare numeric heading line
const maxHeadingRunes = 200

var (
	topicHeading    = regexp.MustCompile(`(?i)^(?:tema|cap[ií]tulo|capitulo)\s+([a-zA-Z0-9._\-]+)`)
	subtopicHeading = regexp.MustCompile(`(?i)^(?:subtema|secci[oó]n)\s+([a-zA-Z0-9._\-]+)`)
	numericHeading  = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)+)\s+[:\-]?\s*(.+)$`)
)

// ExtractStructure returns the (topic, subtopic) keys found in the first line
// of text, or the default tag when the line carries no structural marker.
func ExtractStructure(text string) types.StructureTag {
	line := firstLine(text)

	if m := topicHeading.FindStringSubmatch(line); m != nil {
		return types.StructureTag{Topic: m[1], Subtopic: types.TopicGeneral}
	}

	if m := subtopicHeading.FindStringSubmatch(line); m != nil {
		return types.StructureTag{Topic: types.TopicGeneral, Subtopic: m[1]}
	}

	if m := numericHeading.FindStringSubmatch(line); m != nil && utf8.RuneCountInString(line) < maxHeadingRunes {
		key := m[1]
		switch parts := strings.Count(key, ".") + 1; {
		case parts == 2:
			return types.StructureTag{Topic: key, Subtopic: types.TopicGeneral}
		case parts > 2:
			return types.StructureTag{Topic: types.TopicGeneral, Subtopic: key}
		}
	}

	return types.DefaultStructure()
}

// IsHeading reports whether the first line of text carries a structural marker
func IsHeading(text string) bool {
	return ExtractStructure(text) != types.DefaultStructure()
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Tracker carries the sticky structure state of one ingestion pass.
// It is a value type; Observe returns the next state and leaves the
// receiver untouched.
type Tracker struct {
	current types.StructureTag
}

// NewTracker starts a pass at the default structure
func NewTracker() Tracker {
	return Tracker{current: types.DefaultStructure()}
}

// Observe folds the structure of text into the tracker. A detected topic
// replaces the current topic and a detected subtopic replaces the current
// subtopic; sentinel values never overwrite what is already active.
func (t Tracker) Observe(text string) Tracker {
	if t.current == (types.StructureTag{}) {
		t.current = types.DefaultStructure()
	}

	tag := ExtractStructure(text)
	next := t
	if tag.HasTopic() {
		next.current.Topic = tag.Topic
	}
	if tag.HasSubtopic() {
		next.current.Subtopic = tag.Subtopic
	}
	return next
}

// Current returns the active structure tag
func (t Tracker) Current() types.StructureTag {
	if t.current == (types.StructureTag{}) {
		return types.DefaultStructure()
	}
	return t.current
}
