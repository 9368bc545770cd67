package types

import (
	"errors"
	"strings"
)

// Structure sentinels used when no heading marker is found.
const (
	TopicGeneral = "general"
	SubtopicNone = "sin_subtema"
)

// Granularity levels used to weight retrieval scores.
const (
	LevelChunk     = 1 // whole chunk (page or group)
	LevelParagraph = 2
	LevelSentence  = 3
)

// Chunk is a unit of ingestible text produced by an external extractor
type Chunk struct {
	Text           string `json:"text_content"`
	PageNumber     int    `json:"page_number"`
	SourceDocument string `json:"source_document,omitempty"`
}

// Validate checks that the chunk carries text
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	if c.PageNumber < 0 {
		return ErrInvalidPageNumber
	}
	return nil
}

// StructureTag is the (topic, subtopic) pair derived from a chunk heading
type StructureTag struct {
	Topic    string
	Subtopic string
}

// DefaultStructure returns the tag used when no marker is found
func DefaultStructure() StructureTag {
	return StructureTag{Topic: TopicGeneral, Subtopic: SubtopicNone}
}

// HasTopic reports whether a concrete topic key was detected
func (s StructureTag) HasTopic() bool {
	return s.Topic != "" && s.Topic != TopicGeneral
}

// HasSubtopic reports whether a concrete subtopic key was detected
func (s StructureTag) HasSubtopic() bool {
	return s.Subtopic != "" && s.Subtopic != SubtopicNone
}

// Fragment is the smallest retrievable unit: a slice of a chunk with its
// embedding and payload. Fragments are replaced by ID, never mutated.
type Fragment struct {
	ID         string
	Text       string
	Vector     []float32
	Document   string
	SessionID  string
	Collection string
	Topic      string
	Subtopic   string
	Level      int
	PageNumber int
}

// Validate checks the fragment before it is written to a collection
func (f *Fragment) Validate() error {
	if f.ID == "" {
		return ErrMissingID
	}
	if f.Text == "" {
		return ErrEmptyContent
	}
	if len(f.Vector) == 0 {
		return ErrMissingVector
	}
	return nil
}

var (
	ErrMissingID         = errors.New("fragment ID is required")
	ErrMissingVector     = errors.New("fragment vector is required")
	ErrInvalidPageNumber = errors.New("page number must be >= 0")
)
