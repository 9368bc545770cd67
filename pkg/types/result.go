package types

import (
	"fmt"
	"strings"
)

// SearchResult is a ranked fragment handed to answer generators
type SearchResult struct {
	// Identification
	ID         string
	Collection string
	Rank       int // Position in result set (1-based)

	// Scoring
	Score float64 // Level-weighted similarity, optionally fused with BM25

	// Payload
	Text       string
	Document   string
	PageNumber int
	Topic      string
	Subtopic   string
	Level      int
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrMissingID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Text == "" {
		return ErrEmptyContent
	}
	return nil
}

// Filters is an exact-match conjunction over fragment payload fields.
// Zero-valued fields are not constrained.
type Filters struct {
	Document   string
	SessionID  string
	PageNumber int
	Topic      string
	Subtopic   string
	Level      int
}

// IsEmpty reports whether no field is constrained
func (f Filters) IsEmpty() bool {
	return f == Filters{}
}

// String renders the constrained fields in a stable order
func (f Filters) String() string {
	parts := make([]string, 0, 6)
	if f.Document != "" {
		parts = append(parts, "document="+f.Document)
	}
	if f.SessionID != "" {
		parts = append(parts, "session_id="+f.SessionID)
	}
	if f.PageNumber > 0 {
		parts = append(parts, fmt.Sprintf("page_number=%d", f.PageNumber))
	}
	if f.Topic != "" {
		parts = append(parts, "tema="+f.Topic)
	}
	if f.Subtopic != "" {
		parts = append(parts, "subtema="+f.Subtopic)
	}
	if f.Level > 0 {
		parts = append(parts, fmt.Sprintf("nivel=%d", f.Level))
	}
	return strings.Join(parts, ",")
}
