package session

import "github.com/dshills/docqa/pkg/types"

// FocusShare is the fraction of results a document must exceed to become
// the session focus
const FocusShare = 0.6

// UpdateFocus returns the document that dominates results, "" when none
// does, or current when there are no results. Ties go to the document seen
// first.
func UpdateFocus(current string, results []types.SearchResult) string {
	if len(results) == 0 {
		return current
	}

	counts := make(map[string]int, len(results))
	order := make([]string, 0, len(results))
	for _, r := range results {
		if counts[r.Document] == 0 {
			order = append(order, r.Document)
		}
		counts[r.Document]++
	}

	top, topCount := "", 0
	for _, doc := range order {
		if counts[doc] > topCount {
			top, topCount = doc, counts[doc]
		}
	}

	if top != "" && float64(topCount)/float64(len(results)) > FocusShare {
		return top
	}
	return ""
}

// NextFocus prefers an explicitly selected document over the inferred one
func NextFocus(current, explicit string, results []types.SearchResult) string {
	if explicit != "" {
		return explicit
	}
	return UpdateFocus(current, results)
}
