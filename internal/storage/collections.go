package storage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// CollectionPrefix is prepended to UUID scopes
	CollectionPrefix = "knowledge_"

	// GlobalScope is the collection used when no scope is given
	GlobalScope = "knowledge_global"

	maxTopicSuffix = 40
)

var unsafeTopicChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// CollectionName derives the collection for a scope. A UUID scope becomes
// knowledge_<uuid>; anything else is used verbatim. In multi mode a topic
// other than "general" adds a sanitized suffix.
func CollectionName(scope, topic string, multi bool) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = GlobalScope
	}

	base := scope
	if _, err := uuid.Parse(scope); err == nil {
		base = CollectionPrefix + strings.ToLower(scope)
	}

	if !multi || topic == "" || topic == "general" {
		return base
	}
	return base + "_" + safeTopic(topic)
}

// InScope reports whether collection is base itself or one of its topic
// collections
func InScope(collection, base string) bool {
	return collection == base || strings.HasPrefix(collection, base+"_")
}

func safeTopic(topic string) string {
	safe := unsafeTopicChars.ReplaceAllString(strings.ToLower(topic), "_")
	if len(safe) > maxTopicSuffix {
		safe = safe[:maxTopicSuffix]
	}
	return safe
}

// ResolutionKind classifies a collection lookup
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	Found
	Ambiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the result of resolving a scope to stored collections.
// Candidates holds every collection sharing the scope's base name (the base
// itself first when present); Name is the preferred one.
type Resolution struct {
	Kind       ResolutionKind
	Name       string
	Candidates []string
}

// NameLister lists collection names
type NameLister interface {
	ListCollectionNames(ctx context.Context) ([]string, error)
}

// ResolveCollection maps a scope to its collection. When the exact name is
// missing, its topic collections (base_<topic>) are candidates.
func ResolveCollection(ctx context.Context, lister NameLister, scope string) (Resolution, error) {
	base := CollectionName(scope, "", false)
	topicPrefix := base + "_"

	names, err := lister.ListCollectionNames(ctx)
	if err != nil {
		return Resolution{Kind: NotFound, Name: base}, fmt.Errorf("failed to list collections: %w", err)
	}

	exact := false
	var prefixed []string
	for _, name := range names {
		switch {
		case name == base:
			exact = true
		case strings.HasPrefix(name, topicPrefix):
			prefixed = append(prefixed, name)
		}
	}
	sort.Strings(prefixed)

	if exact {
		return Resolution{Kind: Found, Name: base, Candidates: append([]string{base}, prefixed...)}, nil
	}

	switch len(prefixed) {
	case 0:
		return Resolution{Kind: NotFound, Name: base}, nil
	case 1:
		return Resolution{Kind: Found, Name: prefixed[0], Candidates: prefixed}, nil
	default:
		return Resolution{Kind: Ambiguous, Name: prefixed[0], Candidates: prefixed}, nil
	}
}
