package storage

import (
	"context"
	"time"

	"github.com/dshills/docqa/pkg/types"
)

// Distance metrics supported by collections
const (
	DistanceCosine = "cosine"
)

// Default collection parameters
const (
	DefaultVectorSize  = 384
	DefaultHNSWM       = 32
	DefaultEFConstruct = 256
)

// Payload fields that can carry an exact-match index
const (
	FieldDocument   = "document"
	FieldSessionID  = "session_id"
	FieldPageNumber = "page_number"
	FieldTopic      = "tema"
	FieldSubtopic   = "subtema"
	FieldLevel      = "nivel"
)

// DefaultPayloadIndexes lists the payload fields indexed on every collection
var DefaultPayloadIndexes = []string{
	FieldDocument, FieldSessionID, FieldPageNumber, FieldTopic, FieldSubtopic, FieldLevel,
}

// VectorStore defines collection lifecycle, fragment upsert and filtered
// nearest-neighbour search.
type VectorStore interface {
	// Collection operations
	EnsureCollection(ctx context.Context, name string, cfg CollectionConfig) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	DeleteCollection(ctx context.Context, name string) error

	// Fragment operations
	Upsert(ctx context.Context, collection string, fragments []types.Fragment) error
	GetFragment(ctx context.Context, collection, id string) (*types.Fragment, error)
	CountFragments(ctx context.Context, collection string) (int, error)

	// Search operations
	Search(ctx context.Context, collection string, vector []float32, limit int, filters types.Filters) ([]Hit, error)

	LexicalStore

	// Status operations
	Status(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
}

// LexicalStore persists the raw chunks behind the in-memory BM25 indexes
// so they can be rebuilt after a restart.
type LexicalStore interface {
	AppendLexicalDocument(ctx context.Context, scope string, doc LexicalDocument) error
	ListLexicalDocuments(ctx context.Context, scope string) ([]LexicalDocument, error)
	LexicalScopes(ctx context.Context) ([]string, error)
}

// CollectionConfig describes a collection at creation time
type CollectionConfig struct {
	VectorSize     int
	Distance       string
	HNSWM          int
	EFConstruct    int
	PayloadIndexes []string
}

// DefaultCollectionConfig returns the parameters used for document collections
func DefaultCollectionConfig(vectorSize int) CollectionConfig {
	if vectorSize <= 0 {
		vectorSize = DefaultVectorSize
	}
	return CollectionConfig{
		VectorSize:     vectorSize,
		Distance:       DistanceCosine,
		HNSWM:          DefaultHNSWM,
		EFConstruct:    DefaultEFConstruct,
		PayloadIndexes: DefaultPayloadIndexes,
	}
}

// Collection is a named partition of fragments
type Collection struct {
	Name           string
	VectorSize     int
	Distance       string
	HNSWM          int
	EFConstruct    int
	PayloadIndexes []string
	CreatedAt      time.Time
}

// Hit is a fragment returned by similarity search
type Hit struct {
	Fragment types.Fragment
	Score    float64 // cosine similarity
}

// LexicalDocument is a chunk recorded for BM25 rebuilds
type LexicalDocument struct {
	ID         int64
	Scope      string
	Document   string
	PageNumber int
	Text       string
	CreatedAt  time.Time
}

// Status contains statistics about the store
type Status struct {
	Collections      int
	Fragments        int
	LexicalDocuments int
	SizeMB           float64
	SchemaVersion    string
	BuildMode        string
	Health           HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible       bool
	VectorExtensionAvailable bool
}
