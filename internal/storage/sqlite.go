package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/docqa/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound is returned when writing to or searching a missing collection
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch is returned when a vector length differs from the collection size
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidCollection is returned for empty or malformed collection names
	ErrInvalidCollection = errors.New("invalid collection name")
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// indexableFields maps payload fields to their fragments column
var indexableFields = map[string]string{
	FieldDocument:   "document",
	FieldSessionID:  "session_id",
	FieldPageNumber: "page_number",
	FieldTopic:      "tema",
	FieldSubtopic:   "subtema",
	FieldLevel:      "nivel",
}

// SQLiteStore implements VectorStore on a single SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error
func (s *SQLiteStore) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Collection operations

// EnsureCollection creates the collection if it does not exist. An existing
// collection keeps its original configuration.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, cfg CollectionConfig) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	if cfg.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", cfg.VectorSize)
	}
	if cfg.Distance == "" {
		cfg.Distance = DistanceCosine
	}
	if cfg.Distance != DistanceCosine {
		return fmt.Errorf("unsupported distance %q", cfg.Distance)
	}
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = DefaultHNSWM
	}
	if cfg.EFConstruct <= 0 {
		cfg.EFConstruct = DefaultEFConstruct
	}

	fields := make([]string, 0, len(cfg.PayloadIndexes))
	for _, field := range cfg.PayloadIndexes {
		if _, ok := indexableFields[field]; !ok {
			return fmt.Errorf("payload field %q cannot be indexed", field)
		}
		fields = append(fields, field)
	}

	return s.withTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO collections (name, vector_size, distance, hnsw_m, ef_construct, payload_indexes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING
		`, name, cfg.VectorSize, cfg.Distance, cfg.HNSWM, cfg.EFConstruct, strings.Join(fields, ","), time.Now())
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		for _, field := range fields {
			column := indexableFields[field]
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_fragments_%s ON fragments(collection, %s)", column, column)
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create payload index %s: %w", field, err)
			}
		}
		return nil
	})
}

// CollectionExists reports whether a collection with the exact name exists
func (s *SQLiteStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections WHERE name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) getCollection(ctx context.Context, q querier, name string) (*Collection, error) {
	var c Collection
	var indexes string
	err := q.QueryRowContext(ctx, `
		SELECT name, vector_size, distance, hnsw_m, ef_construct, payload_indexes, created_at
		FROM collections
		WHERE name = ?
	`, name).Scan(&c.Name, &c.VectorSize, &c.Distance, &c.HNSWM, &c.EFConstruct, &indexes, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	c.PayloadIndexes = splitFields(indexes)
	return &c, nil
}

// GetCollection returns the collection configuration
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return s.getCollection(ctx, s.db, name)
}

// ListCollections returns all collections ordered by name
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, vector_size, distance, hnsw_m, ef_construct, payload_indexes, created_at
		FROM collections
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	collections := make([]Collection, 0)
	for rows.Next() {
		var c Collection
		var indexes string
		if err := rows.Scan(&c.Name, &c.VectorSize, &c.Distance, &c.HNSWM, &c.EFConstruct, &indexes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.PayloadIndexes = splitFields(indexes)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// ListCollectionNames implements NameLister
func (s *SQLiteStore) ListCollectionNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCollection removes a collection and its fragments. Lexical documents
// are keyed by base scope and shared by its topic collections, so they are
// removed only once no collection of that scope remains.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	return s.withTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
		if err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}

		scopes, err := queryStrings(ctx, q, "SELECT DISTINCT scope FROM lexical_documents")
		if err != nil {
			return fmt.Errorf("failed to list lexical scopes: %w", err)
		}
		remaining, err := queryStrings(ctx, q, "SELECT name FROM collections")
		if err != nil {
			return fmt.Errorf("failed to list collections: %w", err)
		}

		for _, scope := range scopes {
			if !InScope(name, scope) || scopeHasCollection(scope, remaining) {
				continue
			}
			if _, err := q.ExecContext(ctx, "DELETE FROM lexical_documents WHERE scope = ?", scope); err != nil {
				return fmt.Errorf("failed to delete lexical documents: %w", err)
			}
		}
		return nil
	})
}

func scopeHasCollection(scope string, names []string) bool {
	for _, n := range names {
		if InScope(n, scope) {
			return true
		}
	}
	return false
}

func queryStrings(ctx context.Context, q querier, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Fragment operations

// Upsert writes fragments in one transaction, replacing rows with the same ID
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, fragments []types.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	return s.withTx(ctx, func(q querier) error {
		coll, err := s.getCollection(ctx, q, collection)
		if err != nil {
			return err
		}

		now := time.Now()
		for i := range fragments {
			f := &fragments[i]
			if err := f.Validate(); err != nil {
				return fmt.Errorf("fragment %d: %w", i, err)
			}
			if len(f.Vector) != coll.VectorSize {
				return fmt.Errorf("%w: fragment %s has %d, collection %s expects %d",
					ErrDimensionMismatch, f.ID, len(f.Vector), collection, coll.VectorSize)
			}

			level := f.Level
			if level == 0 {
				level = types.LevelChunk
			}

			_, err := q.ExecContext(ctx, `
				INSERT INTO fragments (id, collection, text, document, session_id, tema, subtema, nivel,
				                       page_number, vector, dimension, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(collection, id) DO UPDATE SET
					text = excluded.text,
					document = excluded.document,
					session_id = excluded.session_id,
					tema = excluded.tema,
					subtema = excluded.subtema,
					nivel = excluded.nivel,
					page_number = excluded.page_number,
					vector = excluded.vector,
					dimension = excluded.dimension,
					updated_at = excluded.updated_at
			`, f.ID, collection, f.Text, f.Document, f.SessionID, f.Topic, f.Subtopic, level,
				nullablePage(f.PageNumber), serializeVector(f.Vector), len(f.Vector), now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert fragment %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

// GetFragment returns one fragment including its vector
func (s *SQLiteStore) GetFragment(ctx context.Context, collection, id string) (*types.Fragment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.collection, f.text, f.document, f.session_id, f.tema, f.subtema, f.nivel, f.page_number, f.vector
		FROM fragments f
		WHERE f.collection = ? AND f.id = ?
	`, collection, id)

	var frag types.Fragment
	var page sql.NullInt64
	var blob []byte
	err := row.Scan(&frag.ID, &frag.Collection, &frag.Text, &frag.Document, &frag.SessionID,
		&frag.Topic, &frag.Subtopic, &frag.Level, &page, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if page.Valid {
		frag.PageNumber = int(page.Int64)
	}
	frag.Vector = deserializeVector(blob)
	return &frag, nil
}

// CountFragments returns the number of fragments in a collection
func (s *SQLiteStore) CountFragments(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fragments WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	return n, nil
}

// Search returns up to limit fragments ordered by cosine similarity
func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, limit int, filters types.Filters) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}

	coll, err := s.getCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != coll.VectorSize {
		return nil, fmt.Errorf("%w: query has %d, collection %s expects %d",
			ErrDimensionMismatch, len(vector), collection, coll.VectorSize)
	}

	return searchVector(ctx, s.db, collection, vector, limit, filters)
}

// Lexical operations

// AppendLexicalDocument records a chunk for the scope's BM25 index
func (s *SQLiteStore) AppendLexicalDocument(ctx context.Context, scope string, doc LexicalDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lexical_documents (scope, document, page_number, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, scope, doc.Document, doc.PageNumber, doc.Text, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append lexical document: %w", err)
	}
	return nil
}

// ListLexicalDocuments returns a scope's chunks in insertion order
func (s *SQLiteStore) ListLexicalDocuments(ctx context.Context, scope string) ([]LexicalDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, document, page_number, text, created_at
		FROM lexical_documents
		WHERE scope = ?
		ORDER BY id
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list lexical documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]LexicalDocument, 0)
	for rows.Next() {
		var d LexicalDocument
		if err := rows.Scan(&d.ID, &d.Scope, &d.Document, &d.PageNumber, &d.Text, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// LexicalScopes returns the distinct scopes with persisted lexical documents
func (s *SQLiteStore) LexicalScopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT scope FROM lexical_documents ORDER BY scope")
	if err != nil {
		return nil, fmt.Errorf("failed to list lexical scopes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

// Status operations

// Status reports counts, size and health of the store
func (s *SQLiteStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		BuildMode: BuildMode,
		Health: HealthStatus{
			VectorExtensionAvailable: VectorExtensionAvailable,
		},
	}

	if err := s.db.PingContext(ctx); err != nil {
		return status, fmt.Errorf("database not accessible: %w", err)
	}
	status.Health.DatabaseAccessible = true

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM collections", &status.Collections},
		{"SELECT COUNT(*) FROM fragments", &status.Fragments},
		{"SELECT COUNT(*) FROM lexical_documents", &status.LexicalDocuments},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to read status: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	version, err := schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	return status, nil
}

func nullablePage(page int) sql.NullInt64 {
	if page <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(page), Valid: true}
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
