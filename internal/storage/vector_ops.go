package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/docqa/pkg/types"
)

const fragmentColumns = `f.id, f.collection, f.text, f.document, f.session_id, f.tema, f.subtema, f.nivel, f.page_number`

// searchVector performs filtered cosine similarity search over a collection
func searchVector(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filters types.Filters) ([]Hit, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, collection, queryVector, limit, filters)
	}
	return searchVectorFallback(ctx, q, collection, queryVector, limit, filters)
}

// searchVectorOptimized ranks in SQL with the sqlite-vec extension
func searchVectorOptimized(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filters types.Filters) ([]Hit, error) {
	blob := serializeVector(queryVector)

	// vec_distance_cosine is a distance; convert to similarity
	query := `
		SELECT ` + fragmentColumns + `,
			1.0 - vec_distance_cosine(f.vector, ?) AS similarity
		FROM fragments f
		WHERE f.collection = ?
	`
	args := []interface{}{blob, collection}
	query, args = applyFilters(query, args, filters)
	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var hit Hit
		var page sql.NullInt64
		f := &hit.Fragment
		if err := rows.Scan(&f.ID, &f.Collection, &f.Text, &f.Document, &f.SessionID,
			&f.Topic, &f.Subtopic, &f.Level, &page, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if page.Valid {
			f.PageNumber = int(page.Int64)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchVectorFallback loads the filtered candidates and ranks them in Go.
// Used by purego builds where sqlite-vec is unavailable.
func searchVectorFallback(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filters types.Filters) ([]Hit, error) {
	query := `
		SELECT ` + fragmentColumns + `, f.vector
		FROM fragments f
		WHERE f.collection = ?
	`
	args := []interface{}{collection}
	query, args = applyFilters(query, args, filters)
	// Deterministic order for equal scores
	query += " ORDER BY f.rowid"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits, err := scoreRows(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// applyFilters appends one equality condition per constrained field
func applyFilters(query string, args []interface{}, filters types.Filters) (string, []interface{}) {
	if filters.Document != "" {
		query += " AND f.document = ?"
		args = append(args, filters.Document)
	}
	if filters.SessionID != "" {
		query += " AND f.session_id = ?"
		args = append(args, filters.SessionID)
	}
	if filters.PageNumber > 0 {
		query += " AND f.page_number = ?"
		args = append(args, filters.PageNumber)
	}
	if filters.Topic != "" {
		query += " AND f.tema = ?"
		args = append(args, filters.Topic)
	}
	if filters.Subtopic != "" {
		query += " AND f.subtema = ?"
		args = append(args, filters.Subtopic)
	}
	if filters.Level > 0 {
		query += " AND f.nivel = ?"
		args = append(args, filters.Level)
	}
	return query, args
}

// scoreRows reads fragment rows and computes their cosine similarity
func scoreRows(rows *sql.Rows, queryVector []float32) ([]Hit, error) {
	hits := make([]Hit, 0, 64)

	for rows.Next() {
		var hit Hit
		var page sql.NullInt64
		var blob []byte
		f := &hit.Fragment
		if err := rows.Scan(&f.ID, &f.Collection, &f.Text, &f.Document, &f.SessionID,
			&f.Topic, &f.Subtopic, &f.Level, &page, &blob); err != nil {
			return nil, err
		}
		if page.Valid {
			f.PageNumber = int(page.Int64)
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		hit.Score = cosineSimilarity(queryVector, vector)
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// sortHits orders hits by score, descending, keeping row order on ties
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineSimilarity is exported for callers that rank vectors outside the store
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
