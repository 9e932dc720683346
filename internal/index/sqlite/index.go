// Package sqlite provides a file-backed vector index using the pure-Go
// SQLite driver. Embeddings are stored as BLOBs and ranked in process,
// which keeps the backend dependency-free of native extensions and fast
// enough for feedback corpora in the tens of thousands of chunks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver, registers as "sqlite"
)

// Index implements index.Index on a single SQLite database file per
// collection.
type Index struct {
	db         *sql.DB
	dimension  int
	collection string
	path       string // database file, empty for in-memory
}

var _ index.Index = (*Index)(nil)

// Config contains configuration for the SQLite index.
type Config struct {
	Dir        string // Directory holding one database file per collection, empty for in-memory
	Collection string // Collection name
	Dimension  int    // Embedding dimension
}

// New opens or creates the database file for the configured collection.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		cfg.Collection = "feedback"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536 // ada-002 and 3-small both produce 1536
	}

	path := ""
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		path = filepath.Join(cfg.Dir, cfg.Collection+".db")
	}

	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		db:         db,
		dimension:  cfg.Dimension,
		collection: cfg.Collection,
		path:       path,
	}

	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

func openDatabase(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases coherent across the
	// pool and serializes writers.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (x *Index) init() error {
	_, err := x.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Add upserts documents with their embeddings.
func (x *Index) Add(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, text, metadata, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if len(doc.Embedding) > 0 && len(doc.Embedding) != x.dimension {
			return fmt.Errorf("document %s has embedding dimension %d, collection expects %d",
				doc.ID, len(doc.Embedding), x.dimension)
		}

		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, string(metadata), encodeEmbedding(doc.Embedding)); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Query ranks the whole collection against the query embedding by
// cosine distance and returns the closest matches that pass the filter.
func (x *Index) Query(ctx context.Context, embedding []float32, limit int, where *index.Where) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := x.db.QueryContext(ctx, `SELECT id, text, metadata, embedding FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		doc, blob, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if !where.Matches(doc.Metadata) {
			continue
		}

		matches = append(matches, &models.Match{
			Document: *doc,
			Distance: cosineDistance(embedding, decodeEmbedding(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// Get fetches documents by metadata filter in insertion order, without
// ranking and without populating embeddings.
func (x *Index) Get(ctx context.Context, where *index.Where, limit int) ([]*models.Document, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT id, text, metadata FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON string
		if err := rows.Scan(&doc.ID, &doc.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		if !where.Matches(doc.Metadata) {
			continue
		}

		docs = append(docs, &doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Count returns the number of stored documents.
func (x *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Delete removes documents matching the filter, or every document when
// the filter is nil.
func (x *Index) Delete(ctx context.Context, where *index.Where) error {
	if where == nil {
		_, err := x.db.ExecContext(ctx, `DELETE FROM documents`)
		return err
	}

	docs, err := x.Get(ctx, where, 0)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE id = ?`)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("prepare delete statement: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("prepare delete statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("delete document %s: %w (rollback: %v)", doc.ID, err, rbErr)
			}
			return fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Drop deletes the collection. For a file-backed index the database
// file is removed from disk and recreated empty; an in-memory index is
// cleared in place.
func (x *Index) Drop(ctx context.Context) error {
	if x.path == "" {
		if _, err := x.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		_, err := x.db.ExecContext(ctx, `VACUUM`)
		return err
	}

	if err := x.db.Close(); err != nil {
		return fmt.Errorf("failed to close database before drop: %w", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(x.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove database file: %w", err)
		}
	}

	db, err := openDatabase(x.path)
	if err != nil {
		return err
	}
	x.db = db
	return x.init()
}

// Stats reports document and source-row counts for the collection.
func (x *Index) Stats(ctx context.Context) (*index.Stats, error) {
	stats := &index.Stats{
		Dimension:  x.dimension,
		Backend:    "sqlite",
		Collection: x.collection,
	}

	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	err := x.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT json_extract(metadata, '$.row_id'))
		FROM documents
		WHERE json_extract(metadata, '$.row_id') IS NOT NULL
	`).Scan(&stats.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	return stats, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Helper functions

func scanDocument(rows *sql.Rows) (*models.Document, []byte, error) {
	var doc models.Document
	var metadataJSON string
	var blob []byte

	if err := rows.Scan(&doc.ID, &doc.Text, &metadataJSON, &blob); err != nil {
		return nil, nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &doc, blob, nil
}

// encodeEmbedding converts []float32 to little-endian IEEE 754 bytes.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding converts stored bytes back to []float32.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineDistance returns 1 minus the cosine similarity of two vectors.
// Mismatched or zero-norm vectors land at distance 1, the same as an
// orthogonal pair, so malformed rows sort behind every real match.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
