// Package pgvector provides a vector index backed by PostgreSQL with
// the pgvector extension. Metadata filters compile to SQL over a JSONB
// column and similarity ranking runs in the database via the cosine
// distance operator, so the corpus never has to fit in process memory.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Index implements index.Index on a shared feedback_documents table,
// scoped by collection name.
type Index struct {
	db         *sql.DB
	dimension  int
	collection string
	ownsDB     bool // whether this index owns the db connection
}

var _ index.Index = (*Index)(nil)

// Config contains configuration for the pgvector index.
type Config struct {
	// DSN is the PostgreSQL connection string. If empty, DB must be
	// provided.
	DSN string

	// DB is an existing database connection to reuse. If provided, DSN
	// is ignored and Close will not close the connection.
	DB *sql.DB

	// Collection scopes all operations to one named corpus.
	Collection string

	// Dimension is the embedding dimension enforced on writes.
	Dimension int

	// SkipMigrations disables the schema migration run on startup.
	SkipMigrations bool
}

// New creates a new pgvector index.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		cfg.Collection = "feedback"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536 // ada-002 and 3-small both produce 1536
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	if cfg.DB != nil {
		db = cfg.DB
	} else if cfg.DSN != "" {
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	} else {
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	x := &Index{
		db:         db,
		dimension:  cfg.Dimension,
		collection: cfg.Collection,
		ownsDB:     ownsDB,
	}

	if !cfg.SkipMigrations {
		if err := x.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return x, nil
}

// runMigrations applies pending database migrations.
func (x *Index) runMigrations(ctx context.Context) error {
	_, err := x.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS echolot_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create echolot_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := x.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		tx, err := x.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO echolot_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (x *Index) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT id FROM echolot_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query echolot_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan echolot_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("echolot_schema_migrations: %w", err)
	}
	return applied, nil
}

// Add upserts documents with their embeddings.
func (x *Index) Add(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	for i, doc := range docs {
		if err := x.validateEmbedding(doc.Embedding, true); err != nil {
			return fmt.Errorf("validate embedding for document %d: %w", i, err)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feedback_documents (id, collection, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}

		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal document metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, doc.ID, x.collection, doc.Text, string(metadata), encodeEmbedding(doc.Embedding)); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Query performs similarity search in the database, returning matches
// ordered by ascending cosine distance.
func (x *Index) Query(ctx context.Context, embedding []float32, limit int, where *index.Where) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 10
	}
	if err := x.validateEmbedding(embedding, false); err != nil {
		return nil, err
	}

	query := `
		SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM feedback_documents
		WHERE collection = $2 AND embedding IS NOT NULL
	`
	args := []any{encodeEmbedding(embedding).String, x.collection}

	cond, condArgs := whereSQL(where, len(args)+1)
	query += cond
	args = append(args, condArgs...)

	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		var m models.Match
		var metadataJSON string

		if err := rows.Scan(&m.ID, &m.Text, &metadataJSON, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}

		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}

	return matches, nil
}

// Get fetches documents by metadata filter without ranking and without
// populating embeddings.
func (x *Index) Get(ctx context.Context, where *index.Where, limit int) ([]*models.Document, error) {
	query := `SELECT id, content, metadata FROM feedback_documents WHERE collection = $1`
	args := []any{x.collection}

	cond, condArgs := whereSQL(where, len(args)+1)
	query += cond
	args = append(args, condArgs...)

	query += " ORDER BY created_at ASC, id ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON string

		if err := rows.Scan(&doc.ID, &doc.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}

		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// Count returns the number of stored documents in the collection.
func (x *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_documents WHERE collection = $1`, x.collection).Scan(&count)
	return count, err
}

// Delete removes documents matching the filter, or the whole
// collection when the filter is nil.
func (x *Index) Delete(ctx context.Context, where *index.Where) error {
	query := `DELETE FROM feedback_documents WHERE collection = $1`
	args := []any{x.collection}

	cond, condArgs := whereSQL(where, len(args)+1)
	query += cond
	args = append(args, condArgs...)

	_, err := x.db.ExecContext(ctx, query, args...)
	return err
}

// Drop removes the collection's documents.
func (x *Index) Drop(ctx context.Context) error {
	return x.Delete(ctx, nil)
}

// Stats reports document and source-row counts for the collection.
func (x *Index) Stats(ctx context.Context) (*index.Stats, error) {
	stats := &index.Stats{
		Dimension:  x.dimension,
		Backend:    "pgvector",
		Collection: x.collection,
	}

	err := x.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT metadata->>'row_id')
		FROM feedback_documents
		WHERE collection = $1
	`, x.collection).Scan(&stats.Documents, &stats.Records)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	return stats, nil
}

// Close releases the connection when this index owns it.
func (x *Index) Close() error {
	if x.ownsDB && x.db != nil {
		return x.db.Close()
	}
	return nil
}

// Helper functions

func (x *Index) validateEmbedding(embedding []float32, allowEmpty bool) error {
	if len(embedding) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("embedding is empty")
	}
	if x.dimension > 0 && len(embedding) != x.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), x.dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}

// whereSQL renders the filter as SQL conditions over the JSONB
// metadata column. argNum continues the placeholder numbering of the
// surrounding query. String values compare as text, numbers through a
// numeric cast so integer and float representations stay comparable.
func whereSQL(where *index.Where, argNum int) (string, []any) {
	if where == nil || len(where.Clauses) == 0 {
		return "", nil
	}

	var sb strings.Builder
	var args []any
	for _, c := range where.Clauses {
		field := strings.ReplaceAll(c.Field, "'", "''")
		op := sqlOp(c.Op)

		switch c.Value.(type) {
		case string:
			fmt.Fprintf(&sb, " AND metadata->>'%s' %s $%d", field, op, argNum)
		case bool:
			fmt.Fprintf(&sb, " AND (metadata->>'%s')::boolean %s $%d", field, op, argNum)
		default:
			fmt.Fprintf(&sb, " AND (metadata->>'%s')::numeric %s $%d", field, op, argNum)
		}
		args = append(args, c.Value)
		argNum++
	}

	return sb.String(), args
}

func sqlOp(op index.Op) string {
	switch op {
	case index.OpGte:
		return ">="
	case index.OpLte:
		return "<="
	default:
		return "="
	}
}

// encodeEmbedding renders []float32 in pgvector's text input format.
func encodeEmbedding(embedding []float32) sql.NullString {
	if len(embedding) == 0 {
		return sql.NullString{}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')

	return sql.NullString{String: sb.String(), Valid: true}
}

// Migration is one embedded schema migration.
type Migration struct {
	ID  string
	SQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(paths)

	migrations := make([]Migration, 0, len(paths))
	for _, path := range paths {
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "migrations/"), ".sql")
		migrations = append(migrations, Migration{ID: id, SQL: string(data)})
	}
	return migrations, nil
}
