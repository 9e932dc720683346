// Package index defines the vector index abstraction for the feedback
// corpus. Implementations persist embedded feedback chunks and answer
// similarity queries and metadata-filtered fetches over them.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/voicelab/echolot/pkg/models"
)

// Index is the storage interface for embedded feedback documents.
// Implementations handle persistence, similarity search and
// metadata-filtered retrieval for one named collection.
type Index interface {
	// Add upserts documents into the collection. Documents carry their
	// embeddings; re-adding an existing ID replaces the stored document.
	Add(ctx context.Context, docs []*models.Document) error

	// Query performs similarity search against the stored embeddings,
	// returning up to limit matches ordered by ascending distance.
	// A nil where makes the whole corpus eligible.
	Query(ctx context.Context, embedding []float32, limit int, where *Where) ([]*models.Match, error)

	// Get fetches documents by metadata filter without ranking.
	// A nil where selects the whole corpus; limit <= 0 means no limit.
	// Embeddings are not populated on the returned documents.
	Get(ctx context.Context, where *Where, limit int) ([]*models.Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// Delete removes documents matching the filter. A nil where removes
	// every document in the collection.
	Delete(ctx context.Context, where *Where) error

	// Drop removes the collection and all persisted data for it.
	Drop(ctx context.Context) error

	// Stats returns statistics about the collection.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources.
	Close() error
}

// Stats describes the current contents of a collection.
type Stats struct {
	// Documents is the number of stored chunks.
	Documents int64 `json:"documents"`

	// Records is the number of distinct source rows behind those chunks.
	Records int64 `json:"records"`

	// Dimension is the embedding dimension of the collection.
	Dimension int `json:"dimension"`

	// Backend is the implementation name, e.g. "sqlite" or "pgvector".
	Backend string `json:"backend"`

	// Collection is the collection name.
	Collection string `json:"collection"`
}

// Op is a comparison operator in a metadata filter clause.
type Op string

const (
	// OpEq matches documents whose field equals the clause value.
	OpEq Op = "$eq"
	// OpGte matches documents whose field is >= the clause value.
	OpGte Op = "$gte"
	// OpLte matches documents whose field is <= the clause value.
	OpLte Op = "$lte"
)

// Clause compares one metadata field against a literal value.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality clause.
func Eq(field string, value any) Clause {
	return Clause{Field: field, Op: OpEq, Value: value}
}

// Gte builds a greater-or-equal clause.
func Gte(field string, value any) Clause {
	return Clause{Field: field, Op: OpGte, Value: value}
}

// Lte builds a less-or-equal clause.
func Lte(field string, value any) Clause {
	return Clause{Field: field, Op: OpLte, Value: value}
}

// Where is a conjunctive metadata filter: a document matches when every
// clause holds. A nil *Where matches every document.
type Where struct {
	Clauses []Clause
}

// And combines clauses into a conjunctive filter. Returns nil when no
// clauses are given, which callers treat as "no filter".
func And(clauses ...Clause) *Where {
	if len(clauses) == 0 {
		return nil
	}
	return &Where{Clauses: clauses}
}

// Matches reports whether the metadata map satisfies every clause.
// Documents missing a filtered field do not match.
func (w *Where) Matches(meta map[string]any) bool {
	if w == nil {
		return true
	}
	for _, c := range w.Clauses {
		v, ok := meta[c.Field]
		if !ok {
			return false
		}
		if !c.matches(v) {
			return false
		}
	}
	return true
}

// String renders the filter for logs, e.g. "market = C1-DE AND nps <= 6".
func (w *Where) String() string {
	if w == nil || len(w.Clauses) == 0 {
		return "<none>"
	}
	parts := make([]string, len(w.Clauses))
	for i, c := range w.Clauses {
		op := "="
		switch c.Op {
		case OpGte:
			op = ">="
		case OpLte:
			op = "<="
		}
		parts[i] = fmt.Sprintf("%s %s %v", c.Field, op, c.Value)
	}
	return strings.Join(parts, " AND ")
}

func (c Clause) matches(v any) bool {
	if av, ok := asFloat(v); ok {
		bv, ok := asFloat(c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			return av == bv
		case OpGte:
			return av >= bv
		case OpLte:
			return av <= bv
		}
		return false
	}

	// Non-numeric values only support equality.
	if c.Op != OpEq {
		return false
	}
	return v == c.Value
}

// asFloat widens any stored numeric type for comparison, so a filter on
// nps=6 matches whether the backend returned an int or a float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
