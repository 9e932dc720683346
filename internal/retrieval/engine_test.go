package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
)

// ============================================================================
// Mocks
// ============================================================================

// mockIndex serves canned matches and records the limits and filters it
// was queried with.
type mockIndex struct {
	matches   []*models.Match
	docs      []*models.Document
	queryErr  error
	getErr    error
	gotLimit  int
	gotWhere  *index.Where
	queried   bool
	fetched   bool
	gotGetLim int
}

func (m *mockIndex) Add(context.Context, []*models.Document) error { return nil }

func (m *mockIndex) Query(_ context.Context, _ []float32, limit int, where *index.Where) ([]*models.Match, error) {
	m.queried = true
	m.gotLimit = limit
	m.gotWhere = where
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if limit < len(m.matches) {
		return m.matches[:limit], nil
	}
	return m.matches, nil
}

func (m *mockIndex) Get(_ context.Context, where *index.Where, limit int) ([]*models.Document, error) {
	m.fetched = true
	m.gotWhere = where
	m.gotGetLim = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.docs, nil
}

func (m *mockIndex) Count(context.Context) (int64, error)          { return int64(len(m.docs)), nil }
func (m *mockIndex) Delete(context.Context, *index.Where) error    { return nil }
func (m *mockIndex) Drop(context.Context) error                    { return nil }
func (m *mockIndex) Stats(context.Context) (*index.Stats, error)   { return &index.Stats{}, nil }
func (m *mockIndex) Close() error                                  { return nil }

// stubEmbedder maps texts to fixed axes so distances are predictable:
// anything mentioning deliveries lands on one axis, everything else on
// another.
type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.Contains(strings.ToLower(text), "liefer") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Name() string      { return "stub" }
func (s *stubEmbedder) Dimension() int    { return 3 }
func (s *stubEmbedder) MaxBatchSize() int { return 100 }

func matchesWithDistances(distances ...float64) []*models.Match {
	out := make([]*models.Match, len(distances))
	for i, d := range distances {
		out[i] = &models.Match{
			Document: models.Document{
				ID:       models.DocumentID(i, 0),
				Text:     "Beispiel-Feedback",
				Metadata: map[string]any{models.FieldMarket: "C1-DE"},
			},
			Distance: d,
		}
	}
	return out
}

// ============================================================================
// Validation
// ============================================================================

func TestEngine_MaxResultsValidation(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		wantLimit int
		wantErr   bool
		wantWarn  bool
	}{
		{"default when zero", 0, 15, false, false},
		{"floor value passes", 3, 3, false, false},
		{"in range", 25, 25, false, false},
		{"ceiling passes unclamped", 50, 50, false, false},
		{"above ceiling clamps with warning", 1000, 50, false, true},
		{"below floor is an error", 1, 0, true, false},
		{"two is an error", 2, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockIndex{matches: matchesWithDistances(0.1, 0.12)}
			e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

			outcome := e.Retrieve(context.Background(), Params{Query: "Lieferung", MaxResults: tt.requested})

			if tt.wantErr {
				if outcome.Kind != KindError || outcome.ErrorKind != ErrKindValidation {
					t.Fatalf("outcome = %+v, want validation error", outcome)
				}
				if idx.queried {
					t.Error("index was queried despite invalid max_results")
				}
				return
			}
			if outcome.Kind != KindOk {
				t.Fatalf("outcome kind = %v, want ok", outcome.Kind)
			}
			if idx.gotLimit != tt.wantLimit {
				t.Errorf("index queried with limit %d, want %d", idx.gotLimit, tt.wantLimit)
			}
			if tt.wantWarn && outcome.Warning == "" {
				t.Error("clamped request carries no warning")
			}
			if !tt.wantWarn && outcome.Warning != "" {
				t.Errorf("unexpected warning %q", outcome.Warning)
			}
		})
	}
}

func TestEngine_MalformedFilterNeverReachesIndex(t *testing.T) {
	idx := &mockIndex{}
	e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{
		Query:  "Service",
		Filter: &Filter{DateFrom: "not-a-date"},
	})

	if outcome.Kind != KindError || outcome.ErrorKind != ErrKindValidation {
		t.Fatalf("outcome = %+v, want validation error", outcome)
	}
	if idx.queried || idx.fetched {
		t.Error("index was touched despite a malformed filter")
	}
}

// ============================================================================
// Ranked retrieval
// ============================================================================

func TestEngine_RankedRetrieval(t *testing.T) {
	idx := &mockIndex{matches: matchesWithDistances(0.05, 0.10, 0.15)}
	e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{
		Query:  "Lieferprobleme",
		Filter: &Filter{Market: "C1-DE"},
	})

	if outcome.Kind != KindOk {
		t.Fatalf("outcome kind = %v, want ok", outcome.Kind)
	}
	if outcome.Tier != TierHigh {
		t.Errorf("tier = %v, want HIGH", outcome.Tier)
	}
	if got := outcome.TopSimilarity; got != 0.95 {
		t.Errorf("top similarity = %v, want 0.95", got)
	}
	if got := outcome.AvgSimilarity; got < 0.899 || got > 0.901 {
		t.Errorf("avg similarity = %v, want 0.90", got)
	}
	if idx.gotWhere == nil || len(idx.gotWhere.Clauses) != 1 {
		t.Errorf("filter not passed to index: %v", idx.gotWhere)
	}
}

func TestEngine_RejectsWeakMatches(t *testing.T) {
	idx := &mockIndex{matches: matchesWithDistances(0.45, 0.50)}
	e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{Query: "Quantencomputer"})

	if outcome.Kind != KindRejected {
		t.Fatalf("outcome kind = %v, want rejected", outcome.Kind)
	}
	if len(outcome.Matches) != 0 {
		t.Error("rejected outcome exposes matches")
	}
	if outcome.TopSimilarity != 0.55 {
		t.Errorf("top similarity = %v, want 0.55", outcome.TopSimilarity)
	}
}

func TestEngine_NoResultsIsNotAnError(t *testing.T) {
	idx := &mockIndex{}
	e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{
		Query:  "Service",
		Filter: &Filter{Market: "XX-YY"},
	})

	if outcome.Kind != KindNoResults {
		t.Errorf("outcome kind = %v, want no_results", outcome.Kind)
	}
}

func TestEngine_InfrastructureErrors(t *testing.T) {
	t.Run("index failure", func(t *testing.T) {
		idx := &mockIndex{queryErr: errors.New("connection refused")}
		e := NewEngine(idx, &stubEmbedder{}, Thresholds{})

		outcome := e.Retrieve(context.Background(), Params{Query: "Service"})
		if outcome.Kind != KindError || outcome.ErrorKind != ErrKindIndex {
			t.Errorf("outcome = %+v, want index error", outcome)
		}
	})

	t.Run("embedding failure", func(t *testing.T) {
		idx := &mockIndex{matches: matchesWithDistances(0.1)}
		e := NewEngine(idx, &stubEmbedder{err: errors.New("rate limited")}, Thresholds{})

		outcome := e.Retrieve(context.Background(), Params{Query: "Service"})
		if outcome.Kind != KindError || outcome.ErrorKind != ErrKindEmbedding {
			t.Errorf("outcome = %+v, want embedding error", outcome)
		}
		if idx.queried {
			t.Error("index was queried after the embedding failed")
		}
	})
}

// ============================================================================
// Unranked retrieval
// ============================================================================

func TestEngine_EmptyQueryFetchesAll(t *testing.T) {
	idx := &mockIndex{docs: []*models.Document{
		{ID: "doc_0_0", Text: "a", Metadata: map[string]any{models.FieldMarket: "C1-DE"}},
		{ID: "doc_1_0", Text: "b", Metadata: map[string]any{models.FieldMarket: "CE-IT"}},
	}}
	e := NewEngine(idx, nil, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{Filter: &Filter{Topic: "Service"}, MaxResults: 5})

	if outcome.Kind != KindOk || !outcome.Unranked {
		t.Fatalf("outcome = %+v, want unranked ok", outcome)
	}
	if !idx.fetched || idx.queried {
		t.Error("empty query must use the metadata fetch path, not similarity search")
	}
	if idx.gotGetLim != 0 {
		t.Errorf("metadata fetch limited to %d, want unbounded", idx.gotGetLim)
	}
	if len(outcome.Matches) != 2 {
		t.Errorf("got %d matches, want 2", len(outcome.Matches))
	}
}

func TestEngine_EmptyQueryEmptyCorpus(t *testing.T) {
	e := NewEngine(&mockIndex{}, nil, Thresholds{})

	outcome := e.Retrieve(context.Background(), Params{})
	if outcome.Kind != KindNoResults {
		t.Errorf("outcome kind = %v, want no_results", outcome.Kind)
	}
}
