package retrieval

import (
	"context"
	"fmt"

	"github.com/voicelab/echolot/internal/embeddings"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/internal/observability"
	"github.com/voicelab/echolot/pkg/models"
)

// Result count bounds for ranked retrieval.
const (
	MinResults     = 3
	MaxResults     = 50
	DefaultResults = 15
)

// Params are the inputs to one retrieval call.
type Params struct {
	// Query is the semantic search text. An empty query switches to an
	// unranked metadata fetch over every matching document.
	Query string

	// Filter scopes the search. Nil or zero means the whole corpus.
	Filter *Filter

	// MaxResults bounds ranked retrieval. Zero means DefaultResults;
	// values above MaxResults are clamped with a warning; values below
	// MinResults are a validation error. Ignored for unranked fetches.
	MaxResults int
}

// Engine runs retrievals against the index. It is stateless between
// calls and safe for concurrent use; each call compiles its own filter
// and builds its own outcome.
type Engine struct {
	index      index.Index
	embedder   embeddings.Provider
	thresholds Thresholds
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewEngine creates a retrieval engine. embedder may be nil when only
// unranked metadata fetches are needed.
func NewEngine(idx index.Index, embedder embeddings.Provider, thresholds Thresholds) *Engine {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Engine{
		index:      idx,
		embedder:   embedder,
		thresholds: thresholds,
		logger:     observability.NopLogger(),
	}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(logger *observability.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithMetrics sets the metrics collector.
func (e *Engine) WithMetrics(metrics *observability.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Thresholds returns the configured confidence thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Retrieve runs one retrieval. It never returns a Go error: validation
// failures, empty result sets, confidence rejection and infrastructure
// errors are all encoded in the outcome so the caller can always render
// a response.
func (e *Engine) Retrieve(ctx context.Context, params Params) *Outcome {
	where, err := params.Filter.Compile()
	if err != nil {
		return errorOutcome(ErrKindValidation, err.Error())
	}

	if params.Query == "" {
		return e.fetchAll(ctx, where)
	}

	limit := params.MaxResults
	warning := ""
	switch {
	case limit == 0:
		limit = DefaultResults
	case limit < MinResults:
		return errorOutcome(ErrKindValidation,
			fmt.Sprintf("max_results too small (%d). Please use at least %d results for meaningful analysis.", limit, MinResults))
	case limit > MaxResults:
		warning = fmt.Sprintf("max_results capped at %d for performance (requested %d).", MaxResults, limit)
		limit = MaxResults
	}

	if e.embedder == nil {
		return errorOutcome(ErrKindEmbedding, "no embedding provider configured")
	}

	e.logger.Debug(ctx, "Running similarity search",
		"query", params.Query,
		"max_results", limit,
		"filter", where.String(),
	)

	embedding, err := e.embedder.Embed(ctx, params.Query)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("retrieval", "embedding")
		}
		return errorOutcome(ErrKindEmbedding, fmt.Sprintf("embedding the query failed: %v", err))
	}

	matches, err := e.index.Query(ctx, embedding, limit, where)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("retrieval", "index")
		}
		return errorOutcome(ErrKindIndex, fmt.Sprintf("index query failed: %v", err))
	}

	if len(matches) == 0 {
		return &Outcome{Kind: KindNoResults, Warning: warning}
	}

	top, avg := similarityStats(matches)
	tier := e.thresholds.Classify(top, avg)
	if e.metrics != nil {
		e.metrics.RecordConfidenceTier(string(tier))
	}
	e.logger.Debug(ctx, "Confidence evaluated",
		"results", len(matches),
		"top", fmt.Sprintf("%.3f", top),
		"avg", fmt.Sprintf("%.3f", avg),
		"tier", string(tier),
	)

	if tier == TierReject {
		return &Outcome{
			Kind:          KindRejected,
			TopSimilarity: top,
			AvgSimilarity: avg,
			Warning:       warning,
		}
	}

	return &Outcome{
		Kind:          KindOk,
		Matches:       matches,
		Tier:          tier,
		TopSimilarity: top,
		AvgSimilarity: avg,
		Warning:       warning,
	}
}

// fetchAll serves the empty-query path: every document matching the
// filter, unranked and unbounded.
func (e *Engine) fetchAll(ctx context.Context, where *index.Where) *Outcome {
	docs, err := e.index.Get(ctx, where, 0)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("retrieval", "index")
		}
		return errorOutcome(ErrKindIndex, fmt.Sprintf("index fetch failed: %v", err))
	}
	if len(docs) == 0 {
		return &Outcome{Kind: KindNoResults}
	}

	matches := make([]*models.Match, len(docs))
	for i, doc := range docs {
		matches[i] = &models.Match{Document: *doc}
	}
	return &Outcome{Kind: KindOk, Matches: matches, Unranked: true}
}

func similarityStats(matches []*models.Match) (top, avg float64) {
	var sum float64
	for i, m := range matches {
		s := m.Similarity()
		sum += s
		if i == 0 || s > top {
			top = s
		}
	}
	return top, sum / float64(len(matches))
}
