// Package corpus turns enriched feedback records into the chunked,
// embedded documents the vector index stores: adaptive chunking,
// metadata flattening and batched embed-and-upsert runs.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicelab/echolot/internal/embeddings"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/internal/observability"
	"github.com/voicelab/echolot/pkg/models"
)

// ErrEmptyCorpus is returned when no record of a dataset yields a single
// usable chunk. An index is never created in that case.
var ErrEmptyCorpus = errors.New("no documents could be created from the dataset")

// Builder runs the ingest pipeline: chunk every record, flatten its
// metadata, embed batch-wise and upsert into the index.
type Builder struct {
	index    index.Index
	embedder embeddings.Provider
	chunker  *Chunker
	config   *BuilderConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// BuilderConfig contains configuration for corpus builds.
type BuilderConfig struct {
	// Collection is the name of the target collection, used for logging
	// and metrics labels.
	Collection string `yaml:"collection"`

	// BatchSize caps documents per embed-and-upsert batch.
	// Default: 100
	BatchSize int `yaml:"batch_size"`
}

// DefaultBuilderConfig returns the default builder configuration.
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		Collection: "customer_feedback",
		BatchSize:  100,
	}
}

// NewBuilder creates a corpus builder. embedder may be nil for tests
// that only exercise chunking and metadata; documents are then upserted
// without embeddings.
func NewBuilder(idx index.Index, embedder embeddings.Provider, cfg *BuilderConfig) *Builder {
	if cfg == nil {
		cfg = DefaultBuilderConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Collection == "" {
		cfg.Collection = "customer_feedback"
	}

	return &Builder{
		index:    idx,
		embedder: embedder,
		chunker:  NewChunker(),
		config:   cfg,
		logger:   observability.NopLogger(),
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *observability.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithMetrics sets the metrics collector.
func (b *Builder) WithMetrics(metrics *observability.Metrics) *Builder {
	b.metrics = metrics
	return b
}

// WithTracer sets the tracer.
func (b *Builder) WithTracer(tracer *observability.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// RecordSkip names one record that dropped out of a build.
type RecordSkip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BuildReport summarizes one corpus build run.
type BuildReport struct {
	// RunID identifies the build run in logs and traces.
	RunID string `json:"run_id"`

	// Reused is true when an existing non-empty collection was kept and
	// nothing was re-embedded.
	Reused bool `json:"reused"`

	// Processed is the number of records that produced chunks.
	Processed int `json:"processed"`

	// Skipped lists records that produced no documents and why.
	Skipped []RecordSkip `json:"skipped,omitempty"`

	// Chunks is the number of documents created during this run.
	Chunks int `json:"chunks"`

	// Batches is the number of embed-and-upsert batches written.
	Batches int `json:"batches"`

	// Documents is the final document count of the collection.
	Documents int64 `json:"documents"`

	// Duration is the total build time.
	Duration time.Duration `json:"duration"`
}

// Build ingests a dataset. With forceRecreate false and a non-empty
// collection already present, the existing corpus is reused and nothing
// is embedded. With forceRecreate true the collection is dropped,
// persisted files included, before rebuilding from scratch.
//
// Individual records that fail to process are skipped and reported;
// only a dataset yielding zero chunks overall is an error. Batches are
// not transactional across the run: a failure partway through leaves
// the batches already written in the index, so callers retry with
// forceRecreate.
func (b *Builder) Build(ctx context.Context, records []*models.FeedbackRecord, forceRecreate bool) (*BuildReport, error) {
	start := time.Now()
	report := &BuildReport{RunID: uuid.NewString()}

	ctx = observability.AddRunID(ctx, report.RunID)
	ctx = observability.AddCollection(ctx, b.config.Collection)
	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.TraceIngestRun(ctx, b.config.Collection, report.RunID)
		defer span.End()
	}

	if forceRecreate {
		b.logger.Info(ctx, "Force recreate requested, dropping collection")
		if err := b.index.Drop(ctx); err != nil {
			return nil, fmt.Errorf("drop collection: %w", err)
		}
	} else {
		count, err := b.index.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("check existing collection: %w", err)
		}
		if count > 0 {
			b.logger.Info(ctx, "Reusing existing corpus", "documents", count)
			report.Reused = true
			report.Documents = count
			report.Duration = time.Since(start)
			return report, nil
		}
	}

	docs := b.prepare(ctx, records, report)
	if len(docs) == 0 {
		if b.metrics != nil {
			b.metrics.RecordError("ingest", "empty_corpus")
		}
		return nil, fmt.Errorf("%w: %d records, %d skipped", ErrEmptyCorpus, len(records), len(report.Skipped))
	}

	if err := b.writeBatches(ctx, docs, report); err != nil {
		return nil, err
	}

	count, err := b.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify corpus: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("corpus build finished but the index reports zero documents")
	}
	report.Documents = count
	report.Duration = time.Since(start)

	if b.metrics != nil {
		b.metrics.SetIndexedDocuments(b.config.Collection, float64(count))
	}
	b.logger.Info(ctx, "Corpus build complete",
		"processed", report.Processed,
		"skipped", len(report.Skipped),
		"chunks", report.Chunks,
		"batches", report.Batches,
		"documents", report.Documents,
		"duration", report.Duration.String(),
	)

	return report, nil
}

// prepare chunks and normalizes every record, producing the documents to
// embed. Failures stay local to their record.
func (b *Builder) prepare(ctx context.Context, records []*models.FeedbackRecord, report *BuildReport) []*models.Document {
	var docs []*models.Document
	for _, rec := range records {
		chunks := b.chunker.Chunk(rec.Verbatim)
		if len(chunks) == 0 {
			report.Skipped = append(report.Skipped, RecordSkip{Row: rec.Row, Reason: "verbatim too short"})
			b.logger.Warn(ctx, "Skipped record", "row", rec.Row, "reason", "verbatim too short")
			if b.metrics != nil {
				b.metrics.RecordIngestRecord("skipped")
			}
			continue
		}

		for i, chunk := range chunks {
			docs = append(docs, &models.Document{
				ID:       models.DocumentID(rec.Row, i),
				Text:     chunk,
				Metadata: Normalize(rec, i, len(chunks)),
			})
		}

		report.Processed++
		report.Chunks += len(chunks)
		if b.metrics != nil {
			b.metrics.RecordIngestRecord("indexed")
			b.metrics.RecordIngestChunks(b.config.Collection, len(chunks))
		}
	}
	return docs
}

// writeBatches embeds and upserts the documents in batches of at most
// the configured batch size, further capped by the provider's own batch
// limit.
func (b *Builder) writeBatches(ctx context.Context, docs []*models.Document, report *BuildReport) error {
	batchSize := b.config.BatchSize
	if b.embedder != nil && b.embedder.MaxBatchSize() > 0 && b.embedder.MaxBatchSize() < batchSize {
		batchSize = b.embedder.MaxBatchSize()
	}

	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[i:end]
		batchNum := i/batchSize + 1

		if b.embedder != nil {
			texts := make([]string, len(batch))
			for j, doc := range batch {
				texts[j] = doc.Text
			}

			embedStart := time.Now()
			vectors, err := b.embedder.EmbedBatch(ctx, texts)
			if b.metrics != nil {
				status := "success"
				if err != nil {
					status = "error"
				}
				b.metrics.RecordEmbeddingRequest(b.embedder.Name(), status, time.Since(embedStart).Seconds())
			}
			if err != nil {
				if b.metrics != nil {
					b.metrics.RecordIngestBatch("error")
				}
				return fmt.Errorf("embed batch %d: %w", batchNum, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed batch %d: got %d embeddings for %d texts", batchNum, len(vectors), len(batch))
			}
			for j, doc := range batch {
				doc.Embedding = vectors[j]
			}
		}

		if err := b.index.Add(ctx, batch); err != nil {
			if b.metrics != nil {
				b.metrics.RecordIngestBatch("error")
			}
			return fmt.Errorf("upsert batch %d: %w", batchNum, err)
		}

		report.Batches++
		if b.metrics != nil {
			b.metrics.RecordIngestBatch("success")
		}
		b.logger.Debug(ctx, "Batch written", "batch", batchNum, "documents", len(batch))
	}

	return nil
}
