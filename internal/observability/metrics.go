package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Feedback records and chunks flowing through ingest runs
//   - Embedding API request performance per provider
//   - Vector index operation latency per backend
//   - Tool invocation patterns and confidence gate decisions
//   - Error rates categorized by type and component
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordIngestRecord("indexed")
//	defer metrics.EmbeddingRequestDuration.WithLabelValues("openai").Observe(time.Since(start).Seconds())
type Metrics struct {
	// IngestRecordCounter tracks feedback records by ingest outcome.
	// Labels: status (indexed|skipped)
	IngestRecordCounter *prometheus.CounterVec

	// IngestChunkCounter counts chunks produced during ingest.
	// Labels: collection
	IngestChunkCounter *prometheus.CounterVec

	// IngestBatchCounter counts embed-and-upsert batches.
	// Labels: status (success|error)
	IngestBatchCounter *prometheus.CounterVec

	// EmbeddingRequestCounter counts embedding API requests.
	// Labels: provider (openai|ollama), status (success|error)
	EmbeddingRequestCounter *prometheus.CounterVec

	// EmbeddingRequestDuration measures embedding API call latency in seconds.
	// Labels: provider (openai|ollama)
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	EmbeddingRequestDuration *prometheus.HistogramVec

	// IndexOperationCounter counts vector index operations.
	// Labels: backend (sqlite|pgvector), operation (add|query|get|delete), status
	IndexOperationCounter *prometheus.CounterVec

	// IndexOperationDuration measures index operation latency in seconds.
	// Labels: backend, operation
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	IndexOperationDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ConfidenceTierCounter counts search responses by confidence tier.
	// Labels: tier (high|medium|low|reject)
	ConfidenceTierCounter *prometheus.CounterVec

	// IndexedDocuments is a gauge tracking documents currently in the index.
	// Labels: collection
	IndexedDocuments *prometheus.GaugeVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (ingest|embeddings|index|retrieval|tool), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. This should be called once at application startup.
//
// The metrics will be available at the /metrics endpoint when using the
// prometheus HTTP handler.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics against the given registerer. Tests pass
// a fresh registry so repeated construction does not collide with the default
// registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestRecordCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_ingest_records_total",
				Help: "Total number of feedback records processed by ingest status",
			},
			[]string{"status"},
		),

		IngestChunkCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_ingest_chunks_total",
				Help: "Total number of chunks produced during ingest",
			},
			[]string{"collection"},
		),

		IngestBatchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_ingest_batches_total",
				Help: "Total number of embed-and-upsert batches by status",
			},
			[]string{"status"},
		),

		EmbeddingRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_embedding_requests_total",
				Help: "Total number of embedding API requests by provider and status",
			},
			[]string{"provider", "status"},
		),

		EmbeddingRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echolot_embedding_request_duration_seconds",
				Help:    "Duration of embedding API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		IndexOperationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_index_operations_total",
				Help: "Total number of vector index operations by backend, operation, and status",
			},
			[]string{"backend", "operation", "status"},
		),

		IndexOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echolot_index_operation_duration_seconds",
				Help:    "Duration of vector index operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "operation"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echolot_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ConfidenceTierCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_confidence_tiers_total",
				Help: "Total number of search responses by confidence tier",
			},
			[]string{"tier"},
		),

		IndexedDocuments: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "echolot_indexed_documents",
				Help: "Current number of documents in the index by collection",
			},
			[]string{"collection"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echolot_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordIngestRecord increments the ingest record counter.
//
// Example:
//
//	metrics.RecordIngestRecord("indexed")
//	metrics.RecordIngestRecord("skipped")
func (m *Metrics) RecordIngestRecord(status string) {
	m.IngestRecordCounter.WithLabelValues(status).Inc()
}

// RecordIngestChunks adds produced chunks to the chunk counter.
func (m *Metrics) RecordIngestChunks(collection string, count int) {
	if count > 0 {
		m.IngestChunkCounter.WithLabelValues(collection).Add(float64(count))
	}
}

// RecordIngestBatch increments the batch counter for an embed-and-upsert batch.
func (m *Metrics) RecordIngestBatch(status string) {
	m.IngestBatchCounter.WithLabelValues(status).Inc()
}

// RecordEmbeddingRequest records metrics for one embedding API request.
//
// Example:
//
//	start := time.Now()
//	// ... call embedding API ...
//	metrics.RecordEmbeddingRequest("openai", "success", time.Since(start).Seconds())
func (m *Metrics) RecordEmbeddingRequest(provider, status string, durationSeconds float64) {
	m.EmbeddingRequestCounter.WithLabelValues(provider, status).Inc()
	m.EmbeddingRequestDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordIndexOperation records metrics for a vector index operation.
//
// Example:
//
//	start := time.Now()
//	// ... run similarity query ...
//	metrics.RecordIndexOperation("pgvector", "query", "success", time.Since(start).Seconds())
func (m *Metrics) RecordIndexOperation(backend, operation, status string, durationSeconds float64) {
	m.IndexOperationCounter.WithLabelValues(backend, operation, status).Inc()
	m.IndexOperationDuration.WithLabelValues(backend, operation).Observe(durationSeconds)
}

// RecordToolExecution records metrics for a tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("search_feedback", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordConfidenceTier increments the confidence tier counter for a search response.
func (m *Metrics) RecordConfidenceTier(tier string) {
	m.ConfidenceTierCounter.WithLabelValues(tier).Inc()
}

// SetIndexedDocuments sets the indexed documents gauge for a collection.
//
// Example:
//
//	stats, _ := idx.Stats(ctx)
//	metrics.SetIndexedDocuments(stats.Collection, float64(stats.Documents))
func (m *Metrics) SetIndexedDocuments(collection string, count float64) {
	m.IndexedDocuments.WithLabelValues(collection).Set(count)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("embeddings", "api_timeout")
//	metrics.RecordError("ingest", "empty_corpus")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
