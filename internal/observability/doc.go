// Package observability provides monitoring and debugging capabilities for
// the feedback indexing service through metrics, structured logging, and
// distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Request tracing with OpenTelemetry
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Feedback records and chunks flowing through ingest runs
//   - Embedding API request latency per provider
//   - Vector index operation latency per backend
//   - Tool execution performance and confidence gate decisions
//   - Error rates by component and type
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track ingest progress
//	metrics.RecordIngestRecord("indexed")
//
//	// Track embedding requests
//	start := time.Now()
//	vectors, err := provider.EmbedBatch(ctx, texts)
//	status := "success"
//	if err != nil {
//	    status = "error"
//	}
//	metrics.RecordEmbeddingRequest(provider.Name(), status, time.Since(start).Seconds())
//
// # Logging
//
// Structured logging is built on Go's slog package with automatic redaction
// of API keys, connection string credentials, and passwords. Log records
// carry correlation fields (request_id, run_id, collection) extracted from
// the context.
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = observability.AddRunID(ctx, runID)
//	logger.Info(ctx, "Run started", "source", "feedback.csv")
//
// # Tracing
//
// Tracing uses OpenTelemetry with an OTLP gRPC exporter. When no endpoint is
// configured the tracer degrades to a no-op, so instrumented code paths cost
// nothing in deployments without a collector.
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "echolot",
//	    Endpoint:    "localhost:4317",
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceIngestRun(ctx, "feedback", runID)
//	defer span.End()
package observability
