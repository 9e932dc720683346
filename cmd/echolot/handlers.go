package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicelab/echolot/internal/config"
	"github.com/voicelab/echolot/internal/corpus"
	"github.com/voicelab/echolot/internal/embeddings"
	"github.com/voicelab/echolot/internal/embeddings/ollama"
	"github.com/voicelab/echolot/internal/embeddings/openai"
	"github.com/voicelab/echolot/internal/feedback"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/internal/index/pgvector"
	"github.com/voicelab/echolot/internal/index/sqlite"
	"github.com/voicelab/echolot/internal/observability"
	"github.com/voicelab/echolot/internal/retrieval"
	"github.com/voicelab/echolot/internal/snapshot"
	"github.com/voicelab/echolot/internal/tools"
	"github.com/voicelab/echolot/internal/tools/metadata"
	"github.com/voicelab/echolot/internal/tools/search"
)

// resolveConfigPath applies the --config flag, the ECHOLOT_CONFIG
// environment variable and the default file name, in that order.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("ECHOLOT_CONFIG"); env != "" {
		return env
	}
	return defaultConfigFile
}

// =============================================================================
// Application Wiring
// =============================================================================

// app bundles the long-lived dependencies a command needs: config,
// observability and the vector index. The embedding provider is built
// on demand because read-only commands never need one.
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	index   index.Index

	traceShutdown func(context.Context) error
}

// newApp loads the configuration and constructs logging, metrics,
// tracing and the index backend. Callers must Close the returned app.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		Output:         os.Stderr,
		AddSource:      cfg.Logging.AddSource,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})

	metrics := observability.NewMetrics()
	if cfg.Metrics.Enabled {
		startMetricsListener(logger, cfg.Metrics.Listen)
	}

	tracer, traceShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	idx, err := buildIndex(cfg)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = traceShutdown(shutdownCtx)
		return nil, err
	}

	return &app{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		index:         idx,
		traceShutdown: traceShutdown,
	}, nil
}

// Close releases the index and flushes pending trace spans.
func (a *app) Close() {
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.traceShutdown(ctx)
	}
}

// startMetricsListener serves Prometheus metrics in the background.
// Listener failures are logged, not fatal: a CLI run without metrics
// is still a useful run.
func startMetricsListener(logger *observability.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn(context.Background(), "metrics listener stopped",
				"addr", addr, "error", err)
		}
	}()
}

// buildIndex constructs the configured index backend.
func buildIndex(cfg *config.Config) (index.Index, error) {
	switch cfg.Index.Backend {
	case "sqlite":
		return sqlite.New(sqlite.Config{
			Dir:        cfg.Index.Dir,
			Collection: cfg.Index.Collection,
			Dimension:  cfg.Index.Dimension,
		})
	case "pgvector":
		return pgvector.New(pgvector.Config{
			DSN:        cfg.Index.DSN,
			Collection: cfg.Index.Collection,
			Dimension:  cfg.Index.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
}

// buildEmbedder constructs the configured embedding provider.
func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.Embeddings.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:     cfg.Embeddings.APIKey,
			BaseURL:    cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embeddings.Provider)
	}
}

// buildEngine wires the retrieval engine from an app plus an embedder.
func (a *app) buildEngine(embedder embeddings.Provider) *retrieval.Engine {
	thresholds := retrieval.Thresholds{
		Reject: a.cfg.Retrieval.Confidence.Reject,
		Low:    a.cfg.Retrieval.Confidence.Low,
		Medium: a.cfg.Retrieval.Confidence.Medium,
	}
	return retrieval.NewEngine(a.index, embedder, thresholds).
		WithLogger(a.logger).
		WithMetrics(a.metrics)
}

// =============================================================================
// Ingest Handler
// =============================================================================

func runIngest(ctx context.Context, configPath, csvPath string, force bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	records, loadReport, err := feedback.LoadCSV(csvPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", csvPath, err)
	}
	for _, skip := range loadReport.Skipped {
		fmt.Printf("⚠️  Row %d skipped: %s\n", skip.Row, skip.Reason)
	}
	fmt.Printf("Loaded %d of %d rows from %s\n", loadReport.Loaded, loadReport.Rows, csvPath)

	feedback.EnhanceAll(records)

	embedder, err := buildEmbedder(a.cfg)
	if err != nil {
		return err
	}

	// The embedding batch limit also bounds index batches, so one
	// batch maps to one embedding request.
	batchSize := a.cfg.Ingest.BatchSize
	if b := a.cfg.Embeddings.BatchSize; b > 0 && (batchSize == 0 || b < batchSize) {
		batchSize = b
	}

	builder := corpus.NewBuilder(a.index, embedder, &corpus.BuilderConfig{
		Collection: a.cfg.Index.Collection,
		BatchSize:  batchSize,
	}).WithLogger(a.logger).WithMetrics(a.metrics).WithTracer(a.tracer)

	report, err := builder.Build(ctx, records, force)
	if err != nil {
		return fmt.Errorf("corpus build failed: %w", err)
	}

	if report.Reused {
		fmt.Printf("Collection %q already holds %d documents, nothing to do.\n",
			a.cfg.Index.Collection, report.Documents)
		fmt.Println("Use --force to drop and rebuild.")
		return nil
	}

	for _, skip := range report.Skipped {
		fmt.Printf("⚠️  Row %d skipped: %s\n", skip.Row, skip.Reason)
	}
	fmt.Printf("Indexed %d records as %d documents in %d batches (%s)\n",
		report.Processed, report.Chunks, report.Batches, report.Duration.Round(time.Millisecond))
	return nil
}

// =============================================================================
// Query Handler
// =============================================================================

// queryOptions carries the query command's filter flags.
type queryOptions struct {
	MaxResults  int
	Market      string
	Region      string
	Country     string
	Sentiment   string
	NPSCategory string
	Topic       string
	DateFrom    string
	DateTo      string
}

func runQuery(ctx context.Context, configPath, query string, opts queryOptions) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := buildEmbedder(a.cfg)
	if err != nil {
		return err
	}

	engine := a.buildEngine(embedder)
	formatter := retrieval.NewFormatter(engine.Thresholds())

	filter := &retrieval.Filter{
		Market:      opts.Market,
		Region:      opts.Region,
		Country:     opts.Country,
		Sentiment:   opts.Sentiment,
		NPSCategory: opts.NPSCategory,
		Topic:       opts.Topic,
		DateFrom:    opts.DateFrom,
		DateTo:      opts.DateTo,
	}

	maxResults := opts.MaxResults
	if maxResults == 0 {
		maxResults = a.cfg.Retrieval.DefaultResults
	}

	outcome := engine.Retrieve(ctx, retrieval.Params{
		Query:      query,
		Filter:     filter,
		MaxResults: maxResults,
	})

	fmt.Println(formatter.Format(outcome, filter))
	return nil
}

// =============================================================================
// Metadata Handler
// =============================================================================

func runMetadata(ctx context.Context, configPath, section, resolveMarket string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := snapshot.Build(ctx, a.index)
	if err != nil {
		return fmt.Errorf("failed to build metadata snapshot: %w", err)
	}

	// Route through the agent tool so the CLI prints exactly what an
	// agent would receive.
	tool := metadata.New(snap).WithLogger(a.logger).WithMetrics(a.metrics)

	params := map[string]string{}
	if resolveMarket != "" {
		params["resolve_market"] = resolveMarket
	} else if section != "" {
		params["section"] = section
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	result, err := tool.Execute(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Println(result.Content)
	if result.IsError {
		return errors.New("metadata lookup failed")
	}
	return nil
}

// =============================================================================
// Stats Handler
// =============================================================================

func runStats(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.index.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Backend:\t%s\n", stats.Backend)
	fmt.Fprintf(w, "Collection:\t%s\n", stats.Collection)
	fmt.Fprintf(w, "Documents:\t%d\n", stats.Documents)
	fmt.Fprintf(w, "Records:\t%d\n", stats.Records)
	fmt.Fprintf(w, "Dimension:\t%d\n", stats.Dimension)
	return w.Flush()
}

// =============================================================================
// Drop Handler
// =============================================================================

func runDrop(ctx context.Context, configPath string, yes bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		fmt.Printf("Collection %q is already empty.\n", a.cfg.Index.Collection)
		return nil
	}

	if !yes {
		fmt.Printf("Drop collection %q with %d documents? [y/N]: ", a.cfg.Index.Collection, count)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := a.index.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	fmt.Printf("Dropped collection %q (%d documents).\n", a.cfg.Index.Collection, count)
	return nil
}

// =============================================================================
// Tool Handlers
// =============================================================================

// buildRegistry assembles the agent tool registry the same way an
// embedding host would: the search tool over the retrieval engine and
// the metadata tool over a fresh snapshot.
func (a *app) buildRegistry(ctx context.Context) (*tools.Registry, error) {
	embedder, err := buildEmbedder(a.cfg)
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.Build(ctx, a.index)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata snapshot: %w", err)
	}

	registry := tools.NewRegistry()
	searchTool := search.New(a.buildEngine(embedder)).
		WithLogger(a.logger).
		WithMetrics(a.metrics).
		WithTracer(a.tracer)
	metadataTool := metadata.New(snap).
		WithLogger(a.logger).
		WithMetrics(a.metrics)

	if err := registry.Register(searchTool); err != nil {
		return nil, err
	}
	if err := registry.Register(metadataTool); err != nil {
		return nil, err
	}
	return registry, nil
}

func runToolList(ctx context.Context, configPath string, showSchemas bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		return err
	}

	for _, name := range registry.List() {
		tool, _ := registry.Get(name)
		fmt.Printf("%s\n  %s\n", tool.Name(), strings.ReplaceAll(tool.Description(), "\n", "\n  "))
		if showSchemas {
			var pretty map[string]any
			if err := json.Unmarshal(tool.Schema(), &pretty); err == nil {
				out, _ := json.MarshalIndent(pretty, "  ", "  ")
				fmt.Printf("  %s\n", out)
			}
		}
		fmt.Println()
	}
	return nil
}

func runToolCall(ctx context.Context, configPath, name, params string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		return err
	}

	result, err := registry.Execute(ctx, name, json.RawMessage(params))
	if err != nil {
		return err
	}
	fmt.Println(result.Content)
	return nil
}

// =============================================================================
// Config Handlers
// =============================================================================

func runConfigValidate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s is valid (backend: %s, provider: %s, collection: %s)\n",
		configPath, cfg.Index.Backend, cfg.Embeddings.Provider, cfg.Index.Collection)
	return nil
}

func runConfigSchema() error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	fmt.Println(string(schema))
	return nil
}
