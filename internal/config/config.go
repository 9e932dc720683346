// Package config loads and validates the Echolot configuration from
// YAML or JSON5 files, with $include composition and environment
// variable expansion.
package config

import (
	"fmt"
	"strings"
)

// Config is the main configuration structure for Echolot.
type Config struct {
	// Version is the config file format version.
	Version int `yaml:"version,omitempty"`

	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Index      IndexConfig      `yaml:"index"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source,omitempty"`

	// RedactPatterns are extra regexes scrubbed from log values on top
	// of the built-in secret patterns.
	RedactPatterns []string `yaml:"redact_patterns,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled starts an HTTP listener serving /metrics.
	Enabled bool `yaml:"enabled"`

	// Listen is the address for the metrics listener.
	Listen string `yaml:"listen"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables
	// tracing.
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName overrides the service name reported on spans.
	ServiceName string `yaml:"service_name,omitempty"`

	// Environment tags spans with the deployment environment.
	Environment string `yaml:"environment,omitempty"`

	// SamplingRate is the fraction of traces recorded, 0 to 1.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider. Usually set via
	// ${OPENAI_API_KEY} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint, e.g. for Azure or a
	// local Ollama.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the embedding model name.
	Model string `yaml:"model,omitempty"`

	// Dimensions reduces the output dimension on models that support
	// it (text-embedding-3-*). Zero keeps the model's native size.
	Dimensions int `yaml:"dimensions,omitempty"`

	// BatchSize caps texts per embedding request.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	// Backend is "sqlite" or "pgvector".
	Backend string `yaml:"backend"`

	// Dir holds the SQLite database files. Empty means in-memory.
	Dir string `yaml:"dir,omitempty"`

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string `yaml:"dsn,omitempty"`

	// Collection names the corpus.
	Collection string `yaml:"collection"`

	// Dimension is the embedding dimension stored in the index.
	Dimension int `yaml:"dimension,omitempty"`
}

// IngestConfig controls corpus builds.
type IngestConfig struct {
	// BatchSize caps documents per embed-and-upsert batch.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// RetrievalConfig controls the read path.
type RetrievalConfig struct {
	// Confidence holds the similarity cutoffs for the tier gate.
	Confidence ConfidenceConfig `yaml:"confidence"`

	// DefaultResults is the result count used when the caller does not
	// ask for one.
	DefaultResults int `yaml:"default_results,omitempty"`
}

// ConfidenceConfig mirrors retrieval.Thresholds in the config file.
// Zero values fall back to the ada-002 defaults.
type ConfidenceConfig struct {
	Reject float64 `yaml:"reject,omitempty"`
	Low    float64 `yaml:"low,omitempty"`
	Medium float64 `yaml:"medium,omitempty"`
}

// Load reads, merges and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied, the state
// Load produces for an empty file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9090"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "echolot"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-ada-002"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "sqlite"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "customer_feedback"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 1536
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Retrieval.Confidence.Reject == 0 {
		cfg.Retrieval.Confidence.Reject = 0.60
	}
	if cfg.Retrieval.Confidence.Low == 0 {
		cfg.Retrieval.Confidence.Low = 0.75
	}
	if cfg.Retrieval.Confidence.Medium == 0 {
		cfg.Retrieval.Confidence.Medium = 0.85
	}
	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = 15
	}
}

// Validate checks cross-field consistency after defaults are applied.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Index.Backend) {
	case "sqlite":
	case "pgvector":
		if c.Index.DSN == "" {
			return fmt.Errorf("index.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown index backend %q (supported: sqlite, pgvector)", c.Index.Backend)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "openai":
	case "ollama":
		if c.Embeddings.Dimensions > 0 {
			return fmt.Errorf("embeddings.dimensions is only supported by the openai provider")
		}
	default:
		return fmt.Errorf("unknown embeddings provider %q (supported: openai, ollama)", c.Embeddings.Provider)
	}

	cc := c.Retrieval.Confidence
	if !(cc.Reject <= cc.Low && cc.Low <= cc.Medium) {
		return fmt.Errorf("retrieval.confidence thresholds must be ordered reject <= low <= medium (got %.2f/%.2f/%.2f)",
			cc.Reject, cc.Low, cc.Medium)
	}
	for name, v := range map[string]float64{"reject": cc.Reject, "low": cc.Low, "medium": cc.Medium} {
		if v < 0 || v > 1 {
			return fmt.Errorf("retrieval.confidence.%s must be between 0 and 1 (got %.2f)", name, v)
		}
	}

	return nil
}
