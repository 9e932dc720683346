// Package main provides the CLI entry point for Echolot, a semantic
// retrieval service over customer feedback.
//
// Echolot ingests NPS survey exports into a vector index and answers
// natural-language questions about them with metadata-filtered,
// confidence-gated similarity search.
//
// # Basic Usage
//
// Build the corpus from a CSV export:
//
//	echolot ingest feedback.csv --config echolot.yaml
//
// Search it:
//
//	echolot query "Probleme mit der Lieferung" --market C1-DE
//
// Inspect the dataset:
//
//	echolot metadata
//	echolot stats
//
// # Environment Variables
//
//   - ECHOLOT_CONFIG: Path to configuration file (default: echolot.yaml)
//   - OPENAI_API_KEY: OpenAI API key, referenced from the config file
//     via ${OPENAI_API_KEY} expansion
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := buildRootCmd()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echolot",
		Short: "Echolot - Semantic customer feedback retrieval",
		Long: `Echolot turns NPS survey exports into a searchable vector corpus.

Feedback verbatims are chunked, embedded and stored alongside their
survey metadata. Retrieval combines similarity search with metadata
filters and a confidence gate, so weak matches are rejected instead of
being handed to a language model as fact.

Supported embedding providers: OpenAI, Ollama
Supported index backends: SQLite, PostgreSQL (pgvector)`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildIngestCmd(),
		buildQueryCmd(),
		buildMetadataCmd(),
		buildStatsCmd(),
		buildDropCmd(),
		buildToolCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

// buildVersionCmd creates the "version" command.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("echolot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
