// Package main provides the CLI entry point for Echolot.
//
// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder function creates a command and
// wires it to its handler in handlers.go.
package main

import (
	"github.com/spf13/cobra"
)

// defaultConfigFile is used when neither --config nor ECHOLOT_CONFIG
// is set.
const defaultConfigFile = "echolot.yaml"

// =============================================================================
// Ingest Command
// =============================================================================

// buildIngestCmd creates the "ingest" command that builds the vector
// corpus from a CSV export.
func buildIngestCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <csv-file>",
		Short: "Build the feedback corpus from a CSV export",
		Long: `Load an NPS survey export, enrich it and build the vector corpus.

Each row is classified (NPS category, sentiment, topic), chunked,
embedded and upserted into the configured index. If the collection
already holds documents the build is skipped; use --force to drop and
rebuild from scratch.`,
		Example: `  # Build the corpus, reusing an existing collection
  echolot ingest feedback.csv

  # Drop and rebuild
  echolot ingest feedback.csv --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), resolveConfigPath(configPath), args[0], force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVar(&force, "force", false,
		"Drop the existing collection and rebuild")

	return cmd
}

// =============================================================================
// Query Command
// =============================================================================

// buildQueryCmd creates the "query" command for searching the corpus.
func buildQueryCmd() *cobra.Command {
	var (
		configPath string
		maxResults int
		market     string
		region     string
		country    string
		sentiment  string
		npsFilter  string
		topic      string
		dateFrom   string
		dateTo     string
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the feedback corpus",
		Long: `Run a semantic search over the feedback corpus.

Matches are ranked by similarity and gated by confidence: results
below the reject threshold are withheld entirely. Metadata filters
narrow the search before ranking.`,
		Example: `  # Plain semantic search
  echolot query "Probleme mit der Lieferung"

  # Scoped to one market and sentiment
  echolot query "Kundenservice" --market C1-DE --sentiment negativ

  # A date window with more results
  echolot query "App Abstürze" --date-from 2023-01-01 --date-to 2023-03-31 --max-results 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := queryOptions{
				MaxResults:  maxResults,
				Market:      market,
				Region:      region,
				Country:     country,
				Sentiment:   sentiment,
				NPSCategory: npsFilter,
				Topic:       topic,
				DateFrom:    dateFrom,
				DateTo:      dateTo,
			}
			return runQuery(cmd.Context(), resolveConfigPath(configPath), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0,
		"Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVar(&market, "market", "", "Filter by market code (e.g. C1-DE)")
	cmd.Flags().StringVar(&region, "region", "", "Filter by region")
	cmd.Flags().StringVar(&country, "country", "", "Filter by ISO country code")
	cmd.Flags().StringVar(&sentiment, "sentiment", "", "Filter by sentiment (positiv, negativ, neutral)")
	cmd.Flags().StringVar(&npsFilter, "nps", "", "Filter by NPS category (Promoter, Passive, Detractor)")
	cmd.Flags().StringVar(&topic, "topic", "", "Filter by topic")
	cmd.Flags().StringVar(&dateFrom, "date-from", "", "Earliest feedback date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "date-to", "", "Latest feedback date, inclusive (YYYY-MM-DD)")

	return cmd
}

// =============================================================================
// Metadata Command
// =============================================================================

// buildMetadataCmd creates the "metadata" command that reports dataset
// statistics from a snapshot of the index.
func buildMetadataCmd() *cobra.Command {
	var (
		configPath    string
		section       string
		resolveMarket string
	)

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Show dataset statistics",
		Long: `Summarize the indexed corpus: markets, NPS distribution, sentiment,
topics, date coverage and verbatim lengths.

Without flags the full overview is printed. --section limits output to
one block; --resolve-market maps a fuzzy market name to its code.`,
		Example: `  # Full overview
  echolot metadata

  # One section
  echolot metadata --section nps_statistics

  # Resolve a market name
  echolot metadata --resolve-market Deutschland`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetadata(cmd.Context(), resolveConfigPath(configPath), section, resolveMarket)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().StringVar(&section, "section", "",
		"Single section to print (unique_markets, nps_statistics, sentiment_statistics, topic_statistics, date_range, verbatim_statistics, dataset_overview)")
	cmd.Flags().StringVar(&resolveMarket, "resolve-market", "",
		"Resolve a market name or country to its market code")

	return cmd
}

// =============================================================================
// Stats Command
// =============================================================================

// buildStatsCmd creates the "stats" command that prints index-level
// counters.
func buildStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")

	return cmd
}

// =============================================================================
// Drop Command
// =============================================================================

// buildDropCmd creates the "drop" command that deletes the collection.
func buildDropCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:     "drop",
		Aliases: []string{"delete"},
		Short:   "Delete the feedback collection",
		Long: `Delete every document in the configured collection.

Asks for confirmation unless --yes is given. The collection is rebuilt
on the next ingest run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrop(cmd.Context(), resolveConfigPath(configPath), yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false,
		"Skip the confirmation prompt")

	return cmd
}

// =============================================================================
// Tool Commands
// =============================================================================

// buildToolCmd creates the "tool" command group exposing the agent
// tool surface directly from the CLI.
func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect and invoke agent tools",
		Long: `Work with the agent-facing tool registry.

"tool list" prints the registered tools with their descriptions.
"tool call" validates the given JSON parameters against the tool's
schema and executes it, printing the tool's text result. This is the
same surface an LLM agent sees.`,
	}

	cmd.AddCommand(buildToolListCmd(), buildToolCallCmd())

	return cmd
}

// buildToolListCmd creates the "tool list" command.
func buildToolListCmd() *cobra.Command {
	var (
		configPath  string
		showSchemas bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agent tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolList(cmd.Context(), resolveConfigPath(configPath), showSchemas)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVar(&showSchemas, "schemas", false,
		"Include each tool's JSON parameter schema")

	return cmd
}

// buildToolCallCmd creates the "tool call" command.
func buildToolCallCmd() *cobra.Command {
	var (
		configPath string
		params     string
	)

	cmd := &cobra.Command{
		Use:   "call <tool-name>",
		Short: "Invoke an agent tool with JSON parameters",
		Example: `  echolot tool call search_customer_feedback \
    --params '{"query": "Lieferprobleme", "market_filter": "C1-DE"}'

  echolot tool call get_feedback_metadata --params '{"section": "date_range"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolCall(cmd.Context(), resolveConfigPath(configPath), args[0], params)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().StringVarP(&params, "params", "p", "{}",
		"Tool parameters as a JSON object")

	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and document the configuration",
	}

	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())

	return cmd
}

// buildConfigValidateCmd creates the "config validate" command.
func buildConfigValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")

	return cmd
}

// buildConfigSchemaCmd creates the "config schema" command.
func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema()
		},
	}
}
