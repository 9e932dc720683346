// Package search exposes semantic feedback retrieval as an agent tool.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/voicelab/echolot/internal/observability"
	"github.com/voicelab/echolot/internal/retrieval"
	"github.com/voicelab/echolot/internal/tools"
)

// Tool wraps the retrieval engine as the search_customer_feedback tool.
// Whatever happens inside, Execute always hands a formatted string back
// to the model.
type Tool struct {
	engine    *retrieval.Engine
	formatter *retrieval.Formatter
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// New creates the search tool around an engine.
func New(engine *retrieval.Engine) *Tool {
	return &Tool{
		engine:    engine,
		formatter: retrieval.NewFormatter(engine.Thresholds()),
		logger:    observability.NopLogger(),
	}
}

// WithLogger sets the logger.
func (t *Tool) WithLogger(logger *observability.Logger) *Tool {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// WithMetrics sets the metrics collector.
func (t *Tool) WithMetrics(metrics *observability.Metrics) *Tool {
	t.metrics = metrics
	return t
}

// WithTracer sets the tracer.
func (t *Tool) WithTracer(tracer *observability.Tracer) *Tool {
	t.tracer = tracer
	return t
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return "search_customer_feedback"
}

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Durchsucht die Kundenfeedback-Datenbank semantisch mit optionalen Metadata-Filtern. " +
		"Liefert formatierte Ergebnisse mit Confidence-Bewertung; Filter werden mit AND kombiniert."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "Semantische Suchanfrage in Deutsch oder Englisch, z.B. 'Lieferprobleme' oder 'positive Erfahrungen'"
    },
    "max_results": {
      "type": "integer",
      "description": "Anzahl Ergebnisse (3-50). Default: 15"
    },
    "market_filter": {
      "type": "string",
      "description": "Markt-Filter im Format REGION-COUNTRY, z.B. 'C1-DE'"
    },
    "region_filter": {
      "type": "string",
      "description": "Regions-Filter, z.B. 'C1' oder 'CE'"
    },
    "country_filter": {
      "type": "string",
      "description": "Laender-Filter als ISO 3166-1 Alpha-2 Code, z.B. 'DE'"
    },
    "sentiment_filter": {
      "type": "string",
      "description": "Sentiment-Filter: 'positiv', 'neutral' oder 'negativ'"
    },
    "nps_filter": {
      "type": "string",
      "description": "NPS-Kategorie-Filter: 'Promoter', 'Passive' oder 'Detractor'"
    },
    "topic_filter": {
      "type": "string",
      "description": "Topic-Filter, z.B. 'Lieferproblem', 'Service', 'Werkstatt'"
    },
    "date_from": {
      "type": "string",
      "description": "Start-Datum im Format YYYY-MM-DD"
    },
    "date_to": {
      "type": "string",
      "description": "End-Datum im Format YYYY-MM-DD (ganzer Tag inklusive)"
    }
  },
  "required": ["query"]
}`)
}

// searchInput represents the tool input parameters.
type searchInput struct {
	Query           string `json:"query"`
	MaxResults      int    `json:"max_results,omitempty"`
	MarketFilter    string `json:"market_filter,omitempty"`
	RegionFilter    string `json:"region_filter,omitempty"`
	CountryFilter   string `json:"country_filter,omitempty"`
	SentimentFilter string `json:"sentiment_filter,omitempty"`
	NPSFilter       string `json:"nps_filter,omitempty"`
	TopicFilter     string `json:"topic_filter,omitempty"`
	DateFrom        string `json:"date_from,omitempty"`
	DateTo          string `json:"date_to,omitempty"`
}

// Execute runs the search and renders the outcome. It never returns a
// Go error: every failure becomes a formatted message for the model.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	start := time.Now()
	if t.tracer != nil {
		var span trace.Span
		ctx, span = t.tracer.TraceToolExecution(ctx, t.Name())
		defer span.End()
	}

	var input searchInput
	if err := json.Unmarshal(params, &input); err != nil {
		t.record("invalid_params", start)
		return &tools.ToolResult{
			Content: fmt.Sprintf("❌ ERROR: Invalid parameters: %v", err),
			IsError: true,
		}, nil
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		t.record("invalid_params", start)
		return &tools.ToolResult{
			Content: "❌ ERROR: Empty search query provided. Please provide a meaningful search term related to customer feedback.",
			IsError: true,
		}, nil
	}

	filter := &retrieval.Filter{
		Market:      strings.TrimSpace(input.MarketFilter),
		Region:      strings.TrimSpace(input.RegionFilter),
		Country:     strings.TrimSpace(input.CountryFilter),
		Sentiment:   strings.TrimSpace(input.SentimentFilter),
		NPSCategory: strings.TrimSpace(input.NPSFilter),
		Topic:       strings.TrimSpace(input.TopicFilter),
		DateFrom:    strings.TrimSpace(input.DateFrom),
		DateTo:      strings.TrimSpace(input.DateTo),
	}

	t.logger.Info(ctx, "Search tool invoked",
		"query", query,
		"max_results", input.MaxResults,
		"filters", strings.Join(filter.Active(), ", "),
	)

	outcome := t.engine.Retrieve(ctx, retrieval.Params{
		Query:      query,
		Filter:     filter,
		MaxResults: input.MaxResults,
	})

	t.record(string(outcome.Kind), start)

	return &tools.ToolResult{
		Content: t.formatter.Format(outcome, filter),
		IsError: outcome.Kind == retrieval.KindError,
	}, nil
}

func (t *Tool) record(status string, start time.Time) {
	if t.metrics != nil {
		t.metrics.RecordToolExecution(t.Name(), status, time.Since(start).Seconds())
	}
}
