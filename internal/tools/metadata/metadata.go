// Package metadata exposes the corpus snapshot as an agent tool.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voicelab/echolot/internal/observability"
	"github.com/voicelab/echolot/internal/snapshot"
	"github.com/voicelab/echolot/internal/tools"
)

// sectionOrder fixes the display order when the whole snapshot is
// requested.
var sectionOrder = []string{
	"dataset_overview",
	"unique_markets",
	"nps_statistics",
	"sentiment_statistics",
	"topic_statistics",
	"date_range",
	"verbatim_statistics",
}

// Tool serves precomputed dataset statistics as get_feedback_metadata.
// The snapshot is swapped atomically after a rebuild; reads never block
// ingestion.
type Tool struct {
	mu      sync.RWMutex
	snap    *snapshot.Snapshot
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates the metadata tool. snap may be nil until the first
// snapshot is built.
func New(snap *snapshot.Snapshot) *Tool {
	return &Tool{snap: snap, logger: observability.NopLogger()}
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

// SetSnapshot swaps in a freshly built snapshot.
func (t *Tool) SetSnapshot(snap *snapshot.Snapshot) {
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}

func (t *Tool) current() *snapshot.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return "get_feedback_metadata"
}

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Liefert statistische Übersichten über den Kundenfeedback-Datensatz: Märkte, NPS-Verteilung, " +
		"Sentiment, Topics, Zeitraum und Textlängen. Optional auf eine Sektion eingeschränkt."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "section": {
      "type": "string",
      "enum": ["dataset_overview", "unique_markets", "nps_statistics", "sentiment_statistics", "topic_statistics", "date_range", "verbatim_statistics"],
      "description": "Einzelne Sektion statt des gesamten Snapshots"
    },
    "resolve_market": {
      "type": "string",
      "description": "Nutzereingabe, die auf einen Markt-Code des Datensatzes aufgelöst werden soll, z.B. 'Deutschland' oder 'DE'"
    }
  }
}`)
}

// metadataInput represents the tool input parameters.
type metadataInput struct {
	Section       string `json:"section,omitempty"`
	ResolveMarket string `json:"resolve_market,omitempty"`
}

// Execute renders the requested snapshot section, the full snapshot, or
// a market resolution.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	start := time.Now()

	var input metadataInput
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			t.record("invalid_params", start)
			return &tools.ToolResult{
				Content: fmt.Sprintf("❌ ERROR: Invalid parameters: %v", err),
				IsError: true,
			}, nil
		}
	}

	snap := t.current()
	if snap == nil {
		t.record("no_snapshot", start)
		return &tools.ToolResult{
			Content: "❌ ERROR: No metadata snapshot available. The corpus has not been ingested yet.",
			IsError: true,
		}, nil
	}

	t.logger.Debug(ctx, "Metadata tool invoked", "section", input.Section, "resolve_market", input.ResolveMarket)

	if input.ResolveMarket != "" {
		t.record("ok", start)
		return &tools.ToolResult{Content: snap.ResolveMarket(input.ResolveMarket)}, nil
	}

	sections := snap.Sections()
	if input.Section != "" {
		content, ok := sections[input.Section]
		if !ok {
			t.record("invalid_params", start)
			return &tools.ToolResult{
				Content: fmt.Sprintf("❌ ERROR: Unknown section %q. Available: %s", input.Section, strings.Join(sectionOrder, ", ")),
				IsError: true,
			}, nil
		}
		t.record("ok", start)
		return &tools.ToolResult{Content: content}, nil
	}

	var b strings.Builder
	for i, key := range sectionOrder {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sections[key])
	}
	t.record("ok", start)
	return &tools.ToolResult{Content: b.String()}, nil
}

func (t *Tool) record(status string, start time.Time) {
	if t.metrics != nil {
		t.metrics.RecordToolExecution(t.Name(), status, time.Since(start).Seconds())
	}
}
