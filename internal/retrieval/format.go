package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voicelab/echolot/pkg/models"
)

// importantFields is the metadata allow-list shown per result block, in
// display order.
var importantFields = []string{
	models.FieldMarket,
	models.FieldRegion,
	models.FieldCountry,
	models.FieldNPS,
	models.FieldNPSCategory,
	models.FieldSentimentLabel,
	models.FieldTopic,
}

const blockSeparator = "=================================================="

// Formatter renders outcomes into the single string the agent callers
// consume. It does no filtering or re-ranking of its own; every
// decision was made upstream.
type Formatter struct {
	thresholds Thresholds
}

// NewFormatter creates a formatter. The thresholds are only used for
// echoing cutoff values in messages, not for re-gating.
func NewFormatter(thresholds Thresholds) *Formatter {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Formatter{thresholds: thresholds}
}

// Format renders one outcome. The filter is echoed back in no-result
// messages so the caller can see which constraints emptied the set.
func (f *Formatter) Format(outcome *Outcome, filter *Filter) string {
	switch outcome.Kind {
	case KindError:
		return f.formatError(outcome)
	case KindNoResults:
		return f.formatNoResults(outcome, filter)
	case KindRejected:
		return f.formatRejected(outcome)
	default:
		if outcome.Unranked {
			return f.formatUnranked(outcome)
		}
		return f.formatRanked(outcome)
	}
}

func (f *Formatter) formatRanked(o *Outcome) string {
	var b strings.Builder

	if o.Warning != "" {
		fmt.Fprintf(&b, "⚠️  WARNING: %s\n\n", o.Warning)
	}

	switch o.Tier {
	case TierLow:
		b.WriteString("⚠️  NIEDRIGE RELEVANZ\n")
		b.WriteString("\n⚠️  ACHTUNG: ERGEBNISSE MIT EINGESCHRÄNKTER RELEVANZ\n\n")
		b.WriteString("📊 Qualitäts-Metriken:\n")
		fmt.Fprintf(&b, "   • Beste Übereinstimmung: %s\n", percent(o.TopSimilarity))
		fmt.Fprintf(&b, "   • Durchschnitt: %s\n\n", percent(o.AvgSimilarity))
		b.WriteString("Die folgenden Ergebnisse haben nur moderate semantische Ähnlichkeit mit Ihrer Anfrage.\n")
		b.WriteString("Bitte prüfen Sie die Relevanz der einzelnen Feedbacks kritisch.\n\n")
		b.WriteString("💡 Tipp: Falls die Ergebnisse nicht passen, versuchen Sie andere Suchbegriffe.\n\n")
	case TierMedium:
		b.WriteString("✅ MODERATE RELEVANZ\n")
		fmt.Fprintf(&b, "\n✅ Gefunden: %d Feedbacks (Ø Relevanz: %s)\n\n", len(o.Matches), percent(o.AvgSimilarity))
	default:
		b.WriteString("✅ HOHE RELEVANZ\n")
		fmt.Fprintf(&b, "\n✅ Gefunden: %d Feedbacks (Ø Relevanz: %s)\n\n", len(o.Matches), percent(o.AvgSimilarity))
	}

	for i, m := range o.Matches {
		fmt.Fprintf(&b, "📄 **Result %d** (Similarity: %.3f):\n", i+1, m.Similarity())
		fmt.Fprintf(&b, "💬 Feedback: %s\n", m.Text)
		writeContext(&b, m.Metadata)
		b.WriteString("\n" + blockSeparator + "\n\n")
	}

	writeSummary(&b, o.Matches)

	if o.AvgSimilarity < f.thresholds.Low {
		b.WriteString("\n\n⚠️  LLM NOTE: Low confidence results. Consider mentioning limitations in your analysis.")
	}

	return b.String()
}

func (f *Formatter) formatUnranked(o *Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "✅ Gefunden: %d Feedbacks (Metadaten-Abruf ohne Ranking)\n\n", len(o.Matches))

	for i, m := range o.Matches {
		fmt.Fprintf(&b, "📄 **Result %d**:\n", i+1)
		fmt.Fprintf(&b, "💬 Feedback: %s\n", m.Text)
		writeContext(&b, m.Metadata)
		b.WriteString("\n" + blockSeparator + "\n\n")
	}

	writeSummary(&b, o.Matches)
	return b.String()
}

func (f *Formatter) formatRejected(o *Outcome) string {
	var b strings.Builder

	if o.Warning != "" {
		fmt.Fprintf(&b, "⚠️  WARNING: %s\n\n", o.Warning)
	}

	b.WriteString("❌ KEINE RELEVANTEN ERGEBNISSE GEFUNDEN\n\n")
	b.WriteString("📊 Qualitäts-Metriken:\n")
	fmt.Fprintf(&b, "   • Beste Übereinstimmung: %s\n", percent(o.TopSimilarity))
	fmt.Fprintf(&b, "   • Durchschnitt: %s\n", percent(o.AvgSimilarity))
	fmt.Fprintf(&b, "   • Schwellenwert: %s\n\n", percent(f.thresholds.Reject))
	b.WriteString("⚠️  INTERPRETATION:\n")
	b.WriteString("Die semantische Ähnlichkeit zwischen Ihrer Anfrage und dem Datensatz ist zu gering.\n")
	b.WriteString("Das gesuchte Thema existiert wahrscheinlich nicht in dieser Form in den Kundenfeedbacks.\n\n")
	b.WriteString("💡 MÖGLICHE GRÜNDE:\n")
	b.WriteString("   1. Der Begriff wird im Datensatz anders formuliert\n")
	b.WriteString("   2. Das Thema ist nicht im Datensatz enthalten\n")
	b.WriteString("   3. Die Suchanfrage ist zu spezifisch\n\n")
	b.WriteString("✅ VORSCHLÄGE:\n")
	b.WriteString("   • Verwenden Sie allgemeinere Begriffe\n")
	b.WriteString("   • Prüfen Sie alternative Formulierungen\n\n")
	b.WriteString("📋 Tipp: Verwenden Sie get_feedback_metadata um zu sehen, welche Themen verfügbar sind.")

	return b.String()
}

func (f *Formatter) formatNoResults(o *Outcome, filter *Filter) string {
	var b strings.Builder

	if o.Warning != "" {
		fmt.Fprintf(&b, "⚠️  WARNING: %s\n\n", o.Warning)
	}

	active := filter.Active()
	filterInfo := ""
	if len(active) > 0 {
		filterInfo = " with filters: " + strings.Join(active, ", ")
	}

	fmt.Fprintf(&b, "📭 NO RESULTS: No customer feedback found matching your search criteria%s.\n\n", filterInfo)
	b.WriteString("Try:\n")
	b.WriteString("- Using different or broader keywords\n")
	fmt.Fprintf(&b, "- Removing some filters (current: %d active)\n", len(active))
	b.WriteString("- Checking if the filter values exist (e.g., topic='Lieferproblem' vs. 'Lieferung')\n")
	b.WriteString("- Expanding date range if using date filters")

	return b.String()
}

func (f *Formatter) formatError(o *Outcome) string {
	if o.ErrorKind == ErrKindValidation {
		return "❌ ERROR: " + o.Message
	}

	var b strings.Builder
	b.WriteString("❌ SEARCH ERROR: Database query failed.\n\n")
	fmt.Fprintf(&b, "🔧 Error Details: %s\n\n", o.Message)
	b.WriteString("🚨 What this means: The customer feedback database encountered an issue while processing your search.\n\n")
	b.WriteString("✅ Suggested Actions:\n")
	b.WriteString("1. Try a simpler search query\n")
	b.WriteString("2. Reduce the number of results requested\n")
	b.WriteString("3. Check if the search terms are in German or English\n")
	b.WriteString("4. If this persists, use get_feedback_metadata to check available data\n\n")
	b.WriteString("⚠️  Please inform the user about this technical issue and suggest alternative approaches.")
	return b.String()
}

func writeContext(b *strings.Builder, meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	var parts []string
	for _, field := range importantFields {
		if v, ok := meta[field]; ok && v != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", field, v))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "📊 Context: %s\n", strings.Join(parts, ", "))
	}
}

func writeSummary(b *strings.Builder, matches []*models.Match) {
	fmt.Fprintf(b, "\n📈 SUMMARY: %d Feedbacks", len(matches))

	seen := map[string]bool{}
	var markets []string
	for _, m := range matches {
		if v, ok := m.Metadata[models.FieldMarket].(string); ok && v != "" && !seen[v] {
			seen[v] = true
			markets = append(markets, v)
		}
	}
	if len(markets) > 0 {
		sort.Strings(markets)
		fmt.Fprintf(b, " | Markets: %s", strings.Join(markets, ", "))
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
