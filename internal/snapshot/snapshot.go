// Package snapshot computes a static statistical summary over the
// indexed corpus metadata. The snapshot is built once after startup or
// ingest and embedded into agent instructions, so metadata questions
// never cost a retrieval round-trip. It does not refresh itself; callers
// rebuild explicitly after changing the corpus.
package snapshot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/voicelab/echolot/internal/corpus"
	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
)

// coverageWarnBelow is the date coverage percentage under which the
// date range section warns about gaps.
const coverageWarnBelow = 90.0

// Token count buckets for the verbatim length distribution.
const (
	shortTokenMax  = 20
	mediumTokenMax = 100
)

// Snapshot holds the precomputed metadata summary of one corpus state.
// All methods are read-only and safe for concurrent use once built.
type Snapshot struct {
	builtAt time.Time
	total   int
	rows    []map[string]any

	markets   []string
	regions   []string
	countries []string
}

// Build loads every document's metadata from the index and computes the
// snapshot. An empty index yields a snapshot whose sections report
// missing data rather than an error.
func Build(ctx context.Context, idx index.Index) (*Snapshot, error) {
	docs, err := idx.Get(ctx, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("load corpus metadata: %w", err)
	}

	s := &Snapshot{
		builtAt: time.Now().UTC(),
		total:   len(docs),
		rows:    make([]map[string]any, 0, len(docs)),
	}
	for _, doc := range docs {
		s.rows = append(s.rows, doc.Metadata)
	}

	s.markets = s.uniqueStrings(models.FieldMarket, false)
	s.regions = s.uniqueStrings(models.FieldRegion, true)
	s.countries = s.uniqueStrings(models.FieldCountry, true)

	return s, nil
}

// BuiltAt returns the snapshot creation time.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// TotalEntries returns the number of indexed documents behind the
// snapshot.
func (s *Snapshot) TotalEntries() int { return s.total }

// Markets returns the sorted distinct market codes.
func (s *Snapshot) Markets() []string { return s.markets }

// Sections returns every formatted section keyed by name, the shape the
// metadata tool serves.
func (s *Snapshot) Sections() map[string]string {
	return map[string]string{
		"unique_markets":       s.UniqueMarkets(),
		"nps_statistics":       s.NPSStatistics(),
		"sentiment_statistics": s.SentimentStatistics(),
		"topic_statistics":     s.TopicStatistics(),
		"date_range":           s.DateRange(),
		"verbatim_statistics":  s.VerbatimStatistics(),
		"dataset_overview":     s.DatasetOverview(),
		"total_entries":        fmt.Sprintf("%d", s.total),
	}
}

// UniqueMarkets lists the distinct markets, regions and countries.
// UNKNOWN placeholders are excluded from the region and country lists.
func (s *Snapshot) UniqueMarkets() string {
	var lines []string
	if len(s.markets) > 0 {
		lines = append(lines, fmt.Sprintf("Märkte (%d): %s", len(s.markets), strings.Join(s.markets, ", ")))
	}
	if len(s.regions) > 0 {
		lines = append(lines, fmt.Sprintf("Regionen (%d): %s", len(s.regions), strings.Join(s.regions, ", ")))
	}
	if len(s.countries) > 0 {
		lines = append(lines, fmt.Sprintf("Länder ISO-Code (%d): %s", len(s.countries), strings.Join(s.countries, ", ")))
	}
	if len(lines) == 0 {
		return "Keine Marktdaten verfügbar."
	}
	return strings.Join(lines, "\n")
}

// NPSStatistics reports mean, median, range and the category
// distribution of the NPS scores.
func (s *Snapshot) NPSStatistics() string {
	scores := s.numbers(models.FieldNPS)
	if len(scores) == 0 {
		return "Keine NPS-Daten verfügbar."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("NPS-Statistiken (%d Einträge):", len(scores)))
	lines = append(lines, fmt.Sprintf("• Durchschnitt: %.2f", mean(scores)))
	lines = append(lines, fmt.Sprintf("• Median: %.1f", median(scores)))
	lines = append(lines, fmt.Sprintf("• Range: %.0f - %.0f", minOf(scores), maxOf(scores)))

	counts := map[string]int{}
	for _, v := range scores {
		switch {
		case v <= 6:
			counts["Detractor"]++
		case v <= 8:
			counts["Passive"]++
		default:
			counts["Promoter"]++
		}
	}
	lines = append(lines, "• Kategorien:")
	for _, entry := range byCountDesc(counts) {
		lines = append(lines, fmt.Sprintf("  - %s: %d (%.1f%%)", entry.key, entry.count, pct(entry.count, len(scores))))
	}

	return strings.Join(lines, "\n")
}

// SentimentStatistics reports the label distribution and the score
// spread.
func (s *Snapshot) SentimentStatistics() string {
	labels := map[string]int{}
	for _, row := range s.rows {
		if v, ok := row[models.FieldSentimentLabel].(string); ok && v != "" {
			labels[v]++
		}
	}
	scores := s.numbers(models.FieldSentimentScore)

	var lines []string
	if len(labels) > 0 {
		total := 0
		for _, c := range labels {
			total += c
		}
		lines = append(lines, fmt.Sprintf("Sentiment-Verteilung (%d Einträge):", total))
		for _, entry := range byCountDesc(labels) {
			lines = append(lines, fmt.Sprintf("• %s: %d (%.1f%%)", entry.key, entry.count, pct(entry.count, total)))
		}
	}
	if len(scores) > 0 {
		lines = append(lines, "\nSentiment-Scores:")
		lines = append(lines, fmt.Sprintf("• Durchschnitt: %.3f", mean(scores)))
		lines = append(lines, fmt.Sprintf("• Range: %.3f bis %.3f", minOf(scores), maxOf(scores)))
	}
	if len(lines) == 0 {
		return "Keine Sentiment-Daten verfügbar."
	}
	return strings.Join(lines, "\n")
}

// TopicStatistics reports the topic distribution with the mean
// classification confidence per topic.
func (s *Snapshot) TopicStatistics() string {
	counts := map[string]int{}
	confSums := map[string]float64{}
	confCounts := map[string]int{}
	for _, row := range s.rows {
		topic, ok := row[models.FieldTopic].(string)
		if !ok || topic == "" {
			continue
		}
		counts[topic]++
		if c, ok := asFloat(row[models.FieldTopicConfidence]); ok {
			confSums[topic] += c
			confCounts[topic]++
		}
	}
	if len(counts) == 0 {
		return "Keine Topic-Daten verfügbar."
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Topic-Verteilung (%d Einträge):", total))
	for _, entry := range byCountDesc(counts) {
		if confCounts[entry.key] > 0 {
			avg := confSums[entry.key] / float64(confCounts[entry.key])
			lines = append(lines, fmt.Sprintf("• %s: %d (%.1f%%, Ø Confidence: %.2f)", entry.key, entry.count, pct(entry.count, total), avg))
		} else {
			lines = append(lines, fmt.Sprintf("• %s: %d (%.1f%%)", entry.key, entry.count, pct(entry.count, total)))
		}
	}
	return strings.Join(lines, "\n")
}

// DateRange reports the covered time span and warns when fewer than 90%
// of the days in the span actually carry entries.
func (s *Snapshot) DateRange() string {
	var (
		times []time.Time
		days  = map[string]bool{}
		count int
	)
	for _, row := range s.rows {
		raw, ok := row[models.FieldDateStr].(string)
		if !ok || raw == "" {
			continue
		}
		count++
		if t, err := parseFlexibleDate(raw); err == nil {
			times = append(times, t)
			days[t.Format("2006-01-02")] = true
		}
	}
	if count == 0 {
		return "Keine Datumsdaten verfügbar."
	}
	if len(times) == 0 {
		return "Keine gültigen Datumsdaten verfügbar."
	}

	minT, maxT := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(minT) {
			minT = t
		}
		if t.After(maxT) {
			maxT = t
		}
	}

	span := int(maxT.Sub(minT).Hours()/24) + 1
	result := fmt.Sprintf("Zeitraum: %s bis %s (%d Tage Spanne, %d Einträge)",
		minT.Format("2006-01-02"), maxT.Format("2006-01-02"), span, count)

	coverage := float64(len(days)) / float64(span) * 100
	if coverage < coverageWarnBelow {
		result += fmt.Sprintf("\n⚠️ Achtung: Nicht alle Tage haben Daten! Nur %d von %d Tagen haben Einträge (%.0f%% Abdeckung).",
			len(days), span, coverage)
	}
	return result
}

// VerbatimStatistics reports text length in tokens, with a
// short/medium/long distribution.
func (s *Snapshot) VerbatimStatistics() string {
	tokens := s.numbers(models.FieldTokenCount)
	if len(tokens) == 0 {
		return "Keine Token-Count-Daten verfügbar."
	}

	var short, medium, long int
	for _, v := range tokens {
		switch {
		case v <= shortTokenMax:
			short++
		case v <= mediumTokenMax:
			medium++
		default:
			long++
		}
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Verbatim-Statistiken (%d Texte):", len(tokens)))
	lines = append(lines, fmt.Sprintf("• Durchschnittliche Länge: %.1f Token", mean(tokens)))
	lines = append(lines, fmt.Sprintf("• Median: %.0f Token", median(tokens)))
	lines = append(lines, fmt.Sprintf("• Kürzester Text: %.0f Token", minOf(tokens)))
	lines = append(lines, fmt.Sprintf("• Längster Text: %.0f Token", maxOf(tokens)))
	lines = append(lines, "• Längenverteilung:")
	lines = append(lines, fmt.Sprintf("  - Kurze Texte (≤20 Token): %d (%.1f%%)", short, pct(short, len(tokens))))
	lines = append(lines, fmt.Sprintf("  - Mittlere Texte (21-100 Token): %d (%.1f%%)", medium, pct(medium, len(tokens))))
	lines = append(lines, fmt.Sprintf("  - Lange Texte (>100 Token): %d (%.1f%%)", long, pct(long, len(tokens))))
	return strings.Join(lines, "\n")
}

// DatasetOverview is the compact top-level summary.
func (s *Snapshot) DatasetOverview() string {
	var lines []string
	lines = append(lines, "📊 DATENSATZ-ÜBERSICHT")
	lines = append(lines, fmt.Sprintf("Gesamt: %d Einträge", s.total))
	lines = append(lines, "")

	if len(s.markets) > 0 {
		lines = append(lines, fmt.Sprintf("🏢 Märkte: %d (%s)", len(s.markets), strings.Join(s.markets, ", ")))
	}
	if scores := s.numbers(models.FieldNPS); len(scores) > 0 {
		lines = append(lines, fmt.Sprintf("⭐ NPS-Durchschnitt: %.2f", mean(scores)))
	}

	labels := map[string]int{}
	for _, row := range s.rows {
		if v, ok := row[models.FieldSentimentLabel].(string); ok && v != "" {
			labels[v]++
		}
	}
	if len(labels) > 0 {
		lines = append(lines, fmt.Sprintf("😊 Häufigstes Sentiment: %s", byCountDesc(labels)[0].key))
	}

	var times []time.Time
	for _, row := range s.rows {
		if raw, ok := row[models.FieldDateStr].(string); ok && raw != "" {
			if t, err := parseFlexibleDate(raw); err == nil {
				times = append(times, t)
			}
		}
	}
	if len(times) > 0 {
		minT, maxT := times[0], times[0]
		for _, t := range times[1:] {
			if t.Before(minT) {
				minT = t
			}
			if t.After(maxT) {
				maxT = t
			}
		}
		lines = append(lines, fmt.Sprintf("📅 Zeitraum: %s bis %s", minT.Format("2006-01-02"), maxT.Format("2006-01-02")))
	}

	lines = append(lines, "")
	lines = append(lines, "💡 Verwende die spezifischen Tools für detaillierte Analysen.")
	return strings.Join(lines, "\n")
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Snapshot) uniqueStrings(field string, dropUnknown bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range s.rows {
		v, ok := row[field].(string)
		if !ok || v == "" || seen[v] {
			continue
		}
		if dropUnknown && v == models.Unknown {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) numbers(field string) []float64 {
	var out []float64
	for _, row := range s.rows {
		if v, ok := asFloat(row[field]); ok {
			out = append(out, v)
		}
	}
	return out
}

type countEntry struct {
	key   string
	count int
}

// byCountDesc orders a distribution by descending count, ties broken
// alphabetically so output is stable.
func byCountDesc(counts map[string]int) []countEntry {
	out := make([]countEntry, 0, len(counts))
	for k, c := range counts {
		out = append(out, countEntry{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func parseFlexibleDate(raw string) (time.Time, error) {
	if t, err := corpus.ParseDate(raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(vs []float64) float64 {
	out := math.Inf(1)
	for _, v := range vs {
		if v < out {
			out = v
		}
	}
	return out
}

func maxOf(vs []float64) float64 {
	out := math.Inf(-1)
	for _, v := range vs {
		if v > out {
			out = v
		}
	}
	return out
}

func pct(part, total int) float64 {
	return float64(part) / float64(total) * 100
}
