// Package models defines the core data types for Echolot.
package models

import "fmt"

// FeedbackRecord is one row of customer feedback from a survey export.
// The raw columns (NPS, Market, Date, Verbatim) come straight from the CSV;
// the remaining fields are filled in by the enrichment pipeline before the
// record is chunked and indexed.
type FeedbackRecord struct {
	// Row is the zero-based position of the record among the data rows of
	// the source file. Row numbers keep their gaps when malformed rows are
	// dropped, so document IDs stay stable across reloads.
	Row int `json:"row"`

	// NPS is the Net Promoter Score answer on the 0-10 scale. Some exports
	// carry decimal scores; the value is truncated when written to metadata.
	NPS float64 `json:"nps"`

	// Market is the market identifier in REGION-COUNTRY form, e.g. "C1-DE".
	Market string `json:"market"`

	// Region is the business region code split off the market, e.g. "C1".
	Region string `json:"region,omitempty"`

	// Country is the ISO 3166-1 alpha-2 code split off the market, e.g. "DE".
	Country string `json:"country,omitempty"`

	// Date is the survey timestamp, normalized to RFC 3339 UTC where the
	// source format allowed it. Unparseable values are kept verbatim so the
	// index can still store them as a display string.
	Date string `json:"date,omitempty"`

	// Verbatim is the free-text feedback.
	Verbatim string `json:"verbatim"`

	// NPSCategory buckets the score into Detractor, Passive or Promoter.
	NPSCategory string `json:"nps_category,omitempty"`

	// TokenCount is the token count of the verbatim.
	TokenCount int `json:"verbatim_token_count,omitempty"`

	// SentimentLabel is "positiv", "neutral" or "negativ".
	SentimentLabel string `json:"sentiment_label,omitempty"`

	// SentimentScore is the compound sentiment score in [-1, 1].
	SentimentScore float64 `json:"sentiment_score,omitempty"`

	// Topic is the keyword-matched topic category, e.g. "Lieferproblem".
	Topic string `json:"topic,omitempty"`

	// TopicConfidence is the topic match confidence in [0, 1].
	TopicConfidence float64 `json:"topic_confidence,omitempty"`
}

// NPS score categories.
const (
	NPSDetractor = "Detractor"
	NPSPassive   = "Passive"
	NPSPromoter  = "Promoter"
	NPSInvalid   = "Invalid"
)

// CategorizeNPS buckets a Net Promoter Score into its standard category.
// Scores outside the 0-10 scale (including fractional scores that fall
// between buckets) map to NPSInvalid.
func CategorizeNPS(score float64) string {
	switch {
	case score >= 0 && score <= 6:
		return NPSDetractor
	case score >= 7 && score <= 8:
		return NPSPassive
	case score >= 9 && score <= 10:
		return NPSPromoter
	default:
		return NPSInvalid
	}
}

// Sentiment labels produced by the enrichment pipeline. The lowercase German
// labels are what filters match against and what the snapshot reports.
const (
	SentimentPositive = "positiv"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negativ"
	SentimentUnknown  = "UNKNOWN"
)

// TopicOther is the fallback topic when no keyword category matches.
const TopicOther = "Sonstiges"

// Unknown marks a region or country that could not be split off the market
// code. Snapshot listings exclude it.
const Unknown = "UNKNOWN"

// Document is the unit of storage in the feedback index: one chunk of a
// verbatim together with its flattened metadata and embedding.
type Document struct {
	// ID uniquely identifies the chunk within a corpus, in the form
	// "doc_{row}_{chunk}". Rebuilding from the same source data yields the
	// same IDs.
	ID string `json:"id"`

	// Text is the chunk content that was embedded.
	Text string `json:"text"`

	// Metadata holds the flattened record fields. Values are restricted to
	// strings, integers, floats and booleans.
	Metadata map[string]any `json:"metadata"`

	// Embedding is the vector for semantic search. Nil on documents
	// returned from metadata-only fetches.
	Embedding []float32 `json:"-"`
}

// Match is a document returned from a similarity query.
type Match struct {
	Document

	// Distance is the cosine distance between the query and the document,
	// where 0 means identical direction. Similarity is 1 - Distance.
	Distance float64 `json:"distance"`
}

// Similarity returns the cosine similarity for this match.
func (m *Match) Similarity() float64 {
	return 1 - m.Distance
}

// DocumentID builds the deterministic chunk identifier for a source row.
func DocumentID(row, chunk int) string {
	return fmt.Sprintf("doc_%d_%d", row, chunk)
}

// Metadata field names stored on every indexed document. The filter
// compiler, the snapshot builder and the result formatter all address
// fields by these names, so they are the contract between the write and
// read paths.
const (
	FieldRowID           = "row_id"
	FieldNPS             = "nps"
	FieldNPSCategory     = "nps_category"
	FieldMarket          = "market"
	FieldRegion          = "region"
	FieldCountry         = "country"
	FieldSentimentLabel  = "sentiment_label"
	FieldSentimentScore  = "sentiment_score"
	FieldTopic           = "topic"
	FieldTopicConfidence = "topic_confidence"
	FieldDate            = "date"
	FieldDateStr         = "date_str"
	FieldTokenCount      = "verbatim_token_count"
	FieldPreview         = "verbatim_preview"
	FieldChunkIndex      = "chunk_index"
	FieldTotalChunks     = "total_chunks"
)
