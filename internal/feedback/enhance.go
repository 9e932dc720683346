// Package feedback loads raw survey exports and enriches them with the
// derived fields the index filters on: NPS category, sentiment, topic,
// token count and the region/country split of the market code.
package feedback

import (
	"strings"
	"unicode/utf8"

	"github.com/voicelab/echolot/pkg/models"
)

// Enhance fills in every derived field of a record in place: NPS
// category, token count, sentiment label and score, topic and topic
// confidence, and the region/country split. Records pass through the
// full pipeline regardless of individual field failures; a bad market
// code just leaves region and country at UNKNOWN.
func Enhance(rec *models.FeedbackRecord) {
	rec.NPSCategory = models.CategorizeNPS(rec.NPS)
	rec.TokenCount = EstimateTokens(rec.Verbatim)
	rec.SentimentLabel, rec.SentimentScore = ScoreSentiment(rec.Verbatim)
	rec.Topic, rec.TopicConfidence = ClassifyTopic(rec.Verbatim)
	rec.Region, rec.Country = SplitMarket(rec.Market)
}

// EnhanceAll runs the pipeline over a whole dataset.
func EnhanceAll(recs []*models.FeedbackRecord) {
	for _, rec := range recs {
		Enhance(rec)
	}
}

// SplitMarket splits a market code of the form REGION-COUNTRY into its
// parts. Codes without exactly one dash produce UNKNOWN for both.
func SplitMarket(market string) (region, country string) {
	parts := strings.Split(strings.TrimSpace(market), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return models.Unknown, models.Unknown
	}
	return parts[0], parts[1]
}

// EstimateTokens approximates the token count of a text. One token per
// four characters tracks the cl100k tokenizers closely enough for the
// length statistics this estimate feeds.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	tokens := n / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
