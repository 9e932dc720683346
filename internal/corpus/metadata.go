package corpus

import (
	"fmt"
	"strings"
	"time"

	"github.com/voicelab/echolot/pkg/models"
)

// previewLen is the number of leading runes of the verbatim kept in the
// metadata for debugging and result display.
const previewLen = 100

// dateLayouts are the accepted survey timestamp formats, tried in order.
// Zone-less values are interpreted as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize builds the flat metadata map for one chunk of a record. The
// required fields (row_id, nps, market, chunk_index, total_chunks) are
// always present; optional fields are included only when the record
// carries them. An unparseable date degrades to storing date_str alone
// rather than failing the record.
func Normalize(rec *models.FeedbackRecord, chunkIndex, totalChunks int) map[string]any {
	meta := map[string]any{
		models.FieldRowID:       rec.Row,
		models.FieldNPS:         int(rec.NPS),
		models.FieldMarket:      strings.TrimSpace(rec.Market),
		models.FieldChunkIndex:  chunkIndex,
		models.FieldTotalChunks: totalChunks,
	}

	if rec.Date != "" {
		if t, err := ParseDate(rec.Date); err == nil {
			meta[models.FieldDate] = t.Unix()
			meta[models.FieldDateStr] = rec.Date
		} else {
			meta[models.FieldDateStr] = rec.Date
		}
	}

	if rec.NPSCategory != "" {
		meta[models.FieldNPSCategory] = rec.NPSCategory
	}
	if rec.SentimentLabel != "" {
		meta[models.FieldSentimentLabel] = rec.SentimentLabel
		meta[models.FieldSentimentScore] = rec.SentimentScore
	}
	if rec.TokenCount > 0 {
		meta[models.FieldTokenCount] = rec.TokenCount
	}
	if rec.Topic != "" {
		meta[models.FieldTopic] = rec.Topic
		meta[models.FieldTopicConfidence] = rec.TopicConfidence
	}
	if rec.Region != "" {
		meta[models.FieldRegion] = rec.Region
	}
	if rec.Country != "" {
		meta[models.FieldCountry] = rec.Country
	}

	meta[models.FieldPreview] = preview(rec.Verbatim)

	return Sanitize(meta)
}

// Sanitize coerces metadata values to the storable scalar types. Nil
// values are dropped; slices, maps and anything else non-scalar are
// stringified rather than rejected, so a single odd value never fails
// the record.
func Sanitize(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if v == nil {
			continue
		}
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// ParseDate parses a survey timestamp in any accepted layout.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

func preview(verbatim string) string {
	r := []rune(verbatim)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}
