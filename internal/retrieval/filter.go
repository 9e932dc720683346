package retrieval

import (
	"fmt"
	"strings"
	"time"

	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
)

// dateLayout is the only accepted form for date_from/date_to filter
// values. Anything else is a compile error, not a silent skip.
const dateLayout = "2006-01-02"

// endOfDay makes date_to inclusive of its whole calendar day.
const endOfDay = 86399

// Filter holds the caller's optional metadata constraints. An empty
// string means the field is not filtered; all present fields must hold
// at once.
type Filter struct {
	// Market matches the full market code, e.g. "C1-DE".
	Market string `json:"market,omitempty"`

	// Region matches the business region, e.g. "C1".
	Region string `json:"region,omitempty"`

	// Country matches the ISO 3166-1 alpha-2 code, e.g. "DE".
	Country string `json:"country,omitempty"`

	// Sentiment matches the sentiment label, compared case-insensitively
	// against the stored lowercase labels.
	Sentiment string `json:"sentiment,omitempty"`

	// NPSCategory matches "Detractor", "Passive" or "Promoter".
	NPSCategory string `json:"nps_category,omitempty"`

	// Topic matches the topic category, e.g. "Lieferproblem".
	Topic string `json:"topic,omitempty"`

	// DateFrom is the inclusive lower date bound in YYYY-MM-DD form.
	DateFrom string `json:"date_from,omitempty"`

	// DateTo is the inclusive upper date bound in YYYY-MM-DD form. The
	// whole calendar day is included.
	DateTo string `json:"date_to,omitempty"`
}

// IsZero reports whether no field is set.
func (f *Filter) IsZero() bool {
	return f == nil || *f == Filter{}
}

// Compile turns the filter into a conjunctive index filter. A filter
// with no fields set compiles to nil, which the index treats as "whole
// corpus". Malformed date bounds are an error surfaced to the caller.
func (f *Filter) Compile() (*index.Where, error) {
	if f == nil {
		return nil, nil
	}

	var clauses []index.Clause

	if f.Market != "" {
		clauses = append(clauses, index.Eq(models.FieldMarket, f.Market))
	}
	if f.Region != "" {
		clauses = append(clauses, index.Eq(models.FieldRegion, f.Region))
	}
	if f.Country != "" {
		clauses = append(clauses, index.Eq(models.FieldCountry, f.Country))
	}
	if f.Sentiment != "" {
		clauses = append(clauses, index.Eq(models.FieldSentimentLabel, strings.ToLower(f.Sentiment)))
	}
	if f.NPSCategory != "" {
		clauses = append(clauses, index.Eq(models.FieldNPSCategory, f.NPSCategory))
	}
	if f.Topic != "" {
		clauses = append(clauses, index.Eq(models.FieldTopic, f.Topic))
	}

	if f.DateFrom != "" {
		t, err := time.ParseInLocation(dateLayout, f.DateFrom, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from format %q, expected YYYY-MM-DD (e.g., '2023-01-01')", f.DateFrom)
		}
		clauses = append(clauses, index.Gte(models.FieldDate, t.Unix()))
	}
	if f.DateTo != "" {
		t, err := time.ParseInLocation(dateLayout, f.DateTo, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid date_to format %q, expected YYYY-MM-DD (e.g., '2023-12-31')", f.DateTo)
		}
		clauses = append(clauses, index.Lte(models.FieldDate, t.Unix()+endOfDay))
	}

	return index.And(clauses...), nil
}

// Active lists the set fields as "Name=value" pairs for echoing back in
// no-result messages.
func (f *Filter) Active() []string {
	if f == nil {
		return nil
	}
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("Market", f.Market)
	add("Region", f.Region)
	add("Country", f.Country)
	add("Sentiment", f.Sentiment)
	add("NPS", f.NPSCategory)
	add("Topic", f.Topic)
	add("From", f.DateFrom)
	add("To", f.DateTo)
	return parts
}
