package index

import (
	"testing"

	"github.com/voicelab/echolot/pkg/models"
)

func TestWhere_Matches(t *testing.T) {
	meta := map[string]any{
		models.FieldMarket:         "C1-DE",
		models.FieldNPS:            6,
		models.FieldSentimentLabel: "negativ",
		models.FieldDate:           int64(1704067200),
		models.FieldSentimentScore: -0.72,
	}

	tests := []struct {
		name  string
		where *Where
		want  bool
	}{
		{"nil filter matches everything", nil, true},
		{"equality on string", And(Eq(models.FieldMarket, "C1-DE")), true},
		{"equality mismatch", And(Eq(models.FieldMarket, "C5-US")), false},
		{"equality int against stored int", And(Eq(models.FieldNPS, 6)), true},
		{"equality float against stored int", And(Eq(models.FieldNPS, 6.0)), true},
		{"range on unix date", And(Gte(models.FieldDate, int64(1700000000)), Lte(models.FieldDate, int64(1710000000))), true},
		{"range excludes", And(Gte(models.FieldDate, int64(1710000000))), false},
		{"missing field never matches", And(Eq(models.FieldTopic, "Service")), false},
		{"range op on string field fails", And(Gte(models.FieldMarket, "A")), false},
		{"conjunction requires all clauses", And(Eq(models.FieldMarket, "C1-DE"), Eq(models.FieldSentimentLabel, "positiv")), false},
		{"conjunction holds", And(Eq(models.FieldMarket, "C1-DE"), Eq(models.FieldSentimentLabel, "negativ"), Lte(models.FieldNPS, 6)), true},
		{"float comparison", And(Lte(models.FieldSentimentScore, -0.5)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.where.Matches(meta); got != tt.want {
				t.Errorf("Matches() = %v, want %v (filter: %s)", got, tt.want, tt.where)
			}
		})
	}
}

func TestAnd_EmptyIsNil(t *testing.T) {
	if w := And(); w != nil {
		t.Errorf("And() = %v, want nil", w)
	}
}

func TestWhere_String(t *testing.T) {
	w := And(Eq(models.FieldMarket, "C1-DE"), Lte(models.FieldNPS, 6))
	got := w.String()
	want := "market = C1-DE AND nps <= 6"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	var nilWhere *Where
	if nilWhere.String() != "<none>" {
		t.Errorf("nil String() = %q, want %q", nilWhere.String(), "<none>")
	}
}
