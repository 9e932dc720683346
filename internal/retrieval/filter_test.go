package retrieval

import (
	"strings"
	"testing"
	"time"

	"github.com/voicelab/echolot/internal/index"
	"github.com/voicelab/echolot/pkg/models"
)

func TestFilter_CompileEmpty(t *testing.T) {
	var nilFilter *Filter
	if where, err := nilFilter.Compile(); err != nil || where != nil {
		t.Errorf("nil filter: Compile() = (%v, %v), want (nil, nil)", where, err)
	}
	if where, err := (&Filter{}).Compile(); err != nil || where != nil {
		t.Errorf("zero filter: Compile() = (%v, %v), want (nil, nil)", where, err)
	}
}

func TestFilter_CompileEquality(t *testing.T) {
	f := &Filter{
		Market:      "C1-DE",
		Region:      "C1",
		Country:     "DE",
		NPSCategory: "Detractor",
		Topic:       "Lieferproblem",
	}

	where, err := f.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(where.Clauses) != 5 {
		t.Fatalf("Compile() produced %d clauses, want 5", len(where.Clauses))
	}
	for _, c := range where.Clauses {
		if c.Op != index.OpEq {
			t.Errorf("clause %s has op %v, want $eq", c.Field, c.Op)
		}
	}
}

func TestFilter_SentimentLowercased(t *testing.T) {
	where, err := (&Filter{Sentiment: "NEGATIV"}).Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got := where.Clauses[0].Value; got != "negativ" {
		t.Errorf("sentiment clause value = %v, want lowercase negativ", got)
	}
}

func TestFilter_DateRange(t *testing.T) {
	where, err := (&Filter{DateFrom: "2023-01-01", DateTo: "2023-12-31"}).Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(where.Clauses) != 2 {
		t.Fatalf("Compile() produced %d clauses, want 2", len(where.Clauses))
	}

	from := where.Clauses[0]
	if from.Field != models.FieldDate || from.Op != index.OpGte {
		t.Errorf("date_from clause = %+v", from)
	}
	wantFrom := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	if from.Value != wantFrom {
		t.Errorf("date_from value = %v, want %d", from.Value, wantFrom)
	}

	to := where.Clauses[1]
	if to.Field != models.FieldDate || to.Op != index.OpLte {
		t.Errorf("date_to clause = %+v", to)
	}
	// Inclusive of the whole end day.
	wantTo := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC).Unix()
	if to.Value != wantTo {
		t.Errorf("date_to value = %v, want %d", to.Value, wantTo)
	}
}

// A document timestamped mid-day on the end date must satisfy the
// compiled range.
func TestFilter_DateToCoversWholeDay(t *testing.T) {
	where, err := (&Filter{DateTo: "2023-06-15"}).Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	noon := time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC).Unix()
	if !where.Matches(map[string]any{models.FieldDate: noon}) {
		t.Error("document at noon on date_to does not match")
	}
	nextDay := time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC).Unix()
	if where.Matches(map[string]any{models.FieldDate: nextDay}) {
		t.Error("document on the day after date_to matches")
	}
}

func TestFilter_MalformedDates(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		substr string
	}{
		{"bad date_from", Filter{DateFrom: "01.01.2023"}, "date_from"},
		{"bad date_to", Filter{DateTo: "2023/12/31"}, "date_to"},
		{"date_from with time", Filter{DateFrom: "2023-01-01T00:00:00"}, "date_from"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Compile()
			if err == nil {
				t.Fatal("Compile() succeeded with malformed date")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not name %s", err, tt.substr)
			}
			if !strings.Contains(err.Error(), "YYYY-MM-DD") {
				t.Errorf("error %q does not state the expected format", err)
			}
		})
	}
}

func TestFilter_Active(t *testing.T) {
	f := &Filter{Market: "C1-DE", Sentiment: "negativ", DateFrom: "2023-01-01"}

	got := f.Active()
	want := []string{"Market=C1-DE", "Sentiment=negativ", "From=2023-01-01"}
	if len(got) != len(want) {
		t.Fatalf("Active() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Active()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if parts := (&Filter{}).Active(); len(parts) != 0 {
		t.Errorf("empty filter Active() = %v, want none", parts)
	}
}
