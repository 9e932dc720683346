package feedback

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/voicelab/echolot/pkg/models"
)

// LoadReport summarizes one CSV load: how many data rows the file had,
// how many became records and which rows were dropped with what reason.
type LoadReport struct {
	Rows    int
	Loaded  int
	Skipped []RowSkip
}

// RowSkip records one dropped CSV row. Row is the zero-based data row
// number, matching FeedbackRecord.Row for loaded rows.
type RowSkip struct {
	Row    int
	Reason string
}

// requiredColumns must all appear in the CSV header, matched
// case-insensitively.
var requiredColumns = []string{"NPS", "Market", "Date", "Verbatim"}

// LoadCSV reads a feedback export from disk. See Load.
func LoadCSV(path string) ([]*models.FeedbackRecord, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open feedback file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a feedback export with the columns NPS, Market, Date and
// Verbatim. Malformed rows (non-numeric NPS, empty verbatim, wrong field
// count) are collected in the report and skipped; only an unreadable
// header is fatal. Row numbers keep their gaps so chunk IDs stay stable
// when bad rows disappear from a re-export.
func Load(r io.Reader) ([]*models.FeedbackRecord, *LoadReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var records []*models.FeedbackRecord
	report := &LoadReport{}
	for row := 0; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Rows++
			report.Skipped = append(report.Skipped, RowSkip{Row: row, Reason: fmt.Sprintf("unparseable row: %v", err)})
			continue
		}
		report.Rows++

		rec, reason := parseRow(fields, cols, row)
		if rec == nil {
			report.Skipped = append(report.Skipped, RowSkip{Row: row, Reason: reason})
			continue
		}
		records = append(records, rec)
		report.Loaded++
	}

	return records, report, nil
}

// mapHeader resolves the required column positions, tolerating a UTF-8
// BOM on the first cell and arbitrary column order.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(requiredColumns))
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF")
		for _, want := range requiredColumns {
			if strings.EqualFold(name, want) {
				cols[want] = i
			}
		}
	}
	for _, want := range requiredColumns {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("CSV header is missing required column %q", want)
		}
	}
	return cols, nil
}

func parseRow(fields []string, cols map[string]int, row int) (*models.FeedbackRecord, string) {
	maxCol := 0
	for _, i := range cols {
		if i > maxCol {
			maxCol = i
		}
	}
	if len(fields) <= maxCol {
		return nil, fmt.Sprintf("expected at least %d fields, got %d", maxCol+1, len(fields))
	}

	verbatim := strings.TrimSpace(fields[cols["Verbatim"]])
	if verbatim == "" {
		return nil, "empty verbatim"
	}

	npsRaw := strings.TrimSpace(fields[cols["NPS"]])
	nps, err := strconv.ParseFloat(npsRaw, 64)
	if err != nil {
		return nil, fmt.Sprintf("non-numeric NPS value %q", npsRaw)
	}

	market := strings.TrimSpace(fields[cols["Market"]])
	if market == "" {
		return nil, "empty market"
	}

	return &models.FeedbackRecord{
		Row:      row,
		NPS:      nps,
		Market:   market,
		Date:     normalizeDate(fields[cols["Date"]]),
		Verbatim: verbatim,
	}, ""
}

// normalizeDate converts the export's timestamp formats to RFC 3339 UTC.
// Values in an unrecognized format are kept verbatim; the metadata
// normalizer downgrades them to a display-only string.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}
