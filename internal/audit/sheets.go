package audit

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"google.golang.org/api/sheets/v4"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// RunRow is the one-line record kept for every completed run.
type RunRow struct {
	Timestamp     time.Time
	Mode          models.Mode
	RowID         string
	InputJSON     string
	ExtractedText string
	Output        string
	RawModel      string
}

// RunLog stores completed-run rows.
type RunLog interface {
	Record(ctx context.Context, row RunRow) error
}

type NopRunLog struct{}

func (NopRunLog) Record(context.Context, RunRow) error { return nil }

// Sheets appends run rows to a Google Sheets tab.
type Sheets struct {
	svc          *sheets.Service
	sheetID      string
	tab          string
	maxCellChars int
}

func NewSheets(svc *sheets.Service, sheetID, tab string, maxCellChars int) *Sheets {
	if tab == "" {
		tab = "Logs"
	}
	return &Sheets{svc: svc, sheetID: sheetID, tab: tab, maxCellChars: maxCellChars}
}

func (s *Sheets) Record(ctx context.Context, row RunRow) error {
	values := s.cells(row)
	_, err := s.svc.Spreadsheets.Values.Append(s.sheetID, s.tab+"!A:Z", &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append log row to sheet %s: %w", s.sheetID, err)
	}
	return nil
}

func (s *Sheets) cells(row RunRow) []interface{} {
	ts := row.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return []interface{}{
		ts.UTC().Format(time.RFC3339Nano),
		string(row.Mode),
		row.RowID,
		clipCell(row.InputJSON, s.maxCellChars),
		clipCell(row.ExtractedText, s.maxCellChars),
		clipCell(row.Output, s.maxCellChars),
		clipCell(row.RawModel, s.maxCellChars),
	}
}

// clipCell keeps a cell under the Sheets size limit, leaving room for the
// marker.
func clipCell(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := max(limit-60, 0)
	n := 0
	for i := range s {
		if n == keep {
			return s[:i] + "\n\n...[TRUNCATED]..."
		}
		n++
	}
	return s
}
