package models

// Kind is the content class of an attachment.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindExcel   Kind = "excel"
	KindImage   Kind = "image"
	KindFolder  Kind = "folder"
	KindUnknown Kind = "unknown"
)

// AttachmentFinding is the result of analyzing one attachment URL. Exactly one
// finding exists per cleaned, deduplicated input URL.
type AttachmentFinding struct {
	URL           string         `json:"url"`
	Kind          Kind           `json:"kind"`
	Summary       string         `json:"summary"`
	Data          map[string]any `json:"data"`
	ExtractedText string         `json:"extracted_text"`
}

// FailedFinding builds the finding recorded when fetch or parse fails.
func FailedFinding(url string, err error) AttachmentFinding {
	return AttachmentFinding{
		URL:     url,
		Kind:    KindUnknown,
		Summary: "Could not analyze attachment: " + err.Error(),
		Data:    map[string]any{"error": err.Error()},
	}
}

// TableRegion is a detected header+body block inside a spreadsheet sheet.
// Rows are 1-based.
type TableRegion struct {
	StartRow        int        `json:"start_row"`
	EndRow          int        `json:"end_row"`
	Header          []string   `json:"header"`
	RowsSample      [][]string `json:"rows_sample"`
	RowCount        int        `json:"row_count"`
	RowCountSampled int        `json:"row_count_sampled"`
}

// FormulaLink is a cross-sheet reference found inside a cell formula.
type FormulaLink struct {
	FromCell string `json:"from_cell"`
	To       string `json:"to"`
}

// WebFinding is one web search result.
type WebFinding struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
