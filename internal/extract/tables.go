package extract

import (
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

const (
	headerMaxCellChars = 30
	tableHeaderMaxCols = 40
	tableSampleRows    = 200
)

// DetectTables scans a sheet matrix top to bottom for header-led blocks.
//
// A row is a header candidate when it has at least two non-empty cells and
// at least 60% of them are short. The block then absorbs every following row
// up to the first completely empty row, and scanning resumes after that
// separator. The same matrix always yields the same regions.
func DetectTables(matrix [][]string, maxTables int) []models.TableRegion {
	var tables []models.TableRegion
	r := 0
	for r < len(matrix) && len(tables) < maxTables {
		if !looksLikeHeader(matrix[r]) {
			r++
			continue
		}
		header := trimTrailingEmpty(matrix[r])

		var body [][]string
		end := r + 1
		for end < len(matrix) && countNonEmpty(matrix[end]) > 0 {
			body = append(body, trimTrailingEmpty(matrix[end]))
			end++
		}

		if len(header) > 0 && len(body) > 0 {
			sampled := min(len(body), tableSampleRows)
			tables = append(tables, models.TableRegion{
				StartRow:        r + 1,
				EndRow:          end,
				Header:          header[:min(len(header), tableHeaderMaxCols)],
				RowsSample:      body[:sampled],
				RowCount:        len(body),
				RowCountSampled: sampled,
			})
		}
		r = end + 1
	}
	return tables
}

func looksLikeHeader(row []string) bool {
	n, short := 0, 0
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n++
		if runeLen(c) <= headerMaxCellChars {
			short++
		}
	}
	return n >= 2 && short*10 >= n*6
}

func countNonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	out := make([]string, end)
	copy(out, row[:end])
	return out
}

// buildMatrix caps rows and columns and pads every row to the same width.
func buildMatrix(rows [][]string, maxRows, maxCols int) [][]string {
	rows = rows[:min(len(rows), maxRows)]
	width := 0
	for _, row := range rows {
		width = max(width, min(len(row), maxCols))
	}
	matrix := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, width)
		for j := 0; j < width && j < len(row); j++ {
			cells[j] = strings.TrimSpace(row[j])
		}
		matrix[i] = cells
	}
	return matrix
}

// gridTSV dumps the non-empty rows of a matrix as tab-separated text, clipped
// to limit code points.
func gridTSV(matrix [][]string, limit int) string {
	if limit <= 0 {
		return ""
	}
	var lines []string
	for _, row := range matrix {
		if countNonEmpty(row) == 0 {
			continue
		}
		lines = append(lines, strings.Join(trimTrailingEmpty(row), "\t"))
	}
	return Clip(strings.Join(lines, "\n"), limit)
}
