package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

type ExcelConfig struct {
	MaxRows           int
	MaxCols           int
	MaxTablesPerSheet int
	MaxChars          int
	GridMaxChars      int
	// GridMinSampledRows: the raw grid is dumped only when detected tables
	// sampled fewer rows than this.
	GridMinSampledRows int
	FormulaScanRows    int
	FormulaScanCols    int
	MaxFormulaLinks    int
	MaxImagesPerSheet  int
}

func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		MaxRows:            250,
		MaxCols:            40,
		MaxTablesPerSheet:  5,
		MaxChars:           180000,
		GridMaxChars:       70000,
		GridMinSampledRows: 20,
		FormulaScanRows:    300,
		FormulaScanCols:    50,
		MaxFormulaLinks:    120,
		MaxImagesPerSheet:  10,
	}
}

// ExcelExtractor turns a workbook into table samples, formula links and
// embedded image notes.
type ExcelExtractor struct {
	cfg    ExcelConfig
	images *ImageExtractor
	logger *slog.Logger
}

// NewExcelExtractor builds an extractor. images may be nil, in which case
// embedded pictures are only counted.
func NewExcelExtractor(cfg ExcelConfig, images *ImageExtractor, logger *slog.Logger) *ExcelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExtractor{cfg: cfg, images: images, logger: logger}
}

type embeddedImage struct {
	Cell    string `json:"cell"`
	Index   int    `json:"image_index"`
	Summary string `json:"summary"`
}

type sheetReport struct {
	Name         string               `json:"sheet"`
	MaxRow       int                  `json:"max_row"`
	MaxCol       int                  `json:"max_col"`
	Tables       []models.TableRegion `json:"tables"`
	FormulaLinks []models.FormulaLink `json:"formula_links"`
	Images       []embeddedImage      `json:"embedded_images"`
	Error        string               `json:"error,omitempty"`
}

func (e *ExcelExtractor) Extract(ctx context.Context, url string, data []byte) (models.AttachmentFinding, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.AttachmentFinding{}, fmt.Errorf("%w: failed to open workbook: %v", models.ErrParse, err)
	}
	defer f.Close()

	logCtx := e.logger.With("url", url)
	budget := NewBudget(e.cfg.MaxChars)
	var reports []sheetReport
	var tableCount, linkCount, imageCount int

	for _, sheet := range f.GetSheetList() {
		if ctx.Err() != nil {
			break
		}
		report, matrix := e.readSheet(ctx, f, sheet, url)
		if report.Error != "" {
			logCtx.Warn("Failed to read sheet.", "sheet", sheet, "error", report.Error)
		}
		reports = append(reports, report)
		tableCount += len(report.Tables)
		linkCount += len(report.FormulaLinks)
		imageCount += len(report.Images)

		e.writeSheet(budget, report, matrix)
	}

	summary := fmt.Sprintf("Excel workbook analyzed: %d sheet(s), %d table(s) detected, %d formula link(s), %d embedded image(s).",
		len(reports), tableCount, linkCount, imageCount)
	return models.AttachmentFinding{
		URL:           url,
		Kind:          models.KindExcel,
		Summary:       summary,
		Data:          map[string]any{"sheets": reports},
		ExtractedText: strings.TrimSpace(budget.String()),
	}, nil
}

func (e *ExcelExtractor) readSheet(ctx context.Context, f *excelize.File, sheet, url string) (sheetReport, [][]string) {
	report := sheetReport{Name: sheet}
	rows, err := f.GetRows(sheet)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}
	report.MaxRow = len(rows)
	for _, row := range rows {
		report.MaxCol = max(report.MaxCol, len(row))
	}

	matrix := buildMatrix(rows, e.cfg.MaxRows, e.cfg.MaxCols)
	report.Tables = DetectTables(matrix, e.cfg.MaxTablesPerSheet)

	// Formula cells without a cached value do not show up in GetRows, so the
	// scan covers the declared dimension as well.
	scanRows, scanCols := max(report.MaxRow, 1), e.cfg.FormulaScanCols
	if dim, err := f.GetSheetDimension(sheet); err == nil {
		if _, last, ok := strings.Cut(dim, ":"); ok {
			if c, r, err := excelize.CellNameToCoordinates(last); err == nil {
				scanRows = max(scanRows, r)
				scanCols = min(max(report.MaxCol, c), e.cfg.FormulaScanCols)
			}
		}
	}
	report.FormulaLinks = e.formulaLinks(f, sheet, scanRows, scanCols)
	report.Images = e.embeddedImages(ctx, f, sheet, url)
	return report, matrix
}

func (e *ExcelExtractor) formulaLinks(f *excelize.File, sheet string, maxRow, maxCol int) []models.FormulaLink {
	c := formulaCollector{limit: e.cfg.MaxFormulaLinks}
	for r := 1; r <= min(maxRow, e.cfg.FormulaScanRows); r++ {
		for col := 1; col <= min(maxCol, e.cfg.FormulaScanCols); col++ {
			cell, err := excelize.CoordinatesToCellName(col, r)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(sheet, cell)
			if err != nil || formula == "" {
				continue
			}
			if c.add(sheet+"!"+cell, formula) {
				return c.links
			}
		}
	}
	return c.links
}

func (e *ExcelExtractor) embeddedImages(ctx context.Context, f *excelize.File, sheet, url string) []embeddedImage {
	cells, err := f.GetPictureCells(sheet)
	if err != nil || len(cells) == 0 {
		return nil
	}
	var out []embeddedImage
	for _, cell := range cells {
		pics, err := f.GetPictures(sheet, cell)
		if err != nil {
			continue
		}
		for _, pic := range pics {
			if len(out) >= e.cfg.MaxImagesPerSheet {
				return out
			}
			img := embeddedImage{Cell: cell, Index: len(out) + 1}
			img.Summary = e.describeImage(ctx, fmt.Sprintf("%s#sheet=%s&img=%d", url, sheet, img.Index), pic.File)
			out = append(out, img)
		}
	}
	return out
}

func (e *ExcelExtractor) describeImage(ctx context.Context, ref string, data []byte) string {
	if e.images == nil {
		return "(embedded image not analyzed: image extraction not configured)"
	}
	res := e.images.Analyze(ctx, data)
	switch {
	case res.Vision != "":
		return Truncate(res.Vision, 1200)
	case res.OCR != "":
		return Truncate(res.OCR, 1200)
	case res.Err != nil:
		e.logger.Debug("Embedded image analysis failed.", "ref", ref, "error", res.Err)
		return "(embedded image analysis failed: " + res.Err.Error() + ")"
	}
	return "(no OCR/vision output for embedded image)"
}

func (e *ExcelExtractor) writeSheet(b *Budget, report sheetReport, matrix [][]string) {
	b.Add(fmt.Sprintf("## EXCEL SHEET: %s\n", report.Name))
	if report.Error != "" {
		b.Add(fmt.Sprintf("(sheet could not be read: %s)\n\n", report.Error))
		return
	}

	sampled := 0
	for i, t := range report.Tables {
		sampled += t.RowCountSampled
		var sb strings.Builder
		fmt.Fprintf(&sb, "\n[TABLE %d] start_row=%d end_row=%d\n", i+1, t.StartRow, t.EndRow)
		sb.WriteString(strings.Join(t.Header, "\t"))
		sb.WriteString("\n")
		for _, row := range t.RowsSample {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		b.Add(sb.String())
	}

	if sampled < e.cfg.GridMinSampledRows {
		if grid := gridTSV(matrix, min(b.Remaining(), e.cfg.GridMaxChars)); grid != "" {
			b.Add("\n[SHEET_GRID_TSV]\n" + grid + "\n")
		}
	}

	for _, img := range report.Images {
		b.Add(fmt.Sprintf("\n[EMBEDDED_IMAGE %d] cell=%s\n%s\n", img.Index, img.Cell, img.Summary))
	}
	b.Add("\n")
}
