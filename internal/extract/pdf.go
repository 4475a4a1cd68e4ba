package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Names of the stages a scanned PDF may run.
const (
	StageCloudOCR   = "cloud_ocr"
	StagePageImages = "page_images"
)

const (
	ModeText       = "text"
	ModeTextOCR    = "text+ocr"
	ModePageImages = "page_images"
)

type PDFConfig struct {
	MaxPages            int
	MinTextCharsPerPage int
	MaxChars            int
	PageTextChars       int
	PageOCRChars        int
	SamplePages         int
	SampleChars         int
	Excerpts            int
	ExcerptChars        int
	OCRAttempts         int
	ScannedStages       []string
}

func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		MaxPages:            60,
		MinTextCharsPerPage: 40,
		MaxChars:            140000,
		PageTextChars:       2200,
		PageOCRChars:        1800,
		SamplePages:         5,
		SampleChars:         1400,
		Excerpts:            3,
		ExcerptChars:        700,
		OCRAttempts:         2,
		ScannedStages:       []string{StageCloudOCR},
	}
}

// PDFExtractor reads selectable text and falls back to the configured scanned
// stages when a document looks like an image scan.
type PDFExtractor struct {
	cfg    PDFConfig
	ocr    OCRProcessor
	images *ImageExtractor
	logger *slog.Logger
}

// NewPDFExtractor builds an extractor. ocr and images may be nil; stages that
// need a missing collaborator are skipped.
func NewPDFExtractor(cfg PDFConfig, ocr OCRProcessor, images *ImageExtractor, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OCRAttempts <= 0 {
		cfg.OCRAttempts = 1
	}
	return &PDFExtractor{cfg: cfg, ocr: ocr, images: images, logger: logger}
}

type pageBlock struct {
	Text   string
	OCR    string
	Vision string
	Visual bool
}

type pdfAnalysis struct {
	pages       int
	avgChars    float64
	scannedLike bool
	mode        string
	ocrUsed     bool
	ocrError    string
	blocks      []pageBlock
}

func (e *PDFExtractor) Extract(ctx context.Context, url string, data []byte) (models.AttachmentFinding, error) {
	logCtx := e.logger.With("url", url)

	total, countErr := pageCount(data)
	texts, textErr := selectableText(data, e.cfg.MaxPages)
	if countErr != nil && textErr != nil {
		return models.AttachmentFinding{}, fmt.Errorf("%w: unreadable PDF: %v", models.ErrParse, errors.Join(countErr, textErr))
	}
	if countErr != nil {
		logCtx.Debug("pdfcpu could not count pages, using text reader count.", "error", countErr)
		total = len(texts)
	}
	n := min(total, e.cfg.MaxPages)
	for len(texts) < n {
		texts = append(texts, "")
	}
	texts = texts[:n]

	a := pdfAnalysis{pages: n, mode: ModeText}
	chars := 0
	for _, t := range texts {
		chars += runeLen(t)
	}
	a.avgChars = float64(chars) / float64(max(1, n))
	a.scannedLike = a.avgChars < float64(e.cfg.MinTextCharsPerPage)

	for _, t := range texts {
		a.blocks = append(a.blocks, pageBlock{Text: t})
	}
	if a.scannedLike {
		e.runScannedStages(ctx, logCtx, data, total, &a)
	}

	return models.AttachmentFinding{
		URL:           url,
		Kind:          models.KindPDF,
		Summary:       e.summarize(a),
		Data:          e.data(a),
		ExtractedText: e.assemble(a),
	}, nil
}

func (e *PDFExtractor) runScannedStages(ctx context.Context, logCtx *slog.Logger, data []byte, total int, a *pdfAnalysis) {
	var visual []pageBlock
	var stages []Stage
	for _, name := range e.cfg.ScannedStages {
		switch strings.TrimSpace(name) {
		case StageCloudOCR:
			stages = append(stages, Stage{Name: StageCloudOCR, Run: func(ctx context.Context) (StageResult, error) {
				return e.cloudOCR(ctx, data, total, a.pages)
			}})
		case StagePageImages:
			stages = append(stages, Stage{Name: StagePageImages, Run: func(ctx context.Context) (StageResult, error) {
				var res StageResult
				var err error
				visual, res, err = e.pageImages(ctx, data, a.pages)
				return res, err
			}})
		}
	}

	outcome := Chain{Format: "pdf", Stages: stages, Logger: logCtx}.Run(ctx)
	if err := outcome.LastError(); err != nil {
		a.ocrError = err.Error()
	}
	if outcome.Sufficient {
		a.scannedLike = false
		switch outcome.Stage {
		case StageCloudOCR:
			a.mode, a.ocrUsed = ModeTextOCR, true
			a.blocks = a.blocks[:0]
			for _, p := range outcome.Result.Pages {
				a.blocks = append(a.blocks, pageBlock{Text: p})
			}
		case StagePageImages:
			a.mode = ModePageImages
			a.blocks = visual
		}
		return
	}

	note := "Cloud OCR failed (or not configured) for scanned PDF. No text extracted."
	if a.ocrError != "" {
		note += " Last error: " + a.ocrError
	}
	logCtx.Warn("No scanned-PDF stage produced text.", "attempted", outcome.Attempted, "error", a.ocrError)
	a.blocks = []pageBlock{{Text: note}}
}

func (e *PDFExtractor) cloudOCR(ctx context.Context, data []byte, total, n int) (StageResult, error) {
	if e.ocr == nil {
		return StageResult{}, ErrStageSkipped
	}
	input := data
	if total > n {
		trimmed, err := trimPages(data, n)
		if err != nil {
			return StageResult{}, fmt.Errorf("failed to trim PDF to %d pages: %w", n, err)
		}
		input = trimmed
	}

	var pages []string
	var err error
	for attempt := 1; attempt <= e.cfg.OCRAttempts; attempt++ {
		pages, err = e.ocr.Process(ctx, input)
		if err == nil || ctx.Err() != nil {
			break
		}
		e.logger.Warn("Cloud OCR attempt failed.", "attempt", attempt, "error", err)
	}
	if err != nil {
		return StageResult{}, err
	}

	if len(pages) > 1 {
		pages = pages[:min(len(pages), n)]
	}
	res := StageResult{}
	for _, p := range pages {
		p = CleanText(p)
		res.Pages = append(res.Pages, p)
		if p != "" {
			res.Sufficient = true
		}
	}
	return res, nil
}

func (e *PDFExtractor) pageImages(ctx context.Context, data []byte, n int) ([]pageBlock, StageResult, error) {
	if e.images == nil {
		return nil, StageResult{}, ErrStageSkipped
	}
	byPage := map[int][]byte{}
	digest := func(img model.Image, _ bool, _ int) error {
		if _, seen := byPage[img.PageNr]; seen {
			return nil
		}
		b, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		byPage[img.PageNr] = b
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), []string{fmt.Sprintf("1-%d", n)}, digest, pdfcpuConfig()); err != nil {
		return nil, StageResult{}, fmt.Errorf("failed to extract page images: %w", err)
	}

	blocks := make([]pageBlock, n)
	var res StageResult
	for p := 1; p <= n; p++ {
		img, ok := byPage[p]
		if !ok {
			continue
		}
		t := e.images.Analyze(ctx, img)
		blocks[p-1] = pageBlock{OCR: t.OCR, Vision: t.Vision, Visual: true}
		res.Pages = append(res.Pages, t.OCR+t.Vision)
		if t.OCR != "" || t.Vision != "" {
			res.Sufficient = true
		}
	}
	return blocks, res, nil
}

func (e *PDFExtractor) assemble(a pdfAnalysis) string {
	b := NewBudget(e.cfg.MaxChars)
	b.Add(fmt.Sprintf("## PDF SUMMARY: pages=%d mode=%s", a.pages, a.mode))
	for i, blk := range a.blocks {
		var s string
		if blk.Visual {
			if blk.OCR == "" && blk.Vision == "" {
				continue
			}
			lines := []string{fmt.Sprintf("### PAGE %d [OCR+VISION]", i+1)}
			if blk.OCR != "" {
				lines = append(lines, "OCR:", Truncate(blk.OCR, e.cfg.PageOCRChars))
			}
			if blk.Vision != "" {
				lines = append(lines, "VISION:", Truncate(blk.Vision, e.cfg.PageOCRChars))
			}
			s = strings.Join(lines, "\n")
		} else {
			txt := strings.TrimSpace(blk.Text)
			if txt == "" {
				continue
			}
			s = fmt.Sprintf("### PAGE %d [TEXT]\n%s", i+1, Truncate(txt, e.cfg.PageTextChars))
		}
		if !b.Add("\n\n" + s) {
			break
		}
	}
	return b.String()
}

func (e *PDFExtractor) pageTexts(a pdfAnalysis) []string {
	out := make([]string, len(a.blocks))
	for i, blk := range a.blocks {
		if blk.Visual {
			out[i] = strings.TrimSpace(strings.Join([]string{blk.OCR, blk.Vision}, "\n"))
		} else {
			out[i] = blk.Text
		}
	}
	return out
}

func (e *PDFExtractor) summarize(a pdfAnalysis) string {
	var parts []string
	for _, t := range e.pageTexts(a) {
		if t == "" {
			continue
		}
		parts = append(parts, Truncate(t, e.cfg.ExcerptChars))
		if len(parts) == e.cfg.Excerpts {
			break
		}
	}
	ex := strings.TrimSpace(strings.Join(parts, "\n"))
	if ex == "" {
		ex = "(no excerpt)"
	}
	return fmt.Sprintf("PDF analyzed (%d page(s)). Mode: %s. ocr_used=%t.\nTop excerpts:\n%s", a.pages, a.mode, a.ocrUsed, ex)
}

func (e *PDFExtractor) data(a pdfAnalysis) map[string]any {
	type sample struct {
		Page int    `json:"page"`
		Text string `json:"text"`
	}
	var samples []sample
	for i, t := range e.pageTexts(a) {
		if i >= e.cfg.SamplePages {
			break
		}
		if t != "" {
			samples = append(samples, sample{Page: i + 1, Text: Truncate(t, e.cfg.SampleChars)})
		}
	}
	out := map[string]any{
		"pages":              a.pages,
		"mode":               a.mode,
		"scanned_like":       a.scannedLike,
		"avg_chars_per_page": a.avgChars,
		"ocr_used":           a.ocrUsed,
		"page_text_samples":  samples,
	}
	if a.ocrError != "" {
		out["ocr_error"] = a.ocrError
	}
	return out
}

func pdfcpuConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func pageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), pdfcpuConfig())
}

func trimPages(data []byte, n int) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, []string{fmt.Sprintf("1-%d", n)}, pdfcpuConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// selectableText reads the text layer of up to maxPages pages. The reader
// panics on some malformed streams, so panics become errors.
func selectableText(data []byte, maxPages int) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := min(r.NumPage(), maxPages)
	texts = make([]string, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, perr := p.GetPlainText(nil)
		if perr != nil {
			continue
		}
		texts[i-1] = CleanText(txt)
	}
	return texts, nil
}
