package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// DefaultVisionInstruction is sent with every image to the vision model.
const DefaultVisionInstruction = "Extract any specs/dimensions/material/part numbers/notes visible in the image. Return concise bullet points only."

type ImageConfig struct {
	MinOCRChars       int
	MaxChars          int
	VisionInstruction string
}

func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		MinOCRChars:       80,
		MaxChars:          25000,
		VisionInstruction: DefaultVisionInstruction,
	}
}

// ImageExtractor reads images with local OCR first and asks a vision model
// only when OCR text is too short. Either collaborator may be nil.
type ImageExtractor struct {
	cfg    ImageConfig
	ocr    Recognizer
	vision Describer
	logger *slog.Logger
}

func NewImageExtractor(cfg ImageConfig, ocr Recognizer, vision Describer, logger *slog.Logger) *ImageExtractor {
	def := DefaultImageConfig()
	if cfg.MinOCRChars <= 0 {
		cfg.MinOCRChars = def.MinOCRChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.VisionInstruction == "" {
		cfg.VisionInstruction = def.VisionInstruction
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{cfg: cfg, ocr: ocr, vision: vision, logger: logger}
}

// ImageText is what the chain learned about one image.
type ImageText struct {
	OCR    string
	Vision string
	Source string
	Err    error
}

// Analyze runs the local_ocr then vision chain over one image.
func (e *ImageExtractor) Analyze(ctx context.Context, data []byte) ImageText {
	var out ImageText
	mime := SniffImageMIME(data)

	chain := Chain{
		Format: "image",
		Logger: e.logger,
		Stages: []Stage{
			{Name: "local_ocr", Run: func(ctx context.Context) (StageResult, error) {
				if e.ocr == nil {
					return StageResult{}, ErrStageSkipped
				}
				txt, err := e.ocr.Recognize(ctx, data)
				if err != nil {
					return StageResult{}, err
				}
				out.OCR = CleanText(txt)
				return StageResult{Text: out.OCR, Sufficient: runeLen(out.OCR) >= e.cfg.MinOCRChars}, nil
			}},
			{Name: "vision", Run: func(ctx context.Context) (StageResult, error) {
				if e.vision == nil {
					return StageResult{}, ErrStageSkipped
				}
				txt, err := e.vision.Describe(ctx, data, mime, e.cfg.VisionInstruction)
				if err != nil {
					return StageResult{}, err
				}
				out.Vision = strings.TrimSpace(txt)
				return StageResult{Text: out.Vision, Sufficient: out.Vision != ""}, nil
			}},
		},
	}
	outcome := chain.Run(ctx)
	out.Source = outcome.Stage
	out.Err = outcome.LastError()
	return out
}

// Extract never fails: problems become notes in the finding.
func (e *ImageExtractor) Extract(ctx context.Context, url string, data []byte) models.AttachmentFinding {
	res := e.Analyze(ctx, data)

	var body string
	switch {
	case res.Vision != "":
		body = "VISION:\n" + res.Vision
	case res.OCR != "":
		body = "OCR:\n" + res.OCR
	default:
		body = "(no OCR/vision output available)"
	}
	b := NewBudget(e.cfg.MaxChars)
	b.Add(fmt.Sprintf("## IMAGE: %s\n\n%s", url, body))

	summary := "Image analyzed. No OCR or vision output available."
	if res.Source != "" {
		summary = fmt.Sprintf("Image analyzed via %s.\n%s", res.Source, excerpt(body, 600))
	}

	meta := map[string]any{
		"mime":       SniffImageMIME(data),
		"has_ocr":    res.OCR != "",
		"has_vision": res.Vision != "",
		"source":     res.Source,
	}
	if res.Err != nil && res.Source == "" {
		meta["error"] = res.Err.Error()
	}
	return models.AttachmentFinding{
		URL:           url,
		Kind:          models.KindImage,
		Summary:       summary,
		Data:          meta,
		ExtractedText: b.String(),
	}
}
