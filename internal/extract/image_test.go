package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeDescriber struct {
	text     string
	err      error
	calls    int
	lastMIME string
}

func (f *fakeDescriber) Describe(_ context.Context, _ []byte, mime, _ string) (string, error) {
	f.calls++
	f.lastMIME = mime
	return f.text, f.err
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

func TestImageOCRSufficientSkipsVision(t *testing.T) {
	ocr := &fakeRecognizer{text: strings.Repeat("M8 bolt ", 20)}
	vision := &fakeDescriber{text: "unused"}
	e := NewImageExtractor(DefaultImageConfig(), ocr, vision, logging.Discard())

	f := e.Extract(context.Background(), "https://x/p.png", pngMagic)
	assert.Equal(t, models.KindImage, f.Kind)
	assert.Zero(t, vision.calls)
	assert.Contains(t, f.ExtractedText, "## IMAGE: https://x/p.png")
	assert.Contains(t, f.ExtractedText, "OCR:\nM8 bolt")
	assert.Equal(t, "local_ocr", f.Data["source"])
}

func TestImageShortOCRFallsBackToVision(t *testing.T) {
	ocr := &fakeRecognizer{text: "M8"}
	vision := &fakeDescriber{text: "- Material: SS316\n- Thickness: 3mm"}
	e := NewImageExtractor(DefaultImageConfig(), ocr, vision, logging.Discard())

	f := e.Extract(context.Background(), "https://x/p.png", pngMagic)
	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, "image/png", vision.lastMIME)
	assert.Contains(t, f.ExtractedText, "VISION:\n- Material: SS316")
	assert.Equal(t, true, f.Data["has_ocr"])
	assert.Equal(t, true, f.Data["has_vision"])
}

func TestImageNeverFails(t *testing.T) {
	ocr := &fakeRecognizer{err: errors.New("no tesseract")}
	vision := &fakeDescriber{err: errors.New("401")}
	e := NewImageExtractor(DefaultImageConfig(), ocr, vision, logging.Discard())

	f := e.Extract(context.Background(), "https://x/p.jpg", []byte("garbage"))
	assert.Equal(t, models.KindImage, f.Kind)
	assert.Contains(t, f.ExtractedText, "(no OCR/vision output available)")
	assert.Equal(t, "401", f.Data["error"])

	bare := NewImageExtractor(ImageConfig{}, nil, nil, logging.Discard())
	f = bare.Extract(context.Background(), "https://x/p.jpg", nil)
	assert.Contains(t, f.ExtractedText, "(no OCR/vision output available)")
}

func TestImageTextIsBounded(t *testing.T) {
	vision := &fakeDescriber{text: strings.Repeat("v", 30000)}
	e := NewImageExtractor(DefaultImageConfig(), nil, vision, logging.Discard())

	f := e.Extract(context.Background(), "https://x/p.png", pngMagic)
	assert.LessOrEqual(t, utf8.RuneCountInString(f.ExtractedText), 25000+utf8.RuneCountInString(TruncationMarker))
	assert.Contains(t, f.ExtractedText, "TRUNCATED")
}
