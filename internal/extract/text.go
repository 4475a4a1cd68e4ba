package extract

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Recognizer runs local OCR over an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Describer asks a vision model about an encoded image.
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType, instruction string) (string, error)
}

// OCRProcessor runs cloud OCR over a PDF and returns text per page. A single
// element means the processor only produced whole-document text.
type OCRProcessor interface {
	Process(ctx context.Context, pdf []byte) ([]string, error)
}

var (
	blankRun   = regexp.MustCompile(`[ \t]+`)
	lineEdges  = regexp.MustCompile(` *\n *`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes text pulled out of a document.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRun.ReplaceAllString(s, " ")
	s = lineEdges.ReplaceAllString(s, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SniffImageMIME detects the image format from magic bytes, defaulting to PNG.
func SniffImageMIME(data []byte) string {
	ct := http.DetectContentType(data)
	switch ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return ct
	}
	return "image/png"
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// excerpt flattens s to a single line of at most n code points.
func excerpt(s string, n int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), n)
}
