package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Tesseract runs the tesseract CLI, reading the image from stdin and the text
// from stdout.
type Tesseract struct {
	binary string
	lang   string
}

// NewTesseract resolves the binary on PATH. It fails when tesseract is not
// installed so callers can run without local OCR.
func NewTesseract(binary, lang string) (*Tesseract, error) {
	if binary == "" {
		binary = "tesseract"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("tesseract not available: %w", err)
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{binary: path, lang: lang}, nil
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	cmd := commandContext(ctx, t.binary, "stdin", "stdout", "-l", t.lang) //nolint:gosec
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
