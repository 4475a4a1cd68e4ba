package services

import (
	"fmt"
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

const findingSeparator = "\n\n---\n\n"

// AssembleText merges the findings of a run into the text shown to the
// model. Text supplied with the request wins over anything extracted.
func AssembleText(in *models.RFQInput, findings []models.AttachmentFinding) string {
	if in != nil {
		if s := strings.TrimSpace(in.ExtractedAttachmentText); s != "" {
			return s
		}
	}

	blocks := make([]string, 0, len(findings))
	for _, f := range findings {
		body := f.ExtractedText
		if strings.TrimSpace(body) == "" {
			body = f.Summary
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s\n%s", f.Kind, f.URL, strings.TrimSpace(body)))
	}
	return strings.Join(blocks, findingSeparator)
}
