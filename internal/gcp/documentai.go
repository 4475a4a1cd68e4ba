package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/extract"
)

// minAnchoredChars is the least per-page text worth trusting before falling
// back to the document-wide text.
const minAnchoredChars = 80

// DocumentOCR runs a Document AI OCR processor over PDFs.
type DocumentOCR struct {
	client  *documentai.DocumentProcessorClient
	name    string
	timeout time.Duration
}

func NewDocumentOCR(ctx context.Context, cfg config.DocAI, opts ...option.ClientOption) (*DocumentOCR, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("document ai is not configured")
	}
	opts = append(opts, option.WithEndpoint(cfg.Location+"-documentai.googleapis.com:443"))
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create document ai client: %w", err)
	}
	return &DocumentOCR{
		client:  client,
		name:    fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID),
		timeout: cfg.Timeout(),
	}, nil
}

// Process returns text per page, or the whole-document text as a single
// element when the page anchors carry too little.
func (d *DocumentOCR) Process(ctx context.Context, pdf []byte) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: pdf, MimeType: "application/pdf"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("document ai process: %w", err)
	}
	return PageTexts(resp.GetDocument()), nil
}

// PageTexts slices a processed document's text by each page's layout anchor.
func PageTexts(doc *documentaipb.Document) []string {
	full := doc.GetText()
	if strings.TrimSpace(full) == "" {
		return nil
	}
	runes := []rune(full)

	var pages []string
	total := 0
	for _, p := range doc.GetPages() {
		var b strings.Builder
		for _, seg := range p.GetLayout().GetTextAnchor().GetTextSegments() {
			s, e := int(seg.GetStartIndex()), int(seg.GetEndIndex())
			e = min(e, len(runes))
			if e > s && s >= 0 {
				b.WriteString(string(runes[s:e]))
			}
		}
		txt := extract.CleanText(b.String())
		total += len([]rune(txt))
		pages = append(pages, txt)
	}

	if total < minAnchoredChars {
		return []string{extract.CleanText(full)}
	}
	return pages
}

func (d *DocumentOCR) Close() error { return d.client.Close() }
