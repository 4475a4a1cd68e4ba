// Package attachments turns a list of attachment URLs into one finding per
// URL: clean, folder check, fetch, classify, extract.
package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/classify"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/fetch"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/metrics"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Fetcher downloads one attachment.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Extractor turns downloaded bytes of a known kind into a finding.
type Extractor interface {
	Extract(ctx context.Context, url string, data []byte) (models.AttachmentFinding, error)
}

// ImageExtractor is the image variant, which never fails.
type ImageExtractor interface {
	Extract(ctx context.Context, url string, data []byte) models.AttachmentFinding
}

type Analyzer struct {
	fetcher     Fetcher
	pdf         Extractor
	excel       Extractor
	image       ImageExtractor
	concurrency int
	logger      *slog.Logger
}

type Option func(*Analyzer)

func WithPDF(e Extractor) Option { return func(a *Analyzer) { a.pdf = e } }
func WithExcel(e Extractor) Option { return func(a *Analyzer) { a.excel = e } }
func WithImage(e ImageExtractor) Option { return func(a *Analyzer) { a.image = e } }
func WithLogger(l *slog.Logger) Option { return func(a *Analyzer) { a.logger = l } }
func WithConcurrency(n int) Option { return func(a *Analyzer) { a.concurrency = n } }

// New builds an Analyzer. Kinds without a configured extractor produce an
// unknown finding instead of being parsed.
func New(fetcher Fetcher, opts ...Option) *Analyzer {
	a := &Analyzer{fetcher: fetcher, concurrency: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	return a
}

// Analyze returns exactly one finding per cleaned, deduplicated URL, in
// input order. Fetch and parse failures are recorded inside the findings.
func (a *Analyzer) Analyze(ctx context.Context, urls []string) []models.AttachmentFinding {
	cleaned := models.CleanURLs(urls)
	out := make([]models.AttachmentFinding, len(cleaned))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, u := range cleaned {
		g.Go(func() error {
			out[i] = a.analyzeOne(ctx, u)
			metrics.IncFinding(string(out[i].Kind))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Analyzer) analyzeOne(ctx context.Context, u string) (finding models.AttachmentFinding) {
	logCtx := a.logger.With("url", u)
	fname := filenameFromURL(u)

	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Extractor panicked.", "panic", r)
			finding = failed(u, fname, fmt.Errorf("extractor panic: %v", r))
		}
	}()

	if classify.IsFolderLink(u) {
		return models.AttachmentFinding{
			URL:     u,
			Kind:    models.KindFolder,
			Summary: "Folder link detected (SharePoint/OneDrive). Deep traversal requires Microsoft Graph integration.",
			Data:    map[string]any{"filename": fname, "action": "graph_required"},
		}
	}
	if err := ctx.Err(); err != nil {
		return failed(u, fname, err)
	}

	res, err := a.fetcher.Fetch(ctx, u)
	if err != nil {
		logCtx.Warn("Failed to fetch attachment.", "error", err)
		return failed(u, fname, err)
	}

	kind := classify.Classify(u, res.ContentType)
	logCtx.Info("Analyzing attachment.", "kind", kind, "bytes", len(res.Data))

	var f models.AttachmentFinding
	switch {
	case kind == models.KindPDF && a.pdf != nil:
		f, err = a.pdf.Extract(ctx, u, res.Data)
	case kind == models.KindExcel && a.excel != nil:
		f, err = a.excel.Extract(ctx, u, res.Data)
	case kind == models.KindImage && a.image != nil:
		f = a.image.Extract(ctx, u, res.Data)
	default:
		return unsupported(u, fname, res.ContentType)
	}
	if err != nil {
		logCtx.Warn("Failed to extract attachment.", "kind", kind, "error", err)
		return failed(u, fname, err)
	}
	if f.Data == nil {
		f.Data = map[string]any{}
	}
	return f
}

func failed(u, fname string, err error) models.AttachmentFinding {
	f := models.FailedFinding(u, err)
	f.Data["filename"] = fname
	return f
}

func unsupported(u, fname, contentType string) models.AttachmentFinding {
	ct := contentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(fname))
	}
	shown := ct
	if shown == "" {
		shown = "unknown"
	}
	return models.AttachmentFinding{
		URL:     u,
		Kind:    models.KindUnknown,
		Summary: fmt.Sprintf("Downloaded '%s'. Unsupported type (content-type=%s).", fname, shown),
		Data:    map[string]any{"filename": fname, "content_type": ct},
	}
}

// filenameFromURL is the last path segment, at most 120 bytes.
func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "file"
	}
	name := strings.TrimSpace(path.Base(u.EscapedPath()))
	if name == "" || name == "/" || name == "." {
		return "file"
	}
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}
