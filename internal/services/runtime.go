package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/archive"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/attachments"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/audit"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/extract"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/fetch"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/gcp"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/llm"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/queue"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/search"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/writeback"
)

// Runtime owns every client the service needs, built once at startup.
type Runtime struct {
	Settings   *config.Settings
	Analyzer   *attachments.Analyzer
	Task       *RFQTask
	Dispatcher *queue.Dispatcher

	logger  *slog.Logger
	gemini  *gcp.VertexClient
	closers []func() error
}

// NewRuntime builds the extraction pipeline, the collaborators of the RFQ
// task and the dispatcher that runs it. Optional collaborators that are not
// configured are replaced by no-ops.
func NewRuntime(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Settings: cfg, logger: logger}
	if err := rt.build(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context) error {
	cfg, logger := rt.Settings, rt.logger

	// --- 1. Extraction ---
	analyzer, err := rt.buildAnalyzer(ctx)
	if err != nil {
		return err
	}
	rt.Analyzer = analyzer

	// --- 2. Generation ---
	var generator llm.Generator
	switch cfg.Limits.GenerationProvider {
	case "vertex":
		vc, err := rt.vertex(ctx)
		if err != nil {
			return err
		}
		generator = vc
	default:
		g, err := llm.NewAnthropic(cfg.Anthropic, logger)
		if err != nil {
			return fmt.Errorf("failed to create generator: %w", err)
		}
		generator = g
	}

	prompts, err := LoadPrompts(cfg.Prompts)
	if err != nil {
		return err
	}

	// --- 3. Side channels ---
	var fs *firestore.Client
	if cfg.Firestore.EventsCollection != "" || (cfg.Glide.Enabled && cfg.Glide.Backend == "firestore") {
		fs, err = gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, fs.Close)
	}

	writer, err := rt.writer(fs)
	if err != nil {
		return err
	}
	runLog, err := rt.runLog(ctx)
	if err != nil {
		return err
	}
	store, err := rt.archiveStore(ctx)
	if err != nil {
		return err
	}

	rt.Task = &RFQTask{
		Analyzer:  analyzer,
		Search:    search.NewPerplexity(cfg.Perplexity, search.WithLogger(logger)),
		Generator: generator,
		Writer:    writer,
		RunLog:    runLog,
		Archive:   store,
		Prompts:   prompts,
		Columns:   cfg.Glide,
		Logger:    logger,
	}
	if cfg.Workflow.ID != "" {
		launcher, err := gcp.NewWorkflowLauncher(ctx, cfg.ProjectID, cfg.Workflow.Location, cfg.Workflow.ID)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, launcher.Close)
		rt.Task.Launcher = launcher
	}

	// --- 4. Queue ---
	sink := audit.Multi{audit.Slog{Logger: logger}}
	if fs != nil && cfg.Firestore.EventsCollection != "" {
		sink = append(sink, audit.NewFirestore(fs, cfg.Firestore.EventsCollection, logger))
	}
	rt.Dispatcher = queue.New(queue.ConfigFrom(cfg.Queue), rt.Task.Handle, sink, logger)
	return nil
}

// NewAnalyzer builds only the extraction pipeline.
func NewAnalyzer(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Settings: cfg, logger: logger}
	a, err := rt.buildAnalyzer(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Analyzer = a
	return rt, nil
}

func (rt *Runtime) buildAnalyzer(ctx context.Context) (*attachments.Analyzer, error) {
	cfg, logger := rt.Settings, rt.logger
	lim := cfg.Limits

	var recognizer extract.Recognizer
	if lim.EnableLocalOCR {
		t, err := extract.NewTesseract(lim.TesseractPath, "")
		if err != nil {
			logger.Warn("Local OCR disabled.", "error", err)
		} else {
			recognizer = t
		}
	}

	var describer extract.Describer
	if lim.EnableVisionFallback {
		switch lim.VisionProvider {
		case "vertex":
			vc, err := rt.vertex(ctx)
			if err != nil {
				return nil, err
			}
			describer = vc
		default:
			v, err := llm.NewAnthropicVision(cfg.Anthropic)
			if err != nil {
				logger.Warn("Vision fallback disabled.", "error", err)
			} else {
				describer = v
			}
		}
	}

	var cloudOCR extract.OCRProcessor
	if cfg.DocAI.Configured() {
		creds, err := gcp.CredentialsFromB64(cfg.DocAI.SAJSONB64, cfg.Sheets.SAJSONB64)
		if err != nil {
			return nil, err
		}
		d, err := gcp.NewDocumentOCR(ctx, cfg.DocAI, creds...)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, d.Close)
		cloudOCR = d
	}

	imgCfg := extract.DefaultImageConfig()
	imgCfg.MinOCRChars = lim.MinOCRCharsToAccept
	images := extract.NewImageExtractor(imgCfg, recognizer, describer, logger)

	pdfCfg := extract.DefaultPDFConfig()
	pdfCfg.MaxPages = lim.MaxPDFPages
	pdfCfg.MinTextCharsPerPage = lim.MinPDFTextCharsPerPage
	pdfCfg.ScannedStages = lim.PDFScannedStages

	xlCfg := extract.DefaultExcelConfig()
	xlCfg.MaxRows = lim.MaxExcelRows
	xlCfg.MaxCols = lim.MaxExcelCols
	xlCfg.MaxTablesPerSheet = lim.MaxExcelTablesPerSheet

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.MaxBytes = lim.MaxAttachmentBytes
	fetchCfg.Timeout = lim.FetchTimeout()

	return attachments.New(
		fetch.New(fetchCfg, fetch.WithLogger(logger)),
		attachments.WithPDF(extract.NewPDFExtractor(pdfCfg, cloudOCR, images, logger)),
		attachments.WithExcel(extract.NewExcelExtractor(xlCfg, images, logger)),
		attachments.WithImage(images),
		attachments.WithConcurrency(lim.AttachmentConcurrency),
		attachments.WithLogger(logger),
	), nil
}

// vertex returns the shared Gemini client, creating it on first use.
func (rt *Runtime) vertex(ctx context.Context) (*gcp.VertexClient, error) {
	if rt.gemini != nil {
		return rt.gemini, nil
	}
	cfg := rt.Settings
	vc, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Vertex.Region, cfg.Vertex.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.Temperature)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, vc.Close)
	rt.gemini = vc
	return vc, nil
}

func (rt *Runtime) writer(fs *firestore.Client) (writeback.Writer, error) {
	g := rt.Settings.Glide
	if !g.Enabled {
		return writeback.Nop{}, nil
	}
	switch g.Backend {
	case "firestore":
		return writeback.NewFirestore(fs, rt.Settings.Firestore.WritebackCollection), nil
	case "glide", "":
		w, err := writeback.NewGlide(g, &http.Client{Timeout: rt.Settings.Limits.FetchTimeout()}, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create glide writer: %w", err)
		}
		return w, nil
	}
	return nil, fmt.Errorf("unknown writeback backend %q", g.Backend)
}

func (rt *Runtime) runLog(ctx context.Context) (audit.RunLog, error) {
	s := rt.Settings.Sheets
	if !s.Enabled || s.SheetID == "" {
		return audit.NopRunLog{}, nil
	}
	creds, err := gcp.CredentialsFromB64(s.SAJSONB64)
	if err != nil {
		return nil, err
	}
	svc, err := gcp.NewSheetsService(ctx, creds...)
	if err != nil {
		return nil, err
	}
	return audit.NewSheets(svc, s.SheetID, s.Tab, s.MaxCellChars), nil
}

func (rt *Runtime) archiveStore(ctx context.Context) (archive.Store, error) {
	a := rt.Settings.Archive
	switch a.Backend {
	case "":
		return archive.Nop{}, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		return archive.NewGCS(client, a.Bucket), nil
	case "minio":
		m, err := archive.NewMinio(a)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown archive backend %q", a.Backend)
}

// Close releases every client in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
