package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/archive"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/audit"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/gcp"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/llm"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/search"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/sections"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/writeback"
)

// Analyzer turns attachment URLs into findings, one per URL.
type Analyzer interface {
	Analyze(ctx context.Context, urls []string) []models.AttachmentFinding
}

// Launcher starts the downstream workflow for a finished run.
type Launcher interface {
	Launch(ctx context.Context, args gcp.HandoffArgs) (string, error)
}

// RFQTask is the body of one queued job.
type RFQTask struct {
	Analyzer  Analyzer
	Search    search.Searcher
	Generator llm.Generator
	Writer    writeback.Writer
	RunLog    audit.RunLog
	Archive   archive.Store
	Launcher  Launcher
	Prompts   *Prompts
	Columns   config.Glide
	Logger    *slog.Logger
}

// Handle runs the job and keeps only its error, for use as a queue handler.
func (t *RFQTask) Handle(ctx context.Context, job models.Job) error {
	_, err := t.Run(ctx, job)
	return err
}

// Run executes the whole pipeline for one RFQ. Writeback failures fail the
// run; logging, archiving and the workflow hand-off are best-effort.
func (t *RFQTask) Run(ctx context.Context, job models.Job) (*models.RunOutput, error) {
	if job.Payload == nil {
		return nil, errors.New("job has no payload")
	}
	in := job.Payload
	logCtx := t.logger().With("runId", job.RunID, "mode", job.Mode, "rowId", job.RowID)
	logCtx.Info("Starting RFQ run.")
	timings := map[string]float64{}
	mark := func(name string, since time.Time) { timings[name] = time.Since(since).Seconds() }

	// --- 1. Analyze attachments ---
	start := time.Now()
	var findings []models.AttachmentFinding
	if strings.TrimSpace(in.ExtractedAttachmentText) == "" {
		findings = t.Analyzer.Analyze(ctx, in.AttachmentURLs())
	}
	extracted := AssembleText(in, findings)
	mark("attachments", start)
	logCtx.Info("Attachments analyzed.", "findingCount", len(findings), "extractedChars", len([]rune(extracted)))

	// --- 2. Web search ---
	start = time.Now()
	web, err := t.Search.Search(ctx, SearchQuery(job.Mode, in))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logCtx.Warn("Web search failed, continuing without findings.", "error", err)
		web = nil
	}
	mark("search", start)

	// --- 3. Generate ---
	start = time.Now()
	template := t.Prompts.Template(job.Mode)
	if template == "" {
		return nil, fmt.Errorf("no prompt template for mode %q", job.Mode)
	}
	user, err := BuildUserPrompt(template, in, extracted, web)
	if err != nil {
		return nil, err
	}
	raw, err := t.Generator.Generate(ctx, SystemPrompt, user)
	if err != nil {
		logCtx.Error("Generation failed.", "error", err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	mark("generate", start)

	// --- 4. Parse and write back ---
	parsed := sections.Outputs(raw)
	for k, v := range sections.ParseTags(raw, sections.SummaryTags...) {
		parsed[k] = v
	}
	product := in.FirstProduct()
	out := &models.RunOutput{
		RunID:          job.RunID,
		Mode:           job.Mode,
		RowID:          in.RowID,
		RFQTitle:       in.Title,
		CustomerName:   in.CustomerName,
		Standard:       in.Standard,
		Geography:      in.Geography,
		Industry:       in.Industry,
		ProductName:    product.Name,
		ProductQty:     product.Qty,
		ProductDetails: product.Details,
		Findings:       findings,
		WebFindings:    web,
		ExtractedText:  extracted,
		Sections:       parsed,
		RawModelOutput: raw,
		Timings:        timings,
	}

	start = time.Now()
	var writeErr error
	if in.RowID == "" {
		logCtx.Warn("No rowID on input, skipping writeback.")
	} else if cols := WritebackColumns(job.Mode, t.Columns, raw); len(cols) > 0 {
		if writeErr = t.Writer.Upsert(ctx, in.RowID, cols); writeErr != nil {
			logCtx.Error("Writeback failed.", "error", writeErr)
			writeErr = fmt.Errorf("writeback failed: %w", writeErr)
		}
	}
	mark("writeback", start)
	out.CompletedAt = time.Now().UTC()

	// --- 5. Best-effort records ---
	t.recordRun(ctx, logCtx, in, out)
	object := t.archiveRun(ctx, logCtx, out)

	if writeErr != nil {
		return out, writeErr
	}

	// --- 6. Hand off ---
	if t.Launcher != nil {
		if _, err := t.Launcher.Launch(ctx, gcp.HandoffArgs{RunID: job.RunID, RowID: in.RowID, Mode: string(job.Mode), Object: object}); err != nil {
			logCtx.Warn("Workflow hand-off failed.", "error", err)
		}
	}

	logCtx.Info("RFQ run complete.", "timings", timings)
	return out, nil
}

func (t *RFQTask) recordRun(ctx context.Context, logCtx *slog.Logger, in *models.RFQInput, out *models.RunOutput) {
	if t.RunLog == nil {
		return
	}
	row := audit.RunRow{
		Timestamp:     out.CompletedAt,
		Mode:          out.Mode,
		RowID:         out.RowID,
		InputJSON:     jsonCell(logCtx, "input", in.Header()),
		ExtractedText: out.ExtractedText,
		Output:        jsonCell(logCtx, "output", out.Sections),
		RawModel:      out.RawModelOutput,
	}
	if err := t.RunLog.Record(ctx, row); err != nil {
		logCtx.Warn("Failed to record run log row.", "error", err)
	}
}

// jsonCell encodes v for one run log cell. An encoding failure is logged and
// leaves the cell empty; the rest of the row is still recorded.
func jsonCell(logCtx *slog.Logger, field string, v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		logCtx.Warn("Failed to encode run log cell.", "field", field, "error", err)
		return ""
	}
	return string(b)
}

// archiveRun stores the run record and returns its object name, or "" when
// nothing was stored.
func (t *RFQTask) archiveRun(ctx context.Context, logCtx *slog.Logger, out *models.RunOutput) string {
	if t.Archive == nil {
		return ""
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logCtx.Warn("Failed to marshal run output.", "error", err)
		return ""
	}
	name := archive.ObjectName(string(out.Mode), out.RowID, out.RunID)
	if err := t.Archive.Put(ctx, name, body, "application/json"); err != nil {
		logCtx.Warn("Failed to archive run output.", "error", err, "object", name)
		return ""
	}
	return name
}

func (t *RFQTask) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// WritebackColumns maps the model output of a run onto writeback columns.
// Columns without a configured id and empty values are left out.
func WritebackColumns(mode models.Mode, cols config.Glide, raw string) map[string]string {
	out1, out2 := sections.ParseOutputs(raw)
	values := map[string]string{}
	set := func(col, v string) {
		if col != "" && v != "" {
			values[col] = v
		}
	}

	switch mode {
	case models.ModePricing:
		set(cols.ColPricingEstimate, out1)
		set(cols.ColPricingEstimateSummary, out2)
	case models.ModeSummary:
		tags := sections.ParseTags(raw, sections.SummaryTags...)
		summary := tags["summary"]
		if summary == "" {
			summary = out2
		}
		set(cols.ColSummary, summary)
		set(cols.ColScope, tags["scope"])
		set(cols.ColCost, tags["cost"])
		set(cols.ColQuality, tags["quality"])
		set(cols.ColSchedule, tags["timeline"])
		set(cols.ColPricingEstimate, out1)
	}
	return values
}
