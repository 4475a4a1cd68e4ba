package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/metrics"
)

// StageResult is what one fallback stage produced. Pages is set by stages
// that work page by page; Text by stages that return one blob.
type StageResult struct {
	Text       string
	Pages      []string
	Sufficient bool
}

func (r StageResult) empty() bool {
	if r.Text != "" {
		return false
	}
	for _, p := range r.Pages {
		if p != "" {
			return false
		}
	}
	return true
}

// Stage is one named step of a fallback chain.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (StageResult, error)
}

type StageError struct {
	Stage string
	Err   error
}

// Outcome is the result of running a chain. Stage names the stage whose
// result was kept; it is empty when nothing produced output.
type Outcome struct {
	Stage      string
	Result     StageResult
	Sufficient bool
	Errors     []StageError
	Attempted  []string
}

// LastError returns the error of the last failing stage, if any.
func (o Outcome) LastError() error {
	if len(o.Errors) == 0 {
		return nil
	}
	return o.Errors[len(o.Errors)-1].Err
}

// Chain runs stages in order until one reports a sufficient result. A
// failing stage is recorded and the next stage runs. When no stage is
// sufficient the latest non-empty result is kept.
type Chain struct {
	Format string
	Stages []Stage
	Logger *slog.Logger
}

func (c Chain) Run(ctx context.Context) Outcome {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var out Outcome
	for _, st := range c.Stages {
		if err := ctx.Err(); err != nil {
			out.Errors = append(out.Errors, StageError{Stage: st.Name, Err: err})
			break
		}
		out.Attempted = append(out.Attempted, st.Name)

		res, err := st.Run(ctx)
		switch {
		case err != nil:
			metrics.IncStage(c.Format, st.Name, "error")
			logger.Warn("Extraction stage failed.", "format", c.Format, "stage", st.Name, "error", err)
			out.Errors = append(out.Errors, StageError{Stage: st.Name, Err: err})
			continue
		case res.Sufficient:
			metrics.IncStage(c.Format, st.Name, "sufficient")
			out.Stage, out.Result, out.Sufficient = st.Name, res, true
			return out
		default:
			metrics.IncStage(c.Format, st.Name, "insufficient")
			if !res.empty() {
				out.Stage, out.Result = st.Name, res
			}
		}
	}
	return out
}

// ErrStageSkipped is returned by stages whose collaborator is not configured.
var ErrStageSkipped = errors.New("stage not configured")
