// Package queue admits RFQ jobs, runs a bounded number of them at once and
// records every status transition.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/audit"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/metrics"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Handler is the body of a job. It must honour ctx cancellation to release
// its resources, but the dispatcher does not wait for it after a timeout.
type Handler func(ctx context.Context, job models.Job) error

type Config struct {
	MaxQueueSize      int
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	ShutdownGrace     time.Duration
}

// ConfigFrom maps the environment settings onto a dispatcher Config.
func ConfigFrom(q config.Queue) Config {
	return Config{
		MaxQueueSize:      q.MaxQueueSize,
		MaxConcurrentJobs: q.MaxConcurrentJobs,
		JobTimeout:        q.JobTimeout(),
		ShutdownGrace:     q.ShutdownGrace(),
	}
}

type Dispatcher struct {
	cfg     Config
	handler Handler
	sink    audit.Sink
	logger  *slog.Logger

	jobs  chan models.Job
	depth atomic.Int64
	sem   *semaphore.Weighted
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func New(cfg Config, handler Handler, sink audit.Sink, logger *slog.Logger) *Dispatcher {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.MaxQueueSize = max(cfg.MaxQueueSize, 1)
	cfg.MaxConcurrentJobs = max(cfg.MaxConcurrentJobs, 1)
	return &Dispatcher{
		cfg:     cfg,
		handler: handler,
		sink:    sink,
		logger:  logger,
		jobs:    make(chan models.Job, cfg.MaxQueueSize),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
}

// Depth is the number of admitted jobs not yet in a terminal state.
func (d *Dispatcher) Depth() int64 { return d.depth.Load() }

// Submit admits a job or rejects it with ErrQueueFull. A rejected
// submission still gets a run id and a REJECTED event.
func (d *Dispatcher) Submit(ctx context.Context, mode models.Mode, payload *models.RFQInput) (models.Admission, error) {
	job := models.Job{
		RunID:       uuid.NewString(),
		Mode:        mode,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}
	if payload != nil {
		job.RowID = payload.RowID
	}

	if !d.reserve() {
		msg := fmt.Sprintf("queue full (max %d)", d.cfg.MaxQueueSize)
		d.mu.Lock()
		if d.stopped {
			msg = "dispatcher stopped"
		}
		d.mu.Unlock()
		d.record(ctx, job, models.StatusRejected, msg)
		return models.Admission{RunID: job.RunID, Status: models.StatusRejected}, fmt.Errorf("%w: %s", models.ErrQueueFull, msg)
	}

	// QUEUED is recorded before the job becomes visible to the loop so it
	// always precedes RUNNING.
	d.record(ctx, job, models.StatusQueued, "")

	// The send happens under mu so it cannot interleave with the loop
	// marking itself stopped and draining the channel.
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.finish(job, models.StatusFailed, "dispatcher stopped before job started", 0)
		return models.Admission{RunID: job.RunID, Status: models.StatusQueued}, nil
	}
	d.jobs <- job
	d.mu.Unlock()
	return models.Admission{RunID: job.RunID, Status: models.StatusQueued}, nil
}

// reserve claims one slot of queue depth. The channel never blocks a
// successful reservation because its capacity equals the depth ceiling.
func (d *Dispatcher) reserve() bool {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return false
	}
	limit := int64(d.cfg.MaxQueueSize)
	for {
		cur := d.depth.Load()
		if cur >= limit {
			return false
		}
		if d.depth.CompareAndSwap(cur, cur+1) {
			metrics.SetQueueDepth(cur + 1)
			return true
		}
	}
}

// Run receives jobs until ctx is cancelled or Stop is called. Jobs still
// queued at that point are failed without running.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return errors.New("dispatcher already stopped")
	}
	d.cancel = cancel
	d.mu.Unlock()

	d.logger.Info("Dispatcher started.", "maxQueueSize", d.cfg.MaxQueueSize, "maxConcurrentJobs", d.cfg.MaxConcurrentJobs, "jobTimeout", d.cfg.JobTimeout.String())
	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()
			d.drain()
			return nil
		case job := <-d.jobs:
			d.mu.Lock()
			if d.stopped {
				d.mu.Unlock()
				d.finish(job, models.StatusFailed, "dispatcher stopped before job started", 0)
				continue
			}
			d.wg.Add(1)
			d.mu.Unlock()
			go d.execute(ctx, job)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.jobs:
			d.finish(job, models.StatusFailed, "dispatcher stopped before job started", 0)
		default:
			return
		}
	}
}

func (d *Dispatcher) execute(loopCtx context.Context, job models.Job) {
	defer d.wg.Done()
	logCtx := d.logger.With("runId", job.RunID, "mode", job.Mode, "rowId", job.RowID)

	// --- 1. Wait for a permit ---
	if err := d.sem.Acquire(loopCtx, 1); err != nil {
		d.finish(job, models.StatusFailed, "dispatcher stopped before job started", 0)
		return
	}
	defer d.sem.Release(1)
	metrics.IncRunning()
	defer metrics.DecRunning()

	d.record(loopCtx, job, models.StatusRunning, "")
	start := time.Now()

	// --- 2. Run the body under the job deadline ---
	// Stopping the loop does not cancel running bodies; Stop waits for them.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(loopCtx), d.cfg.JobTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic: %v", r)
			}
		}()
		result <- d.handler(jobCtx, job)
	}()

	// --- 3. Map the outcome to a terminal status ---
	var status models.JobStatus
	var msg string
	select {
	case err := <-result:
		switch {
		case err == nil:
			status = models.StatusDone
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			status, msg = models.StatusTimedOut, d.timeoutMessage()
		default:
			status, msg = models.StatusFailed, err.Error()
		}
	case <-jobCtx.Done():
		status, msg = models.StatusTimedOut, d.timeoutMessage()
		logCtx.Warn("Job exceeded its deadline, abandoning body.")
	}

	elapsed := time.Since(start)
	if status == models.StatusDone {
		logCtx.Info("Job finished.", "elapsed", elapsed.String())
	} else {
		logCtx.Error("Job did not complete.", "status", status, "error", msg, "elapsed", elapsed.String())
	}
	d.finish(job, status, msg, elapsed)
}

func (d *Dispatcher) timeoutMessage() string {
	return fmt.Sprintf("%v after %s", models.ErrJobTimeout, d.cfg.JobTimeout)
}

// finish releases the job's depth slot and records its terminal status.
func (d *Dispatcher) finish(job models.Job, status models.JobStatus, msg string, elapsed time.Duration) {
	metrics.SetQueueDepth(d.depth.Add(-1))
	metrics.ObserveJob(string(job.Mode), string(status), elapsed)
	d.record(context.Background(), job, status, msg)
}

func (d *Dispatcher) record(ctx context.Context, job models.Job, status models.JobStatus, msg string) {
	d.sink.Append(ctx, models.JobEvent{
		Timestamp: time.Now().UTC(),
		RunID:     job.RunID,
		Mode:      job.Mode,
		RowID:     job.RowID,
		Status:    status,
		Message:   msg,
	})
}

// Stop refuses new submissions, ends the loop and waits up to the grace
// period for running jobs.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	d.stopped = true
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d.cfg.ShutdownGrace):
		return fmt.Errorf("jobs still running after %s grace period", d.cfg.ShutdownGrace)
	}
}
