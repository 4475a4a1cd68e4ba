package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/audit"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

const waitFor = 3 * time.Second

func payload(row string) *models.RFQInput {
	return &models.RFQInput{RowID: row, Title: "Flange"}
}

func start(t *testing.T, cfg Config, h Handler) (*Dispatcher, *audit.Memory) {
	t.Helper()
	sink := &audit.Memory{}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = time.Second
	}
	d := New(cfg, h, sink, logging.Discard())
	go func() { _ = d.Run(context.Background()) }()
	t.Cleanup(func() { _ = d.Stop() })
	return d, sink
}

func TestSubmitRejectsPastCapacity(t *testing.T) {
	sink := &audit.Memory{}
	d := New(Config{MaxQueueSize: 3, MaxConcurrentJobs: 1, JobTimeout: time.Minute}, func(context.Context, models.Job) error { return nil }, sink, logging.Discard())

	for i := 0; i < 3; i++ {
		adm, err := d.Submit(context.Background(), models.ModeSummary, payload("row"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusQueued, adm.Status)
		assert.NotEmpty(t, adm.RunID)
	}

	adm, err := d.Submit(context.Background(), models.ModePricing, payload("row-4"))
	require.ErrorIs(t, err, models.ErrQueueFull)
	assert.Equal(t, models.StatusRejected, adm.Status)
	assert.NotEmpty(t, adm.RunID)
	assert.EqualValues(t, 3, d.Depth())
	assert.Equal(t, []models.JobStatus{models.StatusRejected}, sink.Statuses(adm.RunID))
	assert.Equal(t, 3, sink.Count(models.StatusQueued))
}

func TestConcurrentSubmittersNeverOvershoot(t *testing.T) {
	d := New(Config{MaxQueueSize: 10, MaxConcurrentJobs: 1, JobTimeout: time.Minute}, func(context.Context, models.Job) error { return nil }, &audit.Memory{}, logging.Discard())

	var admitted atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 40; i++ {
		go func() {
			if _, err := d.Submit(context.Background(), models.ModeSummary, payload("r")); err == nil {
				admitted.Add(1)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 40; i++ {
		<-done
	}
	assert.EqualValues(t, 10, admitted.Load())
	assert.EqualValues(t, 10, d.Depth())
}

func TestRunningJobsNeverExceedPermits(t *testing.T) {
	var running, peak atomic.Int32
	h := func(ctx context.Context, _ models.Job) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	d, sink := start(t, Config{MaxQueueSize: 10, MaxConcurrentJobs: 2, JobTimeout: time.Minute}, h)

	for i := 0; i < 6; i++ {
		_, err := d.Submit(context.Background(), models.ModeSummary, payload("r"))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return sink.Count(models.StatusDone) == 6 }, waitFor, 5*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.EqualValues(t, 0, d.Depth())
}

func TestEventsFollowLifecycleOrder(t *testing.T) {
	d, sink := start(t, Config{MaxQueueSize: 5, MaxConcurrentJobs: 2, JobTimeout: time.Minute}, func(context.Context, models.Job) error { return nil })

	adm, err := d.Submit(context.Background(), models.ModePricing, payload("row-7"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.Count(models.StatusDone) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []models.JobStatus{models.StatusQueued, models.StatusRunning, models.StatusDone}, sink.Statuses(adm.RunID))
	for _, ev := range sink.Events() {
		assert.Equal(t, "row-7", ev.RowID)
		assert.Equal(t, models.ModePricing, ev.Mode)
	}
}

func TestHandlerErrorAndPanicAreFailures(t *testing.T) {
	h := func(_ context.Context, job models.Job) error {
		switch job.RowID {
		case "err":
			return errors.New("generation failed")
		case "panic":
			panic("boom")
		}
		return nil
	}
	d, sink := start(t, Config{MaxQueueSize: 5, MaxConcurrentJobs: 2, JobTimeout: time.Minute}, h)

	errAdm, err := d.Submit(context.Background(), models.ModeSummary, payload("err"))
	require.NoError(t, err)
	panicAdm, err := d.Submit(context.Background(), models.ModeSummary, payload("panic"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.Count(models.StatusFailed) == 2 }, waitFor, 5*time.Millisecond)
	for _, ev := range sink.Events() {
		if ev.Status != models.StatusFailed {
			continue
		}
		switch ev.RunID {
		case errAdm.RunID:
			assert.Equal(t, "generation failed", ev.Message)
		case panicAdm.RunID:
			assert.Contains(t, ev.Message, "panic: boom")
		}
	}

	// The dispatcher survives a panicking body.
	_, err = d.Submit(context.Background(), models.ModeSummary, payload("ok"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sink.Count(models.StatusDone) == 1 }, waitFor, 5*time.Millisecond)
}

func TestTimedOutJobReleasesPermitAndSlot(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var started atomic.Int32
	h := func(_ context.Context, job models.Job) error {
		started.Add(1)
		if job.RowID == "stuck" {
			<-release
		}
		return nil
	}
	d, sink := start(t, Config{MaxQueueSize: 2, MaxConcurrentJobs: 1, JobTimeout: 50 * time.Millisecond}, h)

	stuck1, err := d.Submit(context.Background(), models.ModeSummary, payload("stuck"))
	require.NoError(t, err)
	_, err = d.Submit(context.Background(), models.ModeSummary, payload("stuck"))
	require.NoError(t, err)
	rejected, err := d.Submit(context.Background(), models.ModeSummary, payload("late"))
	require.ErrorIs(t, err, models.ErrQueueFull)

	require.Eventually(t, func() bool {
		st := sink.Statuses(stuck1.RunID)
		return len(st) == 3 && st[2] == models.StatusTimedOut
	}, waitFor, 5*time.Millisecond)

	late, err := d.Submit(context.Background(), models.ModeSummary, payload("late"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := sink.Statuses(late.RunID)
		return len(st) > 0 && st[len(st)-1] == models.StatusDone
	}, waitFor, 5*time.Millisecond)
	assert.EqualValues(t, 3, started.Load())

	for _, ev := range sink.Events() {
		if ev.Status == models.StatusTimedOut {
			assert.Contains(t, ev.Message, "50ms")
		}
	}
	assert.Equal(t, []models.JobStatus{models.StatusRejected}, sink.Statuses(rejected.RunID))
}

func TestStopWaitsForRunningJobsAndRefusesNewOnes(t *testing.T) {
	entered := make(chan struct{})
	h := func(context.Context, models.Job) error {
		close(entered)
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	sink := &audit.Memory{}
	d := New(Config{MaxQueueSize: 5, MaxConcurrentJobs: 1, JobTimeout: time.Minute, ShutdownGrace: time.Second}, h, sink, logging.Discard())
	go func() { _ = d.Run(context.Background()) }()

	adm, err := d.Submit(context.Background(), models.ModeSummary, payload("r"))
	require.NoError(t, err)
	<-entered

	require.NoError(t, d.Stop())
	assert.Equal(t, models.StatusDone, sink.Statuses(adm.RunID)[2])

	_, err = d.Submit(context.Background(), models.ModeSummary, payload("r"))
	assert.ErrorIs(t, err, models.ErrQueueFull)
}

func TestStopGivesUpAfterGrace(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})
	h := func(context.Context, models.Job) error {
		close(entered)
		<-release
		return nil
	}
	d := New(Config{MaxQueueSize: 5, MaxConcurrentJobs: 1, JobTimeout: time.Minute, ShutdownGrace: 30 * time.Millisecond}, h, nil, logging.Discard())
	go func() { _ = d.Run(context.Background()) }()

	_, err := d.Submit(context.Background(), models.ModeSummary, payload("r"))
	require.NoError(t, err)
	<-entered

	assert.Error(t, d.Stop())
}

// gatedSink holds the first QUEUED event until release is closed.
type gatedSink struct {
	audit.Memory
	queued  chan struct{}
	release chan struct{}
	once    atomic.Bool
}

func (g *gatedSink) Append(ctx context.Context, ev models.JobEvent) {
	g.Memory.Append(ctx, ev)
	if ev.Status == models.StatusQueued && g.once.CompareAndSwap(false, true) {
		close(g.queued)
		<-g.release
	}
}

func TestSubmitRacingStopFailsTheJob(t *testing.T) {
	sink := &gatedSink{queued: make(chan struct{}), release: make(chan struct{})}
	d := New(Config{MaxQueueSize: 5, MaxConcurrentJobs: 1, JobTimeout: time.Minute, ShutdownGrace: time.Second}, func(context.Context, models.Job) error { return nil }, sink, logging.Discard())
	ran := make(chan struct{})
	go func() {
		_ = d.Run(context.Background())
		close(ran)
	}()

	type result struct {
		adm models.Admission
		err error
	}
	submitted := make(chan result, 1)
	go func() {
		adm, err := d.Submit(context.Background(), models.ModeSummary, payload("r"))
		submitted <- result{adm, err}
	}()

	<-sink.queued
	require.NoError(t, d.Stop())
	select {
	case <-ran:
	case <-time.After(waitFor):
		t.Fatal("dispatch loop did not return")
	}
	close(sink.release)

	res := <-submitted
	require.NoError(t, res.err)
	assert.EqualValues(t, 0, d.Depth())
	assert.Equal(t, []models.JobStatus{models.StatusQueued, models.StatusFailed}, sink.Statuses(res.adm.RunID))
}

func TestCancelledLoopRefusesLaterSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(Config{MaxQueueSize: 5, MaxConcurrentJobs: 1, JobTimeout: time.Minute}, func(context.Context, models.Job) error { return nil }, &audit.Memory{}, logging.Discard())
	ran := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(ran)
	}()
	cancel()
	<-ran

	_, err := d.Submit(context.Background(), models.ModeSummary, payload("r"))
	assert.ErrorIs(t, err, models.ErrQueueFull)
	assert.EqualValues(t, 0, d.Depth())
}
