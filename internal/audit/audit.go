// Package audit records job status transitions. Sinks never return errors:
// a failed write is logged and dropped so that it cannot change the outcome
// of the job being recorded.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Sink receives job events.
type Sink interface {
	Append(ctx context.Context, ev models.JobEvent)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Append(context.Context, models.JobEvent) {}

// Slog writes events to a structured logger.
type Slog struct {
	Logger *slog.Logger
}

func (s Slog) Append(ctx context.Context, ev models.JobEvent) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	level := slog.LevelInfo
	switch ev.Status {
	case models.StatusFailed, models.StatusTimedOut:
		level = slog.LevelError
	case models.StatusRejected:
		level = slog.LevelWarn
	}
	l.Log(ctx, level, "Job status changed.",
		"runId", ev.RunID, "mode", ev.Mode, "rowId", ev.RowID, "status", ev.Status, "message", ev.Message)
}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Append(ctx context.Context, ev models.JobEvent) {
	for _, s := range m {
		if s != nil {
			s.Append(ctx, ev)
		}
	}
}

// Memory keeps events in process. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (m *Memory) Append(_ context.Context, ev models.JobEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []models.JobEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JobEvent(nil), m.events...)
}

// Statuses lists the statuses recorded for one run, in order.
func (m *Memory) Statuses(runID string) []models.JobStatus {
	var out []models.JobStatus
	for _, ev := range m.Events() {
		if ev.RunID == runID {
			out = append(out, ev.Status)
		}
	}
	return out
}

// Count returns how many events carry status.
func (m *Memory) Count(status models.JobStatus) int {
	n := 0
	for _, ev := range m.Events() {
		if ev.Status == status {
			n++
		}
	}
	return n
}
