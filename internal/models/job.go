package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which prompt and writeback columns a job uses.
type Mode string

const (
	ModeSummary Mode = "summary"
	ModePricing Mode = "pricing"
)

// ParseMode accepts the mode names used by the HTTP routes and the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSummary:
		return ModeSummary, nil
	case ModePricing:
		return ModePricing, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// JobStatus is the lifecycle state of a job. REJECTED is only ever assigned
// at admission and never follows any other state.
type JobStatus string

const (
	StatusQueued   JobStatus = "QUEUED"
	StatusRunning  JobStatus = "RUNNING"
	StatusDone     JobStatus = "DONE"
	StatusFailed   JobStatus = "FAILED"
	StatusTimedOut JobStatus = "TIMED_OUT"
	StatusRejected JobStatus = "REJECTED"
)

// Terminal reports whether no further transition can follow s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusTimedOut, StatusRejected:
		return true
	}
	return false
}

// Job is one admitted RFQ run. It is consumed exactly once.
type Job struct {
	RunID       string
	Mode        Mode
	Payload     *RFQInput
	RowID       string
	SubmittedAt time.Time
}

// Admission is the answer to a submission.
type Admission struct {
	RunID  string
	Status JobStatus
}
