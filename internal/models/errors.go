package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetch marks fetch failures worth retrying (HEAD probes only).
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrNetwork wraps transport-level failures of a GET.
	ErrNetwork = errors.New("network error")
	// ErrSizeLimit is returned when an attachment exceeds the byte ceiling.
	ErrSizeLimit = errors.New("attachment exceeds size limit")
	// ErrParse marks a malformed or unsupported document.
	ErrParse = errors.New("parse error")
	// ErrAuth means a collaborator credential is missing or rejected.
	ErrAuth = errors.New("missing or invalid credentials")
	// ErrProviderExhausted means every configured model failed.
	ErrProviderExhausted = errors.New("all providers failed")
	// ErrQueueFull is returned on admission when the queue is saturated.
	ErrQueueFull = errors.New("job queue is full")
	// ErrJobTimeout is recorded when a job exceeds its wall-clock budget.
	ErrJobTimeout = errors.New("job timed out")
)

// HTTPStatusError is a non-2xx response to an attachment GET.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
