package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

type fakeQueue struct {
	full     bool
	mode     models.Mode
	payloads []*models.RFQInput
}

func (f *fakeQueue) Submit(_ context.Context, mode models.Mode, p *models.RFQInput) (models.Admission, error) {
	f.mode = mode
	if f.full {
		return models.Admission{RunID: "rej-1", Status: models.StatusRejected}, fmt.Errorf("%w: queue full (max 50)", models.ErrQueueFull)
	}
	f.payloads = append(f.payloads, p)
	return models.Admission{RunID: "run-1", Status: models.StatusQueued}, nil
}

func (f *fakeQueue) Depth() int64 { return int64(len(f.payloads)) }

func post(h http.HandlerFunc, body string) (*httptest.ResponseRecorder, models.SubmitResponse) {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	var res models.SubmitResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	return rec, res
}

func TestSubmitHTTPQueues(t *testing.T) {
	q := &fakeQueue{}
	in := &intake{queue: q, logger: logging.Discard()}

	rec, res := post(in.submitHTTP(models.ModePricing), `{"rowID":"r-1","Title":"Flange","Product_json":"{\"Name\":\"F\",\"Dwg\":\"https://x/a.pdf\"}"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.SubmitResponse{OK: true, Status: models.StatusQueued, RunID: "run-1", Mode: models.ModePricing}, res)
	assert.Equal(t, models.ModePricing, q.mode)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, []string{"https://x/a.pdf"}, q.payloads[0].AttachmentURLs())
}

func TestSubmitHTTPRejectsWhenFull(t *testing.T) {
	in := &intake{queue: &fakeQueue{full: true}, logger: logging.Discard()}

	rec, res := post(in.submitHTTP(models.ModeSummary), `{"row_id":"r-1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, res.OK)
	assert.Equal(t, models.StatusRejected, res.Status)
	assert.Equal(t, "rej-1", res.RunID)
	assert.Contains(t, res.Error, "queue is full")
}

func TestSubmitHTTPBadRequests(t *testing.T) {
	q := &fakeQueue{}
	in := &intake{queue: q, logger: logging.Discard()}

	rec, res := post(in.submitHTTP(models.ModeSummary), `{"Title":"no row"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rowID is required", res.Error)

	rec, _ = post(in.submitHTTP(models.ModeSummary), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	in.submitHTTP(models.ModeSummary)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, q.payloads)
}

func newEvent(t *testing.T, data any) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("test")
	e.SetType("rfq.submitted")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, data))
	return e
}

func TestSubmitEvent(t *testing.T) {
	q := &fakeQueue{}
	in := &intake{queue: q, logger: logging.Discard()}

	err := in.submitEvent(context.Background(), newEvent(t, map[string]any{
		"mode":    "Summary",
		"payload": map[string]any{"rowID": "r-9", "Title": "Valve"},
	}))
	require.NoError(t, err)
	assert.Equal(t, models.ModeSummary, q.mode)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, "r-9", q.payloads[0].RowID)
}

func TestSubmitEventErrors(t *testing.T) {
	in := &intake{queue: &fakeQueue{full: true}, logger: logging.Discard()}

	err := in.submitEvent(context.Background(), newEvent(t, map[string]any{"mode": "pricing", "payload": map[string]any{"rowID": "r"}}))
	assert.ErrorIs(t, err, models.ErrQueueFull)

	err = in.submitEvent(context.Background(), newEvent(t, map[string]any{"mode": "nope", "payload": map[string]any{"rowID": "r"}}))
	assert.Error(t, err)

	assert.NoError(t, in.submitEvent(context.Background(), newEvent(t, map[string]any{"mode": "pricing", "payload": map[string]any{}})))
}

func TestHealth(t *testing.T) {
	in := &intake{queue: &fakeQueue{payloads: []*models.RFQInput{{}, {}}}, logger: logging.Discard()}
	rec := httptest.NewRecorder()
	in.health(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"queue_depth":2}`, rec.Body.String())
}
