package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Submitter is the part of the dispatcher the entry points use.
type Submitter interface {
	Submit(ctx context.Context, mode models.Mode, payload *models.RFQInput) (models.Admission, error)
	Depth() int64
}

type intake struct {
	queue  Submitter
	logger *slog.Logger
}

// submitHTTP returns the handler of one mode: 202 when queued, 429 when the
// queue is full, 400 for an unreadable body or a missing rowID.
func (in *intake) submitHTTP(mode models.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		var payload models.RFQInput
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			in.logger.Warn("Could not decode request body", "error", err, "mode", mode)
			writeJSON(w, http.StatusBadRequest, models.SubmitResponse{Mode: mode, Error: "could not parse JSON"})
			return
		}
		if payload.RowID == "" {
			writeJSON(w, http.StatusBadRequest, models.SubmitResponse{Mode: mode, Error: "rowID is required"})
			return
		}

		adm, err := in.queue.Submit(r.Context(), mode, &payload)
		res := models.SubmitResponse{OK: err == nil, Status: adm.Status, RunID: adm.RunID, Mode: mode}
		switch {
		case errors.Is(err, models.ErrQueueFull):
			res.Error = err.Error()
			writeJSON(w, http.StatusTooManyRequests, res)
		case err != nil:
			in.logger.Error("Failed to submit job", "error", err, "rowId", payload.RowID)
			res.Error = "failed to submit job"
			writeJSON(w, http.StatusInternalServerError, res)
		default:
			writeJSON(w, http.StatusAccepted, res)
		}
	}
}

// submitEvent accepts a CloudEvent carrying {mode, payload}. A full queue is
// returned as an error so the trigger redelivers the event.
func (in *intake) submitEvent(ctx context.Context, e cloudevents.Event) error {
	var ev models.SubmitEvent
	if err := json.Unmarshal(e.Data(), &ev); err != nil {
		in.logger.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	mode, err := models.ParseMode(ev.Mode)
	if err != nil {
		in.logger.Error("Event carries an unknown mode", "error", err, "eventId", e.ID())
		return err
	}
	if ev.Payload.RowID == "" {
		in.logger.Warn("Event payload has no rowID, dropping.", "eventId", e.ID())
		return nil
	}

	adm, err := in.queue.Submit(ctx, mode, &ev.Payload)
	if err != nil {
		return fmt.Errorf("submit %s for row %s: %w", mode, ev.Payload.RowID, err)
	}
	in.logger.Info("Event queued.", "eventId", e.ID(), "runId", adm.RunID, "mode", mode)
	return nil
}

func (in *intake) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queue_depth": in.queue.Depth()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
