package audit

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Firestore adds one document per event to a collection.
type Firestore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewFirestore(client *firestore.Client, collection string, logger *slog.Logger) *Firestore {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firestore{client: client, collection: collection, logger: logger}
}

func (f *Firestore) Append(ctx context.Context, ev models.JobEvent) {
	// The job context may already be cancelled when a timeout is recorded.
	ctx = context.WithoutCancel(ctx)
	if _, _, err := f.client.Collection(f.collection).Add(ctx, ev); err != nil {
		f.logger.Error("Failed to write job event to Firestore.", "error", err, "runId", ev.RunID, "status", ev.Status)
	}
}
