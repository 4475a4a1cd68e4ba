// Package archive persists run records to object storage.
package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/gcp"
)

// Store writes one named object.
type Store interface {
	Put(ctx context.Context, name string, body []byte, contentType string) error
}

// Nop drops every object.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte, string) error { return nil }

// GCS writes objects to a Cloud Storage bucket, never overwriting.
type GCS struct {
	bucket *storage.BucketHandle
	name   string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{bucket: client.Bucket(bucket), name: bucket}
}

func (g *GCS) Put(ctx context.Context, name string, body []byte, contentType string) error {
	if err := gcp.SaveToGCSAtomically(ctx, g.bucket, name, body, contentType); err != nil {
		return fmt.Errorf("archive gs://%s/%s: %w", g.name, name, err)
	}
	return nil
}

// ObjectName is where the record of a run is stored.
func ObjectName(mode, rowID, runID string) string {
	if rowID == "" {
		rowID = "_no_row"
	}
	return fmt.Sprintf("runs/%s/%s/%s.json", mode, rowID, runID)
}
