package gcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// NewFirestoreClient creates a Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// CredentialsFromB64 decodes a base64 service account JSON into a client
// option. The first non-empty value wins; none set means ambient credentials.
func CredentialsFromB64(values ...string) ([]option.ClientOption, error) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode service account json: %w", err)
		}
		return []option.ClientOption{option.WithCredentialsJSON(raw)}, nil
	}
	return nil, nil
}
