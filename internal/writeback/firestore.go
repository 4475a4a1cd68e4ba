package writeback

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Firestore keeps one document per RFQ row in a collection.
type Firestore struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(client *firestore.Client, collection string) *Firestore {
	return &Firestore{client: client, collection: collection}
}

func (f *Firestore) Upsert(ctx context.Context, key string, columns map[string]string) error {
	coll := f.client.Collection(f.collection)
	iter := coll.Where("rowId", "==", key).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		rec := models.WritebackRecord{RowID: key, Columns: columns, UpdatedAt: time.Now()}
		if _, _, err := coll.Add(ctx, rec); err != nil {
			return fmt.Errorf("failed to add writeback document for %s: %w", key, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query writeback document for %s: %w", key, err)
	}

	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now()}}
	for col, v := range columns {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"columns", col}, Value: v})
	}
	if _, err := doc.Ref.Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update writeback document for %s: %w", key, err)
	}
	return nil
}
