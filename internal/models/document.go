package models

import "time"

// JobEvent is one status transition of an RFQ job. It is the row shape of the
// audit log and the document shape of the Firestore event collection.
type JobEvent struct {
	Timestamp time.Time `json:"ts" firestore:"ts"`
	RunID     string    `json:"run_id" firestore:"runId"`
	Mode      Mode      `json:"mode" firestore:"mode"`
	RowID     string    `json:"row_id" firestore:"rowId"`
	Status    JobStatus `json:"status" firestore:"status"`
	Message   string    `json:"message,omitempty" firestore:"message,omitempty"`
}

// WritebackRecord is what the Firestore writeback backend stores per RFQ row.
type WritebackRecord struct {
	RowID     string            `firestore:"rowId"`
	Columns   map[string]string `firestore:"columns"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}
