package model

import (
	"encoding/json"
	"time"
)

// PresignStatusTag discriminates the PresignedUploadTask.Status
// variant, stored as a tagged JSON object {"tag": "...", ...fields}
// carrying a payload where the state needs one (FileID on completion,
// reason on failure).
type PresignStatusTag string

const (
	PresignPending   PresignStatusTag = "Pending"
	PresignCompleted PresignStatusTag = "Completed"
	PresignFailed    PresignStatusTag = "Failed"
)

// PresignStatus is the Go-side representation of the tagged
// Pending|Completed{file_id}|Failed{reason} variant.
type PresignStatus struct {
	Tag    PresignStatusTag `json:"tag"`
	FileID *string          `json:"fileId,omitempty"`
	Reason *string          `json:"reason,omitempty"`
}

// MarshalStatus serializes a PresignStatus for the PresignedUploadTask.Status column.
func MarshalStatus(s PresignStatus) (json.RawMessage, error) {
	return json.Marshal(s)
}

// PresignedUploadTask is a durable record of an upload the client intends
// to complete directly against the object store. Reconciled out of band
// by the S3 event reconciler.
type PresignedUploadTask struct {
	ID               string
	Status           PresignStatus
	Name             string
	Mime             string
	Size             int64
	DocumentBox      string
	FolderID         *string
	ParentID         *string
	FileKey          string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	CreatedBy        *string
	ProcessingConfig json.RawMessage
}

// Expired reports whether the task's deadline has passed as of now.
func (t PresignedUploadTask) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
