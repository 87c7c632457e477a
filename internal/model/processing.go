package model

import "time"

// ProcessingStage is a file's position in the pipeline state machine:
// Queued -> Probing -> Deriving -> Indexing -> Done | Failed.
type ProcessingStage string

const (
	StageQueued   ProcessingStage = "Queued"
	StageProbing  ProcessingStage = "Probing"
	StageDeriving ProcessingStage = "Deriving"
	StageIndexing ProcessingStage = "Indexing"
	StageDone     ProcessingStage = "Done"
	StageFailed   ProcessingStage = "Failed"
)

// ProcessingStatus is the per-file processing record. FailedStage and
// FailedReason are only set when Stage == StageFailed; a failure never
// deletes the underlying File row, so the file stays queryable by name
// while the record carries the diagnosis for an admin reprocess.
type ProcessingStatus struct {
	FileID       string
	Stage        ProcessingStage
	FailedStage  string
	FailedReason string
	UpdatedAt    time.Time
}
