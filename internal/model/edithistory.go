package model

import (
	"encoding/json"
	"time"
)

// EditHistoryEntry is an append-only audit row referencing exactly one of
// FileID, LinkID, or FolderID. It is cascade-deleted with its subject.
type EditHistoryEntry struct {
	ID        string
	FileID    *string
	LinkID    *string
	FolderID  *string
	UserID    *string
	Type      string
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// Edit history Type values. Plain string constants, not an enum type;
// new action kinds can appear without a schema change.
const (
	EditCreate    = "Create"
	EditRename    = "Rename"
	EditMove      = "Move"
	EditPin       = "Pin" // pin/unpin share one audit type, metadata distinguishes
	EditDelete    = "Delete"
	EditReprocess = "Reprocess"
)

// Subject returns whichever of (kind, id) is populated on the entry. It
// panics if zero or more than one subject field is set, since exactly one
// must be populated by construction.
func (e EditHistoryEntry) Subject() (kind, id string) {
	set := 0
	if e.FileID != nil {
		kind, id = "file", *e.FileID
		set++
	}
	if e.LinkID != nil {
		kind, id = "link", *e.LinkID
		set++
	}
	if e.FolderID != nil {
		kind, id = "folder", *e.FolderID
		set++
	}
	if set != 1 {
		panic("model.EditHistoryEntry: exactly one subject field must be set")
	}
	return kind, id
}
