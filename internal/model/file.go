package model

import "time"

// File is an uploaded binary plus its location in a document box's folder
// tree. ParentID links a derived file (e.g. an email attachment) back to
// the File it was extracted from; it is nulled, not cascaded, when the
// progenitor is deleted.
type File struct {
	ID          string
	Name        string
	Mime        string
	DocumentBox string
	FolderID    string
	ParentID    *string
	Hash        string
	Size        int64
	Encrypted   bool
	Pinned      bool
	FileKey     string
	CreatedAt   time.Time
	CreatedBy   *string
}

// GeneratedType enumerates the artifact kinds the processing pipeline can
// attach to a File. (file_id, type) is unique except for the two
// thumbnail tiers.
type GeneratedType string

const (
	GeneratedCoverPage      GeneratedType = "CoverPage"
	GeneratedSmallThumbnail GeneratedType = "SmallThumbnail"
	GeneratedLargeThumbnail GeneratedType = "LargeThumbnail"
	GeneratedPdf            GeneratedType = "Pdf"
	GeneratedHtmlContent    GeneratedType = "HtmlContent"
	GeneratedTextContent    GeneratedType = "TextContent"
	GeneratedJsonMetadata   GeneratedType = "JsonMetadata"
	GeneratedEmail          GeneratedType = "Email"
)

// GeneratedFile is a derived artifact produced by the processing pipeline
// from a source File's bytes. Hash is the SHA-256 of the artifact's
// source bytes and is what makes re-running the pipeline idempotent: a
// GeneratedFile with a matching (FileID, Type, Hash) already existing
// means the derivation step is a no-op.
type GeneratedFile struct {
	ID        string
	FileID    string
	Mime      string
	Type      GeneratedType
	Hash      string
	FileKey   string
	CreatedAt time.Time
}

// FilePage is one page's worth of extracted text, 1-indexed. No gaps are
// required between pages but (FileID, Page) must be unique.
type FilePage struct {
	FileID  string
	Page    int
	Content string
}
