// Package service hosts the orchestration logic — upload
// coordination, presigned-task lifecycle, and the search engine —
// plus the small repository/client interfaces those orchestrators
// depend on. Interfaces live here and are satisfied by concrete types
// in internal/repository, internal/objectstore, and internal/search.
package service

import (
	"context"
	"time"

	"github.com/docbox-nz/docbox/internal/model"
)

// FolderRepository persists Folder rows.
type FolderRepository interface {
	Create(ctx context.Context, f *model.Folder) error
	Get(ctx context.Context, documentBox, id string) (*model.Folder, error)
	ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Folder, error)
	Rename(ctx context.Context, documentBox, id, name string) error
	Move(ctx context.Context, documentBox, id string, newParent string) error
	SetPinned(ctx context.Context, documentBox, id string, pinned bool) error
	// Delete removes a folder. A folder that still holds files must be
	// rejected; repository.FolderRepo enforces that via a DB
	// constraint, Delete itself does not.
	Delete(ctx context.Context, documentBox, id string) error
}

// FileRepository persists File rows.
type FileRepository interface {
	Create(ctx context.Context, f *model.File) error
	Get(ctx context.Context, documentBox, id string) (*model.File, error)
	ListByDocumentBox(ctx context.Context, documentBox string) ([]model.File, error)
	ListByFolder(ctx context.Context, documentBox, folderID string) ([]model.File, error)
	Rename(ctx context.Context, documentBox, id, name string) error
	Move(ctx context.Context, documentBox, id string, newFolder string) error
	SetPinned(ctx context.Context, documentBox, id string, pinned bool) error
	// ClearParent nulls parent_id on every child of id, used when a
	// progenitor File is deleted so attachments may outlive it.
	ClearParent(ctx context.Context, documentBox, id string) error
	Delete(ctx context.Context, documentBox, id string) error
}

// LinkRepository persists Link rows.
type LinkRepository interface {
	Create(ctx context.Context, l *model.Link) error
	Get(ctx context.Context, documentBox, id string) (*model.Link, error)
	ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Link, error)
	Rename(ctx context.Context, documentBox, id, name string) error
	SetPinned(ctx context.Context, documentBox, id string, pinned bool) error
	Delete(ctx context.Context, documentBox, id string) error
}

// GeneratedFileRepository persists derived artifacts.
type GeneratedFileRepository interface {
	// Create is a no-op when a row with
	// the same (file_id, type, hash) already exists, keeping
	// derivation content-addressed.
	Create(ctx context.Context, g *model.GeneratedFile) error
	ListForFile(ctx context.Context, fileID string) ([]model.GeneratedFile, error)
	Exists(ctx context.Context, fileID string, genType model.GeneratedType, hash string) (bool, error)
}

// FilePageRepository persists extracted page text.
type FilePageRepository interface {
	// Upsert replaces the page's content if it already exists
	// (re-running the pipeline must converge, not duplicate pages).
	Upsert(ctx context.Context, p *model.FilePage) error
	ListForFile(ctx context.Context, fileID string) ([]model.FilePage, error)
	DeleteForFile(ctx context.Context, fileID string) error
}

// ProcessingStatusRepository persists the per-file pipeline state
// machine record.
type ProcessingStatusRepository interface {
	// Upsert writes the current stage, clearing any prior failure
	// detail unless the new stage is itself Failed.
	Upsert(ctx context.Context, s *model.ProcessingStatus) error
	Get(ctx context.Context, fileID string) (*model.ProcessingStatus, error)
}

// EditHistoryRepository appends and reads the audit trail.
type EditHistoryRepository interface {
	Append(ctx context.Context, e *model.EditHistoryEntry) error
	// LatestForSubject returns the most recent edit for exactly one of
	// (fileID|linkID|folderID).
	LatestForSubject(ctx context.Context, kind, id string) (*model.EditHistoryEntry, error)
}

// PresignRepository persists presigned-upload tasks.
type PresignRepository interface {
	Create(ctx context.Context, t *model.PresignedUploadTask) error
	Get(ctx context.Context, id string) (*model.PresignedUploadTask, error)
	GetByFileKey(ctx context.Context, fileKey string) (*model.PresignedUploadTask, error)
	UpdateStatus(ctx context.Context, id string, status model.PresignStatus) error
	ListExpiredPending(ctx context.Context, now time.Time) ([]model.PresignedUploadTask, error)
}

// LinkMetadataRepository persists the resolved_link_metadata cache
// table.
type LinkMetadataRepository interface {
	Get(ctx context.Context, url string) (*model.ResolvedLinkMetadata, error)
	Put(ctx context.Context, m *model.ResolvedLinkMetadata) error
}

// ObjectStore is the subset of internal/objectstore.Client the
// orchestration layer needs, kept as an interface so tests can
// substitute an in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// Pipeline is the subset of internal/pipeline.Pipeline the ingestion
// coordinator depends on.
type Pipeline interface {
	Process(ctx context.Context, documentBox, fileID string) error
}
