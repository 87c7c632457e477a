package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
)

// IngestMetrics records the outcome of a file ingest. Satisfied by
// *middleware.Metrics without this package importing it.
type IngestMetrics interface {
	ObserveIngest(outcome string)
}

// Ingestion coordinates uploads: direct and presigned entry points,
// each finalizing into the same File-row + edit-history +
// async-derivation path.
type Ingestion struct {
	Files       FileRepository
	EditHistory EditHistoryRepository
	Presign     PresignRepository
	Store       ObjectStore
	Pipeline    Pipeline

	// PresignExpiry is how long a presigned task stays Pending before
	// the sweeper reclaims it.
	PresignExpiry time.Duration

	// Pool bounds background derivations; when its queue is full,
	// direct uploads are refused with TooBusy. A nil Pool disables
	// backpressure (tests, one-shot sweep instances).
	Pool *DerivationPool

	// Metrics is optional; a nil Metrics disables ingest counters.
	Metrics IngestMetrics
}

func (s *Ingestion) observeIngest(outcome string) {
	if s.Metrics != nil {
		s.Metrics.ObserveIngest(outcome)
	}
}

// DirectUploadInput is the per-upload request for streamed bytes.
type DirectUploadInput struct {
	DocumentBox string
	FolderID    string
	Name        string
	Mime        string
	CreatedBy   *string
}

// UploadDirect streams, hashes, and stores an object, then inserts the
// File row in a single logical step, appends an edit-history Create
// entry, and kicks off asynchronous derivation. If object storage or
// the File insert fails, the partial object (if written) is deleted
// rather than left orphaned.
func (s *Ingestion) UploadDirect(ctx context.Context, in DirectUploadInput, r io.Reader) (*model.File, error) {
	release, ok := s.reserveDerivation()
	if !ok {
		s.observeIngest("too_busy")
		return nil, docboxerr.New(docboxerr.TooBusy, "derivation queue full")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		release()
		return nil, fmt.Errorf("service.Ingestion.UploadDirect: read body: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	fileKey := fmt.Sprintf("raw/%s/%s", in.DocumentBox, uuid.NewString())
	if err := s.Store.Put(ctx, fileKey, data, in.Mime); err != nil {
		release()
		s.observeIngest("rejected")
		return nil, docboxerr.Wrap(docboxerr.StorageFailure, "store upload", err)
	}

	f := &model.File{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Mime:        in.Mime,
		DocumentBox: in.DocumentBox,
		FolderID:    in.FolderID,
		Hash:        hash,
		Size:        int64(len(data)),
		FileKey:     fileKey,
		CreatedAt:   time.Now(),
		CreatedBy:   in.CreatedBy,
	}
	if err := s.Files.Create(ctx, f); err != nil {
		release()
		// Schedule delete of the now-orphaned object rather than leave
		// bytes with no owning row.
		if delErr := s.Store.Delete(context.WithoutCancel(ctx), fileKey); delErr != nil {
			slog.Error("ingestion: failed to clean up orphaned object", "key", fileKey, "error", delErr)
		}
		s.observeIngest("rejected")
		return nil, fmt.Errorf("service.Ingestion.UploadDirect: create file row: %w", err)
	}

	if err := s.EditHistory.Append(ctx, &model.EditHistoryEntry{
		ID:        uuid.NewString(),
		FileID:    &f.ID,
		UserID:    in.CreatedBy,
		Type:      model.EditCreate,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("ingestion: failed to append edit history", "file_id", f.ID, "error", err)
	}

	s.observeIngest("accepted")
	s.triggerDerivation(release, in.DocumentBox, f.ID)
	return f, nil
}

// reserveDerivation claims a derivation queue slot, or a no-op slot
// when no Pool is configured.
func (s *Ingestion) reserveDerivation() (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	return s.Pool.Reserve()
}

// triggerDerivation fires the pipeline asynchronously. The queue
// reservation taken at upload entry is held until the derivation
// finishes.
func (s *Ingestion) triggerDerivation(release func(), documentBox, fileID string) {
	run := func(ctx context.Context) {
		if err := s.Pipeline.Process(ctx, documentBox, fileID); err != nil {
			slog.Error("ingestion: background derivation failed", "file_id", fileID, "error", err)
		}
	}
	if s.Pool == nil {
		go func() {
			defer release()
			run(context.Background())
		}()
		return
	}
	s.Pool.Run(release, run)
}

// PresignInput is the request to begin a presigned upload.
type PresignInput struct {
	DocumentBox      string
	FolderID         *string
	ParentID         *string
	Name             string
	Mime             string
	Size             int64
	CreatedBy        *string
	ProcessingConfig []byte
}

// PresignResult carries the PUT URL back to the client alongside the
// tracked task.
type PresignResult struct {
	Task *model.PresignedUploadTask
	URL  string
}

// BeginPresigned creates a Pending PresignedUploadTask and a presigned
// PUT URL keyed under the task's file_key.
func (s *Ingestion) BeginPresigned(ctx context.Context, in PresignInput, expiry time.Duration) (*PresignResult, error) {
	fileKey := fmt.Sprintf("raw/%s/%s", in.DocumentBox, uuid.NewString())
	now := time.Now()

	task := &model.PresignedUploadTask{
		ID:               uuid.NewString(),
		Status:           model.PresignStatus{Tag: model.PresignPending},
		Name:             in.Name,
		Mime:             in.Mime,
		Size:             in.Size,
		DocumentBox:      in.DocumentBox,
		FolderID:         in.FolderID,
		ParentID:         in.ParentID,
		FileKey:          fileKey,
		CreatedAt:        now,
		ExpiresAt:        now.Add(expiry),
		CreatedBy:        in.CreatedBy,
		ProcessingConfig: in.ProcessingConfig,
	}
	if err := s.Presign.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("service.Ingestion.BeginPresigned: %w", err)
	}

	url, err := s.Store.PresignPut(ctx, fileKey, in.Mime, expiry)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.StorageFailure, "presign put url", err)
	}
	return &PresignResult{Task: task, URL: url}, nil
}

// FinalizePresigned is called by the reconciler on an object-created
// event. It verifies the object exists, then runs the same
// finalization path as a direct upload before marking the task
// Completed or Failed.
func (s *Ingestion) FinalizePresigned(ctx context.Context, fileKey string) error {
	task, err := s.Presign.GetByFileKey(ctx, fileKey)
	if err != nil {
		return fmt.Errorf("service.Ingestion.FinalizePresigned: lookup task: %w", err)
	}
	if task.Status.Tag != model.PresignPending {
		return nil // already finalized; events may be delivered more than once
	}
	if task.Expired(time.Now()) {
		return s.failPresign(ctx, task, "expired")
	}

	exists, err := s.Store.Exists(ctx, fileKey)
	if err != nil {
		return docboxerr.Wrap(docboxerr.StorageFailure, "verify presigned object", err)
	}
	if !exists {
		return s.failPresign(ctx, task, "object not found")
	}

	data, err := s.Store.Get(ctx, fileKey)
	if err != nil {
		return docboxerr.Wrap(docboxerr.StorageFailure, "fetch presigned object", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	folderID := ""
	if task.FolderID != nil {
		folderID = *task.FolderID
	}
	f := &model.File{
		ID:          uuid.NewString(),
		Name:        task.Name,
		Mime:        task.Mime,
		DocumentBox: task.DocumentBox,
		FolderID:    folderID,
		ParentID:    task.ParentID,
		Hash:        hash,
		Size:        int64(len(data)),
		FileKey:     fileKey,
		CreatedAt:   time.Now(),
		CreatedBy:   task.CreatedBy,
	}

	// Unlike direct uploads, finalization waits for a derivation slot
	// instead of failing with TooBusy: its pacing comes from the event
	// queue, and an unfinalized task is retried on redelivery anyway.
	release := func() {}
	if s.Pool != nil {
		release, err = s.Pool.ReserveWait(ctx)
		if err != nil {
			return fmt.Errorf("service.Ingestion.FinalizePresigned: reserve derivation: %w", err)
		}
	}

	if err := s.Files.Create(ctx, f); err != nil {
		release()
		return s.failPresign(ctx, task, "file row: "+err.Error())
	}

	if err := s.EditHistory.Append(ctx, &model.EditHistoryEntry{
		ID:        uuid.NewString(),
		FileID:    &f.ID,
		UserID:    task.CreatedBy,
		Type:      model.EditCreate,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("ingestion: failed to append edit history", "file_id", f.ID, "error", err)
	}

	fileID := f.ID
	if err := s.Presign.UpdateStatus(ctx, task.ID, model.PresignStatus{Tag: model.PresignCompleted, FileID: &fileID}); err != nil {
		release()
		return fmt.Errorf("service.Ingestion.FinalizePresigned: mark completed: %w", err)
	}

	s.observeIngest("accepted")
	s.triggerDerivation(release, task.DocumentBox, f.ID)
	return nil
}

func (s *Ingestion) failPresign(ctx context.Context, task *model.PresignedUploadTask, reason string) error {
	s.observeIngest("rejected")
	if err := s.Presign.UpdateStatus(ctx, task.ID, model.PresignStatus{Tag: model.PresignFailed, Reason: &reason}); err != nil {
		return fmt.Errorf("service.Ingestion.failPresign: %w", err)
	}
	return nil
}

// SweepExpired marks every Pending task past its deadline Failed and
// deletes its object if one was ever written. Intended to run on a
// recurring timer (see internal/service.PresignSweeper).
func (s *Ingestion) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.Presign.ListExpiredPending(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("service.Ingestion.SweepExpired: list: %w", err)
	}
	for _, task := range expired {
		if exists, err := s.Store.Exists(ctx, task.FileKey); err == nil && exists {
			if err := s.Store.Delete(ctx, task.FileKey); err != nil {
				slog.Error("sweep: failed to delete expired object", "file_key", task.FileKey, "error", err)
			}
		}
		reason := "expired"
		if err := s.Presign.UpdateStatus(ctx, task.ID, model.PresignStatus{Tag: model.PresignFailed, Reason: &reason}); err != nil {
			slog.Error("sweep: failed to mark task failed", "task_id", task.ID, "error", err)
		}
	}
	return len(expired), nil
}
