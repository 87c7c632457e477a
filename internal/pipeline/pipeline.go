// Package pipeline implements the processing pipeline: a
// mime-dispatched derivation state machine per file, advancing
// Queued -> Probing -> Deriving -> Indexing -> Done|Failed over the
// image/PDF/office/email/text/html plans.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/filelock"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/service"
)

// Plan derives artifacts from a single file's bytes. Implementations
// are content-addressed: Run must be safe to call repeatedly for the
// same bytes and converge to the same set of GeneratedFile/FilePage
// rows, which every plan satisfies by keying its writes off the
// SHA-256 of the bytes it derives from.
type Plan interface {
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext bundles everything a Plan needs to derive and persist
// artifacts for one file, without each plan importing the full
// Pipeline.
type RunContext struct {
	File []byte // the source file's bytes
	Meta *model.File

	ObjectStore service.ObjectStore
	Generated   service.GeneratedFileRepository
	Pages       service.FilePageRepository
	Files       service.FileRepository

	// EmitChild persists a pipeline-created child File (e.g. an email
	// attachment) and returns it, already written and stored.
	EmitChild func(ctx context.Context, name, mime string, data []byte) (*model.File, error)
}

// sha256Hex is the content-addressing primitive every plan uses to key
// its GeneratedFile rows.
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// putGenerated stores a derived artifact's bytes at a fresh key and
// records the GeneratedFile row. It is a no-op (checked with
// GeneratedFileRepository.Exists before any write) when a row with the
// same (file_id, type, hash) already exists, so repeated pipeline runs
// never duplicate storage objects under a new key for unchanged bytes.
func putGenerated(ctx context.Context, rc *RunContext, genType model.GeneratedType, mime string, data []byte) error {
	hash := sha256Hex(data)
	exists, err := rc.Generated.Exists(ctx, rc.Meta.ID, genType, hash)
	if err != nil {
		return fmt.Errorf("pipeline.putGenerated: check existing: %w", err)
	}
	if exists {
		return nil
	}

	key := fmt.Sprintf("generated/%s/%s/%s", rc.Meta.DocumentBox, rc.Meta.ID, hash)
	if err := rc.ObjectStore.Put(ctx, key, data, mime); err != nil {
		return docboxerr.Wrap(docboxerr.StorageFailure, "store generated artifact", err)
	}

	g := &model.GeneratedFile{
		ID:        randomID(),
		FileID:    rc.Meta.ID,
		Mime:      mime,
		Type:      genType,
		Hash:      hash,
		FileKey:   key,
		CreatedAt: time.Now(),
	}
	if err := rc.Generated.Create(ctx, g); err != nil {
		return fmt.Errorf("pipeline.putGenerated: %w", err)
	}
	return nil
}

// OfficeConverter is the external office-converter RPC:
// POST bytes + source mime, receive PDF bytes.
type OfficeConverter interface {
	ConvertToPDF(ctx context.Context, data []byte, sourceMime string) ([]byte, error)
}

// StageMetrics records pipeline stage timings and index failures.
// Satisfied by *middleware.Metrics without this package importing it.
type StageMetrics interface {
	ObserveStageDuration(stage string, seconds float64)
	ObserveIndexFailure()
}

// Pipeline dispatches a File to the derivation Plan selected by its
// mime family and advances its ProcessingStatus through the state
// machine, serializing all derivations of one file via a per-file
// lock from the filelock registry.
type Pipeline struct {
	Files       service.FileRepository
	Generated   service.GeneratedFileRepository
	Pages       service.FilePageRepository
	Status      service.ProcessingStatusRepository
	ObjectStore service.ObjectStore
	Index       search.Index
	Locks       *filelock.Registry
	Office      OfficeConverter

	// Metrics is optional; a nil Metrics disables stage timing.
	Metrics StageMetrics
}

var _ service.Pipeline = (*Pipeline)(nil)

// Process runs the full Queued->Done|Failed state machine for one
// file. Re-running it for a file whose bytes are unchanged converges to
// the same generated rows and stores no new generated objects. Email
// attachments are not deduplicated: each run emits them again as new
// child Files under new object keys.
func (p *Pipeline) Process(ctx context.Context, documentBox, fileID string) error {
	unlock := p.Locks.Acquire(fileID)
	defer unlock()

	f, err := p.Files.Get(ctx, documentBox, fileID)
	if err != nil {
		return fmt.Errorf("pipeline.Process: get file: %w", err)
	}

	stageStart := time.Now()
	p.setStage(ctx, fileID, model.StageProbing, "", "")
	slog.Info("pipeline probing", "file_id", fileID, "mime", f.Mime)

	data, err := p.ObjectStore.Get(ctx, f.FileKey)
	if err != nil {
		p.fail(ctx, fileID, "probe", err)
		return fmt.Errorf("pipeline.Process: fetch bytes: %w", err)
	}
	p.observeStage(model.StageProbing, stageStart)

	plan := selectPlan(f.Mime, p.Office)

	stageStart = time.Now()
	p.setStage(ctx, fileID, model.StageDeriving, "", "")
	rc := &RunContext{
		File:        data,
		Meta:        f,
		ObjectStore: p.ObjectStore,
		Generated:   p.Generated,
		Pages:       p.Pages,
		Files:       p.Files,
		EmitChild:   p.emitChild(documentBox, f),
	}
	if plan != nil {
		slog.Info("pipeline deriving", "file_id", fileID, "mime", f.Mime)
		if err := plan.Run(ctx, rc); err != nil {
			p.fail(ctx, fileID, "derive", err)
			return docboxerr.Processing("derive", "derivation plan failed", err)
		}
	}
	p.observeStage(model.StageDeriving, stageStart)

	stageStart = time.Now()
	p.setStage(ctx, fileID, model.StageIndexing, "", "")
	if err := p.indexFile(ctx, f); err != nil {
		// Index failures never roll back the ingest; log and continue
		// to Done. An admin reindex recovers the missed write.
		slog.Error("pipeline indexing failed", "file_id", fileID, "error", err)
		if p.Metrics != nil {
			p.Metrics.ObserveIndexFailure()
		}
	}
	p.observeStage(model.StageIndexing, stageStart)

	p.setStage(ctx, fileID, model.StageDone, "", "")
	slog.Info("pipeline done", "file_id", fileID)
	return nil
}

func (p *Pipeline) observeStage(stage model.ProcessingStage, start time.Time) {
	if p.Metrics != nil {
		p.Metrics.ObserveStageDuration(string(stage), time.Since(start).Seconds())
	}
}

// Reprocess re-enters the state machine at Queued for an
// already-ingested file, the admin-triggered recovery path. Safe to
// call repeatedly: every plan is content-addressed, so a reprocess of
// unchanged bytes produces no new GeneratedFile rows.
func (p *Pipeline) Reprocess(ctx context.Context, documentBox, fileID string) error {
	p.setStage(ctx, fileID, model.StageQueued, "", "")
	return p.Process(ctx, documentBox, fileID)
}

func (p *Pipeline) indexFile(ctx context.Context, f *model.File) error {
	pages, err := p.Pages.ListForFile(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("pipeline.indexFile: list pages: %w", err)
	}
	contentPages := make([]search.ContentPage, 0, len(pages))
	for _, pg := range pages {
		contentPages = append(contentPages, search.ContentPage{Page: pg.Page, Text: pg.Content})
	}
	var createdBy string
	if f.CreatedBy != nil {
		createdBy = *f.CreatedBy
	}
	doc := search.IndexDoc{
		ItemID:      f.ID,
		ItemType:    search.ItemFile,
		DocumentBox: f.DocumentBox,
		FolderID:    f.FolderID,
		Name:        f.Name,
		Pages:       contentPages,
		CreatedAt:   f.CreatedAt.Unix(),
		CreatedBy:   createdBy,
		Mime:        f.Mime,
	}
	if err := p.Index.Index(ctx, doc); err != nil {
		return docboxerr.Wrap(docboxerr.IndexFailure, "index file", err)
	}
	return nil
}

func (p *Pipeline) emitChild(documentBox string, parent *model.File) func(ctx context.Context, name, mime string, data []byte) (*model.File, error) {
	return func(ctx context.Context, name, mime string, data []byte) (*model.File, error) {
		hash := sha256Hex(data)
		key := fmt.Sprintf("raw/%s/%s", documentBox, randomID())
		if err := p.ObjectStore.Put(ctx, key, data, mime); err != nil {
			return nil, docboxerr.Wrap(docboxerr.StorageFailure, "store child file", err)
		}
		child := &model.File{
			ID:          randomID(),
			Name:        name,
			Mime:        mime,
			DocumentBox: documentBox,
			FolderID:    parent.FolderID,
			ParentID:    &parent.ID,
			Hash:        hash,
			Size:        int64(len(data)),
			FileKey:     key,
			CreatedAt:   time.Now(),
			CreatedBy:   parent.CreatedBy,
		}
		if err := p.Files.Create(ctx, child); err != nil {
			return nil, fmt.Errorf("pipeline.emitChild: %w", err)
		}
		return child, nil
	}
}

func (p *Pipeline) setStage(ctx context.Context, fileID string, stage model.ProcessingStage, failedStage, reason string) {
	err := p.Status.Upsert(ctx, &model.ProcessingStatus{
		FileID:       fileID,
		Stage:        stage,
		FailedStage:  failedStage,
		FailedReason: reason,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		slog.Error("pipeline failed to persist status", "file_id", fileID, "stage", stage, "error", err)
	}
}

// fail records a terminal Failed{stage, reason} status without
// deleting the underlying File row: the file stays queryable by name
// while the record carries the diagnosis.
func (p *Pipeline) fail(ctx context.Context, fileID, stage string, cause error) {
	slog.Error("pipeline stage failed", "file_id", fileID, "stage", stage, "error", cause)
	p.setStage(ctx, fileID, model.StageFailed, stage, cause.Error())
}
