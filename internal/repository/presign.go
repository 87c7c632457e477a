package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/service"
)

// PresignRepo implements service.PresignRepository with pgx.
type PresignRepo struct {
	pool *pgxpool.Pool
}

// NewPresignRepo creates a PresignRepo.
func NewPresignRepo(pool *pgxpool.Pool) *PresignRepo {
	return &PresignRepo{pool: pool}
}

var _ service.PresignRepository = (*PresignRepo)(nil)

const presignColumns = `id, status, name, mime, size, document_box, folder_id, parent_id, file_key, created_at, expires_at, created_by, processing_config`

func scanPresign(row pgx.Row) (*model.PresignedUploadTask, error) {
	var t model.PresignedUploadTask
	var statusRaw []byte
	err := row.Scan(&t.ID, &statusRaw, &t.Name, &t.Mime, &t.Size, &t.DocumentBox, &t.FolderID,
		&t.ParentID, &t.FileKey, &t.CreatedAt, &t.ExpiresAt, &t.CreatedBy, &t.ProcessingConfig)
	if err != nil {
		return nil, err
	}
	if err := jsonUnmarshalStatus(statusRaw, &t.Status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &t, nil
}

func (r *PresignRepo) Create(ctx context.Context, t *model.PresignedUploadTask) error {
	statusJSON, err := model.MarshalStatus(t.Status)
	if err != nil {
		return fmt.Errorf("repository.PresignRepo.Create: marshal status: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO presigned_upload_tasks (id, status, name, mime, size, document_box, folder_id, parent_id, file_key, created_at, expires_at, created_by, processing_config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, statusJSON, t.Name, t.Mime, t.Size, t.DocumentBox, t.FolderID, t.ParentID,
		t.FileKey, t.CreatedAt, t.ExpiresAt, t.CreatedBy, t.ProcessingConfig,
	)
	if err != nil {
		return fmt.Errorf("repository.PresignRepo.Create: %w", err)
	}
	return nil
}

func (r *PresignRepo) Get(ctx context.Context, id string) (*model.PresignedUploadTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+presignColumns+` FROM presigned_upload_tasks WHERE id = $1`, id)
	t, err := scanPresign(row)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "presigned upload task "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.PresignRepo.Get: %w", err)
	}
	return t, nil
}

func (r *PresignRepo) GetByFileKey(ctx context.Context, fileKey string) (*model.PresignedUploadTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+presignColumns+` FROM presigned_upload_tasks WHERE file_key = $1`, fileKey)
	t, err := scanPresign(row)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "presigned upload task for key "+fileKey)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.PresignRepo.GetByFileKey: %w", err)
	}
	return t, nil
}

func (r *PresignRepo) UpdateStatus(ctx context.Context, id string, status model.PresignStatus) error {
	statusJSON, err := model.MarshalStatus(status)
	if err != nil {
		return fmt.Errorf("repository.PresignRepo.UpdateStatus: marshal: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE presigned_upload_tasks SET status = $1 WHERE id = $2`, statusJSON, id)
	if err != nil {
		return fmt.Errorf("repository.PresignRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "presigned upload task "+id)
	}
	return nil
}

func (r *PresignRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]model.PresignedUploadTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+presignColumns+` FROM presigned_upload_tasks
		 WHERE expires_at < $1 AND status->>'tag' = 'Pending'`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.PresignRepo.ListExpiredPending: %w", err)
	}
	defer rows.Close()

	var out []model.PresignedUploadTask
	for rows.Next() {
		t, err := scanPresign(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.PresignRepo.ListExpiredPending: scan: %w", err)
		}
		out = append(out, *t)
	}
	return out, nil
}
