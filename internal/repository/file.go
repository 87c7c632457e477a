package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/service"
)

// FileRepo implements service.FileRepository with pgx.
type FileRepo struct {
	pool *pgxpool.Pool
}

// NewFileRepo creates a FileRepo.
func NewFileRepo(pool *pgxpool.Pool) *FileRepo {
	return &FileRepo{pool: pool}
}

var _ service.FileRepository = (*FileRepo)(nil)

func (r *FileRepo) Create(ctx context.Context, f *model.File) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO files (id, name, mime, document_box, folder_id, parent_id, hash, size, encrypted, pinned, file_key, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.Name, f.Mime, f.DocumentBox, f.FolderID, f.ParentID, f.Hash, f.Size,
		f.Encrypted, f.Pinned, f.FileKey, f.CreatedAt, f.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.Create: %w", err)
	}
	return nil
}

const fileColumns = `id, name, mime, document_box, folder_id, parent_id, hash, size, encrypted, pinned, file_key, created_at, created_by`

func scanFile(row pgx.Row) (*model.File, error) {
	var f model.File
	err := row.Scan(&f.ID, &f.Name, &f.Mime, &f.DocumentBox, &f.FolderID, &f.ParentID,
		&f.Hash, &f.Size, &f.Encrypted, &f.Pinned, &f.FileKey, &f.CreatedAt, &f.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FileRepo) Get(ctx context.Context, documentBox, id string) (*model.File, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE document_box = $1 AND id = $2`,
		documentBox, id,
	)
	f, err := scanFile(row)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "file "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FileRepo.Get: %w", err)
	}
	return f, nil
}

func (r *FileRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.File, error) {
	return r.list(ctx, `SELECT `+fileColumns+` FROM files WHERE document_box = $1 ORDER BY name`, documentBox)
}

func (r *FileRepo) ListByFolder(ctx context.Context, documentBox, folderID string) ([]model.File, error) {
	return r.list(ctx, `SELECT `+fileColumns+` FROM files WHERE document_box = $1 AND folder_id = $2 ORDER BY name`, documentBox, folderID)
}

func (r *FileRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.File, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.FileRepo.list: %w", err)
	}
	defer rows.Close()

	var files []model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.FileRepo.list: scan: %w", err)
		}
		files = append(files, *f)
	}
	return files, nil
}

func (r *FileRepo) Rename(ctx context.Context, documentBox, id, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET name = $1 WHERE document_box = $2 AND id = $3`, name, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.Rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "file "+id)
	}
	return nil
}

func (r *FileRepo) Move(ctx context.Context, documentBox, id string, newFolder string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET folder_id = $1 WHERE document_box = $2 AND id = $3`, newFolder, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.Move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "file "+id)
	}
	return nil
}

func (r *FileRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET pinned = $1 WHERE document_box = $2 AND id = $3`, pinned, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.SetPinned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "file "+id)
	}
	return nil
}

// ClearParent nulls parent_id on every child of id so attachments may
// outlive their progenitor.
func (r *FileRepo) ClearParent(ctx context.Context, documentBox, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE files SET parent_id = NULL WHERE document_box = $1 AND parent_id = $2`, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.ClearParent: %w", err)
	}
	return nil
}

func (r *FileRepo) Delete(ctx context.Context, documentBox, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE document_box = $1 AND id = $2`, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.FileRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "file "+id)
	}
	return nil
}
