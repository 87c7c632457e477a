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

// FolderRepo implements service.FolderRepository with pgx.
type FolderRepo struct {
	pool *pgxpool.Pool
}

// NewFolderRepo creates a FolderRepo.
func NewFolderRepo(pool *pgxpool.Pool) *FolderRepo {
	return &FolderRepo{pool: pool}
}

var _ service.FolderRepository = (*FolderRepo)(nil)

func (r *FolderRepo) Create(ctx context.Context, f *model.Folder) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO folders (id, name, document_box, folder_id, pinned, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.Name, f.DocumentBox, f.FolderID, f.Pinned, f.CreatedAt, f.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("repository.FolderRepo.Create: %w", err)
	}
	return nil
}

func (r *FolderRepo) Get(ctx context.Context, documentBox, id string) (*model.Folder, error) {
	var f model.Folder
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, document_box, folder_id, pinned, created_at, created_by
		 FROM folders WHERE document_box = $1 AND id = $2`,
		documentBox, id,
	).Scan(&f.ID, &f.Name, &f.DocumentBox, &f.FolderID, &f.Pinned, &f.CreatedAt, &f.CreatedBy)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "folder "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FolderRepo.Get: %w", err)
	}
	return &f, nil
}

func (r *FolderRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Folder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, document_box, folder_id, pinned, created_at, created_by
		 FROM folders WHERE document_box = $1 ORDER BY name`,
		documentBox,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FolderRepo.ListByDocumentBox: %w", err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.DocumentBox, &f.FolderID, &f.Pinned, &f.CreatedAt, &f.CreatedBy); err != nil {
			return nil, fmt.Errorf("repository.FolderRepo.ListByDocumentBox: scan: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, nil
}

func (r *FolderRepo) Rename(ctx context.Context, documentBox, id, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE folders SET name = $1 WHERE document_box = $2 AND id = $3`,
		name, documentBox, id,
	)
	if err != nil {
		return fmt.Errorf("repository.FolderRepo.Rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "folder "+id)
	}
	return nil
}

func (r *FolderRepo) Move(ctx context.Context, documentBox, id string, newParent string) error {
	if id == newParent {
		return docboxerr.New(docboxerr.Conflict, "a folder cannot be its own parent")
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE folders SET folder_id = $1 WHERE document_box = $2 AND id = $3`,
		newParent, documentBox, id,
	)
	if err != nil {
		return fmt.Errorf("repository.FolderRepo.Move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "folder "+id)
	}
	return nil
}

func (r *FolderRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE folders SET pinned = $1 WHERE document_box = $2 AND id = $3`,
		pinned, documentBox, id,
	)
	if err != nil {
		return fmt.Errorf("repository.FolderRepo.SetPinned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "folder "+id)
	}
	return nil
}

// Delete removes a folder. The schema's ON DELETE RESTRICT on
// files.folder_id turns an attempt to delete a folder with file
// children into a foreign-key violation, surfaced as Conflict so no
// file is ever orphaned.
func (r *FolderRepo) Delete(ctx context.Context, documentBox, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM folders WHERE document_box = $1 AND id = $2`,
		documentBox, id,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return docboxerr.New(docboxerr.Conflict, "folder has files and cannot be deleted")
		}
		return fmt.Errorf("repository.FolderRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "folder "+id)
	}
	return nil
}
