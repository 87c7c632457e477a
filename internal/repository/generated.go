package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/service"
)

// GeneratedFileRepo implements service.GeneratedFileRepository with pgx.
type GeneratedFileRepo struct {
	pool *pgxpool.Pool
}

// NewGeneratedFileRepo creates a GeneratedFileRepo.
func NewGeneratedFileRepo(pool *pgxpool.Pool) *GeneratedFileRepo {
	return &GeneratedFileRepo{pool: pool}
}

var _ service.GeneratedFileRepository = (*GeneratedFileRepo)(nil)

// Create inserts the row, or is a no-op if a row with the same
// (file_id, type, hash) already exists — the content-addressed
// idempotence the pipeline relies on, implemented with ON CONFLICT DO
// NOTHING against a unique index on (file_id, type, hash).
func (r *GeneratedFileRepo) Create(ctx context.Context, g *model.GeneratedFile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO generated_files (id, file_id, mime, type, hash, file_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (file_id, type, hash) DO NOTHING`,
		g.ID, g.FileID, g.Mime, g.Type, g.Hash, g.FileKey, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.GeneratedFileRepo.Create: %w", err)
	}
	return nil
}

func (r *GeneratedFileRepo) ListForFile(ctx context.Context, fileID string) ([]model.GeneratedFile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, file_id, mime, type, hash, file_key, created_at
		 FROM generated_files WHERE file_id = $1 ORDER BY created_at`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.GeneratedFileRepo.ListForFile: %w", err)
	}
	defer rows.Close()

	var out []model.GeneratedFile
	for rows.Next() {
		var g model.GeneratedFile
		if err := rows.Scan(&g.ID, &g.FileID, &g.Mime, &g.Type, &g.Hash, &g.FileKey, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.GeneratedFileRepo.ListForFile: scan: %w", err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *GeneratedFileRepo) Exists(ctx context.Context, fileID string, genType model.GeneratedType, hash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM generated_files WHERE file_id = $1 AND type = $2 AND hash = $3)`,
		fileID, genType, hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository.GeneratedFileRepo.Exists: %w", err)
	}
	return exists, nil
}

// FilePageRepo implements service.FilePageRepository with pgx.
type FilePageRepo struct {
	pool *pgxpool.Pool
}

// NewFilePageRepo creates a FilePageRepo.
func NewFilePageRepo(pool *pgxpool.Pool) *FilePageRepo {
	return &FilePageRepo{pool: pool}
}

var _ service.FilePageRepository = (*FilePageRepo)(nil)

// Upsert replaces the page's content if the (file_id, page) row already
// exists, so re-running the pipeline converges instead of duplicating.
func (r *FilePageRepo) Upsert(ctx context.Context, p *model.FilePage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO file_pages (file_id, page, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (file_id, page) DO UPDATE SET content = EXCLUDED.content`,
		p.FileID, p.Page, p.Content,
	)
	if err != nil {
		return fmt.Errorf("repository.FilePageRepo.Upsert: %w", err)
	}
	return nil
}

func (r *FilePageRepo) ListForFile(ctx context.Context, fileID string) ([]model.FilePage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT file_id, page, content FROM file_pages WHERE file_id = $1 ORDER BY page`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FilePageRepo.ListForFile: %w", err)
	}
	defer rows.Close()

	var out []model.FilePage
	for rows.Next() {
		var p model.FilePage
		if err := rows.Scan(&p.FileID, &p.Page, &p.Content); err != nil {
			return nil, fmt.Errorf("repository.FilePageRepo.ListForFile: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *FilePageRepo) DeleteForFile(ctx context.Context, fileID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM file_pages WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("repository.FilePageRepo.DeleteForFile: %w", err)
	}
	return nil
}
