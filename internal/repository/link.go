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

// LinkRepo implements service.LinkRepository with pgx.
type LinkRepo struct {
	pool *pgxpool.Pool
}

// NewLinkRepo creates a LinkRepo.
func NewLinkRepo(pool *pgxpool.Pool) *LinkRepo {
	return &LinkRepo{pool: pool}
}

var _ service.LinkRepository = (*LinkRepo)(nil)

const linkColumns = `id, name, value, document_box, pinned, folder_id, created_at, created_by`

func (r *LinkRepo) Create(ctx context.Context, l *model.Link) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO links (id, name, value, document_box, pinned, folder_id, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.Name, l.Value, l.DocumentBox, l.Pinned, l.FolderID, l.CreatedAt, l.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("repository.LinkRepo.Create: %w", err)
	}
	return nil
}

func (r *LinkRepo) Get(ctx context.Context, documentBox, id string) (*model.Link, error) {
	var l model.Link
	err := r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE document_box = $1 AND id = $2`,
		documentBox, id,
	).Scan(&l.ID, &l.Name, &l.Value, &l.DocumentBox, &l.Pinned, &l.FolderID, &l.CreatedAt, &l.CreatedBy)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "link "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.LinkRepo.Get: %w", err)
	}
	return &l, nil
}

func (r *LinkRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Link, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+linkColumns+` FROM links WHERE document_box = $1 ORDER BY name`, documentBox)
	if err != nil {
		return nil, fmt.Errorf("repository.LinkRepo.ListByDocumentBox: %w", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.ID, &l.Name, &l.Value, &l.DocumentBox, &l.Pinned, &l.FolderID, &l.CreatedAt, &l.CreatedBy); err != nil {
			return nil, fmt.Errorf("repository.LinkRepo.ListByDocumentBox: scan: %w", err)
		}
		links = append(links, l)
	}
	return links, nil
}

func (r *LinkRepo) Rename(ctx context.Context, documentBox, id, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE links SET name = $1 WHERE document_box = $2 AND id = $3`, name, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.LinkRepo.Rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "link "+id)
	}
	return nil
}

func (r *LinkRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE links SET pinned = $1 WHERE document_box = $2 AND id = $3`, pinned, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.LinkRepo.SetPinned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "link "+id)
	}
	return nil
}

func (r *LinkRepo) Delete(ctx context.Context, documentBox, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM links WHERE document_box = $1 AND id = $2`, documentBox, id)
	if err != nil {
		return fmt.Errorf("repository.LinkRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docboxerr.New(docboxerr.NotFound, "link "+id)
	}
	return nil
}
