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

// LinkMetaRepo implements service.LinkMetadataRepository with pgx,
// backing the resolved_link_metadata cache table.
type LinkMetaRepo struct {
	pool *pgxpool.Pool
}

// NewLinkMetaRepo creates a LinkMetaRepo.
func NewLinkMetaRepo(pool *pgxpool.Pool) *LinkMetaRepo {
	return &LinkMetaRepo{pool: pool}
}

var _ service.LinkMetadataRepository = (*LinkMetaRepo)(nil)

func (r *LinkMetaRepo) Get(ctx context.Context, url string) (*model.ResolvedLinkMetadata, error) {
	var m model.ResolvedLinkMetadata
	err := r.pool.QueryRow(ctx,
		`SELECT url, title, description, favicon, image, expires_at
		 FROM resolved_link_metadata WHERE url = $1`,
		url,
	).Scan(&m.URL, &m.Title, &m.Description, &m.Favicon, &m.Image, &m.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "resolved metadata for "+url)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.LinkMetaRepo.Get: %w", err)
	}
	return &m, nil
}

func (r *LinkMetaRepo) Put(ctx context.Context, m *model.ResolvedLinkMetadata) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO resolved_link_metadata (url, title, description, favicon, image, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (url) DO UPDATE SET
		   title = EXCLUDED.title, description = EXCLUDED.description,
		   favicon = EXCLUDED.favicon, image = EXCLUDED.image, expires_at = EXCLUDED.expires_at`,
		m.URL, m.Title, m.Description, m.Favicon, m.Image, m.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("repository.LinkMetaRepo.Put: %w", err)
	}
	return nil
}
