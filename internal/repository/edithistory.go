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

// EditHistoryRepo implements service.EditHistoryRepository with pgx.
type EditHistoryRepo struct {
	pool *pgxpool.Pool
}

// NewEditHistoryRepo creates an EditHistoryRepo.
func NewEditHistoryRepo(pool *pgxpool.Pool) *EditHistoryRepo {
	return &EditHistoryRepo{pool: pool}
}

var _ service.EditHistoryRepository = (*EditHistoryRepo)(nil)

func (r *EditHistoryRepo) Append(ctx context.Context, e *model.EditHistoryEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO edit_history (id, file_id, link_id, folder_id, user_id, type, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.FileID, e.LinkID, e.FolderID, e.UserID, e.Type, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.EditHistoryRepo.Append: %w", err)
	}
	return nil
}

// LatestForSubject returns the most recent edit-history row for a
// subject, modeled
// here as ORDER BY created_at DESC LIMIT 1 rather than a materialized
// view, since Postgres can answer it with the (subject, created_at)
// index directly.
func (r *EditHistoryRepo) LatestForSubject(ctx context.Context, kind, id string) (*model.EditHistoryEntry, error) {
	var column string
	switch kind {
	case "file":
		column = "file_id"
	case "link":
		column = "link_id"
	case "folder":
		column = "folder_id"
	default:
		return nil, fmt.Errorf("repository.EditHistoryRepo.LatestForSubject: unknown subject kind %q", kind)
	}

	var e model.EditHistoryEntry
	err := r.pool.QueryRow(ctx,
		`SELECT id, file_id, link_id, folder_id, user_id, type, metadata, created_at
		 FROM edit_history WHERE `+column+` = $1
		 ORDER BY created_at DESC LIMIT 1`,
		id,
	).Scan(&e.ID, &e.FileID, &e.LinkID, &e.FolderID, &e.UserID, &e.Type, &e.Metadata, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "edit history for "+kind+" "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.EditHistoryRepo.LatestForSubject: %w", err)
	}
	return &e, nil
}
