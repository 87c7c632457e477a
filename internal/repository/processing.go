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

// ProcessingStatusRepo implements service.ProcessingStatusRepository
// with pgx, backing the file_processing_status table.
type ProcessingStatusRepo struct {
	pool *pgxpool.Pool
}

// NewProcessingStatusRepo creates a ProcessingStatusRepo.
func NewProcessingStatusRepo(pool *pgxpool.Pool) *ProcessingStatusRepo {
	return &ProcessingStatusRepo{pool: pool}
}

var _ service.ProcessingStatusRepository = (*ProcessingStatusRepo)(nil)

func (r *ProcessingStatusRepo) Upsert(ctx context.Context, s *model.ProcessingStatus) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO file_processing_status (file_id, stage, failed_stage, failed_reason, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (file_id) DO UPDATE SET
		   stage = EXCLUDED.stage, failed_stage = EXCLUDED.failed_stage,
		   failed_reason = EXCLUDED.failed_reason, updated_at = EXCLUDED.updated_at`,
		s.FileID, s.Stage, s.FailedStage, s.FailedReason, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.ProcessingStatusRepo.Upsert: %w", err)
	}
	return nil
}

func (r *ProcessingStatusRepo) Get(ctx context.Context, fileID string) (*model.ProcessingStatus, error) {
	var s model.ProcessingStatus
	err := r.pool.QueryRow(ctx,
		`SELECT file_id, stage, failed_stage, failed_reason, updated_at
		 FROM file_processing_status WHERE file_id = $1`,
		fileID,
	).Scan(&s.FileID, &s.Stage, &s.FailedStage, &s.FailedReason, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, docboxerr.New(docboxerr.NotFound, "processing status for file "+fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ProcessingStatusRepo.Get: %w", err)
	}
	return &s, nil
}
