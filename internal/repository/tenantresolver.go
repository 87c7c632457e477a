package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// TenantResolver implements tenant.Resolver against the root database's
// tenant registry table. Tenant provisioning itself is an external
// admin flow; this type only reads.
type TenantResolver struct {
	rootPool *pgxpool.Pool
}

// NewTenantResolver creates a TenantResolver bound to the root pool.
func NewTenantResolver(rootPool *pgxpool.Pool) *TenantResolver {
	return &TenantResolver{rootPool: rootPool}
}

var _ tenant.Resolver = (*TenantResolver)(nil)

func (r *TenantResolver) Resolve(ctx context.Context, env, tenantID string) (model.Tenant, error) {
	var t model.Tenant
	err := r.rootPool.QueryRow(ctx,
		`SELECT env, id, db_name, s3_bucket_name, index_name, event_queue_url
		 FROM tenants WHERE env = $1 AND id = $2`,
		env, tenantID,
	).Scan(&t.Env, &t.ID, &t.DBName, &t.S3BucketName, &t.IndexName, &t.EventQueueURL)
	if err == pgx.ErrNoRows {
		return model.Tenant{}, docboxerr.New(docboxerr.NotFound, fmt.Sprintf("tenant %s/%s", env, tenantID))
	}
	if err != nil {
		return model.Tenant{}, fmt.Errorf("repository.TenantResolver.Resolve: %w", err)
	}
	return t, nil
}

// ListAll returns every registered tenant, used by process-wide
// background sweeps (e.g. the presign sweeper) that must visit every
// tenant database in turn rather than just one resolved handle.
func (r *TenantResolver) ListAll(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.rootPool.Query(ctx,
		`SELECT env, id, db_name, s3_bucket_name, index_name, event_queue_url FROM tenants`,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.TenantResolver.ListAll: %w", err)
	}
	defer rows.Close()

	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.Env, &t.ID, &t.DBName, &t.S3BucketName, &t.IndexName, &t.EventQueueURL); err != nil {
			return nil, fmt.Errorf("repository.TenantResolver.ListAll: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}
