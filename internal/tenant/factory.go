package tenant

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/config"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/objectstore"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/search/extsearch"
	"github.com/docbox-nz/docbox/internal/search/pgsearch"

	meilisearch "github.com/meilisearch/meilisearch-go"
)

// PoolOpener abstracts repository.NewPool so this package does not
// import internal/repository (which imports internal/service, which
// would create an import cycle back through this package's Factory
// interface).
type PoolOpener func(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error)

// DefaultFactory builds live tenant handles: one pgx pool per tenant
// database (same Postgres host as the root registry, different
// dbname), one S3 client per tenant bucket, and the configured search
// backend pointed at the tenant's index name.
type DefaultFactory struct {
	Cfg      *config.Config
	OpenPool PoolOpener
	Meili    meilisearch.ServiceManager // nil unless SearchBackend == external
}

var _ Factory = (*DefaultFactory)(nil)

func (f *DefaultFactory) NewPool(ctx context.Context, t model.Tenant) (*pgxpool.Pool, error) {
	dsn, err := rewriteDBName(f.Cfg.RootDatabaseURL, t.DBName)
	if err != nil {
		return nil, fmt.Errorf("tenant.DefaultFactory.NewPool: %w", err)
	}
	return f.OpenPool(ctx, dsn, f.Cfg.DatabaseMaxConns)
}

func (f *DefaultFactory) NewStore(ctx context.Context, t model.Tenant) (*objectstore.Client, error) {
	return objectstore.NewClient(ctx, t.S3BucketName, objectstore.Options{
		Region:         f.Cfg.AWSRegion,
		Endpoint:       f.Cfg.S3Endpoint,
		ForcePathStyle: f.Cfg.S3ForcePathStyle,
	})
}

// NewIndex builds the tenant's search.Index. The default (pgsearch)
// backend reads through the same pool already opened for the tenant by
// NewPool, rather than opening a second one.
func (f *DefaultFactory) NewIndex(ctx context.Context, t model.Tenant, pool *pgxpool.Pool) (search.Index, error) {
	switch f.Cfg.SearchBackend {
	case config.SearchBackendExternal:
		return extsearch.New(f.Meili, t.IndexName), nil
	default:
		return pgsearch.New(pool), nil
	}
}

// rewriteDBName swaps the path component (database name) of a
// Postgres DSN, so every tenant pool reuses the root connection's
// host/credentials against its own database.
func rewriteDBName(rootDSN, dbName string) (string, error) {
	u, err := url.Parse(rootDSN)
	if err != nil {
		return "", fmt.Errorf("parse root database url: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
