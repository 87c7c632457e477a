// Package tenant maps (env, tenant_id) pairs to the concrete handles —
// database pool, object-store client, search index, event-queue URL —
// that every other component needs to operate within tenant isolation.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/objectstore"
	"github.com/docbox-nz/docbox/internal/search"
)

// Handle bundles the per-tenant resources every component operates against.
// There is no ambient tenant: every data path takes a *Handle explicitly.
type Handle struct {
	Tenant model.Tenant
	Pool   *pgxpool.Pool
	Store  *objectstore.Client
	Index  search.Index
}

// Resolver looks up tenant metadata (bucket/db/index names, credentials)
// from the root registry. Provisioning itself is an external admin flow;
// the core only reads.
type Resolver interface {
	Resolve(ctx context.Context, env, tenantID string) (model.Tenant, error)
}

// Factory builds the live handles (pool, object-store client, index) for
// a resolved Tenant. Kept separate from Resolver so tests can substitute
// fakes for either independently.
type Factory interface {
	NewPool(ctx context.Context, t model.Tenant) (*pgxpool.Pool, error)
	NewStore(ctx context.Context, t model.Tenant) (*objectstore.Client, error)
	NewIndex(ctx context.Context, t model.Tenant, pool *pgxpool.Pool) (search.Index, error)
}

type entry struct {
	handle    *Handle
	expiresAt time.Time
}

// Registry is a process-wide, lazily-populated, TTL-bounded cache of
// tenant handles keyed by Tenant.Key(). Handles are loaded on first
// use; provisioning flows invalidate by key.
type Registry struct {
	resolver Resolver
	factory  Factory
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	// inflight de-dupes concurrent first-loads of the same tenant.
	inflight map[string]chan struct{}
}

// New creates a Registry. ttl <= 0 disables expiry (entries live until
// explicitly invalidated).
func New(resolver Resolver, factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		resolver: resolver,
		factory:  factory,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		inflight: make(map[string]chan struct{}),
	}
}

// Get returns the Handle for (env, tenantID), loading and caching it on
// first access. Concurrent Gets for the same key coalesce onto a single
// load.
func (r *Registry) Get(ctx context.Context, env, tenantID string) (*Handle, error) {
	key := env + "/" + tenantID

	for {
		r.mu.Lock()
		if e, ok := r.entries[key]; ok {
			if r.ttl <= 0 || time.Now().Before(e.expiresAt) {
				r.mu.Unlock()
				return e.handle, nil
			}
			delete(r.entries, key)
		}
		if wait, loading := r.inflight[key]; loading {
			r.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		r.inflight[key] = done
		r.mu.Unlock()

		handle, err := r.load(ctx, env, tenantID)

		r.mu.Lock()
		delete(r.inflight, key)
		if err == nil {
			r.entries[key] = &entry{handle: handle, expiresAt: time.Now().Add(r.ttl)}
		}
		r.mu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		return handle, nil
	}
}

func (r *Registry) load(ctx context.Context, env, tenantID string) (*Handle, error) {
	t, err := r.resolver.Resolve(ctx, env, tenantID)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.TenantUnavailable, fmt.Sprintf("resolve tenant %s/%s", env, tenantID), err)
	}

	pool, err := r.factory.NewPool(ctx, t)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.TenantUnavailable, "open tenant database pool", err)
	}
	store, err := r.factory.NewStore(ctx, t)
	if err != nil {
		pool.Close()
		return nil, docboxerr.Wrap(docboxerr.TenantUnavailable, "open tenant object store", err)
	}
	index, err := r.factory.NewIndex(ctx, t, pool)
	if err != nil {
		pool.Close()
		return nil, docboxerr.Wrap(docboxerr.TenantUnavailable, "open tenant search index", err)
	}

	return &Handle{Tenant: t, Pool: pool, Store: store, Index: index}, nil
}

// Invalidate drops any cached handle for (env, tenantID). Used after
// provisioning changes a tenant's resources out of band.
func (r *Registry) Invalidate(env, tenantID string) {
	key := env + "/" + tenantID
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		delete(r.entries, key)
		if e.handle.Pool != nil {
			e.handle.Pool.Close()
		}
	}
	r.mu.Unlock()
}
