package linkmeta

import (
	"context"
	"fmt"
	"time"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/service"
)

// Resolver resolves a Link's URL to preview metadata, caching by URL
// in the per-tenant resolved_link_metadata table until ExpiresAt.
// The cache is the repository, not an in-process map —
// consistent with every other tenant-scoped persistence in this
// codebase going through the tenant's own pool, not a shared
// process-wide structure.
type Resolver struct {
	Scraper ScraperClient
	Repo    service.LinkMetadataRepository
	TTL     time.Duration
}

// Resolve returns cached metadata for url if still fresh, otherwise
// fetches, caches, and returns fresh metadata. A fetch failure with no
// usable cache surfaces as ProcessingFailure; a stale-but-present
// cache entry is preferred over a hard failure.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*model.ResolvedLinkMetadata, error) {
	cached, err := r.Repo.Get(ctx, rawURL)
	if err == nil && cached.ExpiresAt.After(time.Now()) {
		return cached, nil
	}

	fetched, fetchErr := r.Scraper.Fetch(ctx, rawURL)
	if fetchErr != nil {
		if cached != nil {
			return cached, nil // serve stale rather than fail the whole request
		}
		return nil, docboxerr.Wrap(docboxerr.ProcessingFailure, "resolve link metadata", fetchErr)
	}

	m := &model.ResolvedLinkMetadata{
		URL:         rawURL,
		Title:       nonEmpty(fetched.Title),
		Description: nonEmpty(fetched.Description),
		Favicon:     nonEmpty(fetched.Favicon),
		Image:       nonEmpty(fetched.Image),
		ExpiresAt:   time.Now().Add(r.TTL),
	}
	if err := r.Repo.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("linkmeta.Resolver.Resolve: cache: %w", err)
	}
	return m, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
