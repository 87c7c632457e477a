// Package pgsearch is the database-resident search.Index backend:
// trigram (pg_trgm) substring matching plus generated tsvector columns
// for tokenized full-text (ts_rank_cd + plainto_tsquery), unioned
// across files/folders/links with per-page sub-ranking for file
// content hits.
package pgsearch

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/search"
)

// Backend implements search.Index directly over the tenant database;
// "indexing" a document is a no-op beyond the row writes repository
// already performs, since names/content are persisted with generated
// tsvector columns. Index/Delete exist to satisfy the interface; Index
// also touches folder rows, so the admin reindex path can force a
// re-derivation of their generated columns. File and link rows are not
// touched.
type Backend struct {
	pool *pgxpool.Pool
}

// New creates a Backend.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

var _ search.Index = (*Backend)(nil)

// Index is a no-op for files/links (their tsvector columns are GENERATED
// ALWAYS and already current); for folders, whose name the caller may
// have just renamed, it touches the row to force a vacuum-friendly
// refresh. Content pages are already persisted via the repository; the
// search index doesn't hold a second copy.
func (b *Backend) Index(ctx context.Context, doc search.IndexDoc) error {
	if doc.ItemType != search.ItemFolder {
		return nil
	}
	_, err := b.pool.Exec(ctx, `UPDATE folders SET name = name WHERE id = $1`, doc.ItemID)
	if err != nil {
		return docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch touch folder", err)
	}
	return nil
}

// Delete is a no-op: the row delete that triggers it already removes
// the entity (and its generated tsvector) from the searchable set.
func (b *Backend) Delete(ctx context.Context, itemID, documentBox string) error {
	return nil
}

// Query executes the hybrid lexical+tsvector search across
// files/folders/links and returns the ranked page plus a total count.
func (b *Backend) Query(ctx context.Context, filter search.Filter, paging search.Paging) ([]search.RankedMatch, int, error) {
	if len(filter.DocumentBoxes) == 0 {
		return nil, 0, nil
	}
	if !filter.IncludeName && !filter.IncludeContent {
		return nil, 0, nil
	}
	if strings.TrimSpace(filter.Query) == "" {
		return nil, 0, nil
	}

	query := filter.Query
	limit := paging.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := b.pool.Query(ctx, unionSQL, query, boxesArg(filter.DocumentBoxes),
		foldersArg(filter.FolderChildren), filter.IncludeName, filter.IncludeContent,
		nullableStr(filter.CreatedBy), nullableStr(filter.Mime),
		filter.CreatedAfter, filter.CreatedBefore, limit, paging.Offset)
	if err != nil {
		return nil, 0, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch query", err)
	}
	defer rows.Close()

	var matches []search.RankedMatch
	for rows.Next() {
		var m search.RankedMatch
		var itemType string
		if err := rows.Scan(&m.ItemID, &itemType, &m.DocumentBox, &m.FolderID, &m.Name,
			&m.NameMatchRank, &m.NameMatch, &m.ContentMatch, &m.ContentRank,
			&m.TotalHits, &m.CreatedAt, &m.Rank); err != nil {
			return nil, 0, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch scan", err)
		}
		m.ItemType = search.ItemType(itemType)
		matches = append(matches, m)
	}
	if rows.Err() != nil {
		return nil, 0, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch rows", rows.Err())
	}

	if filter.IncludeContent {
		for i := range matches {
			if matches[i].ItemType != search.ItemFile || !matches[i].ContentMatch {
				continue
			}
			pages, err := b.pageMatches(ctx, matches[i].ItemID, query, paging)
			if err != nil {
				return nil, 0, err
			}
			matches[i].PageMatches = pages
		}
	}

	total, err := b.count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return matches, total, nil
}

func (b *Backend) pageMatches(ctx context.Context, fileID, query string, paging search.Paging) ([]search.PageMatch, error) {
	maxPages := paging.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	rows, err := b.pool.Query(ctx, `
		SELECT page,
		       ts_headline('english', content, plainto_tsquery('english', $2)) AS matched,
		       ts_rank(content_tsv, plainto_tsquery('english', $2))
		       + (CASE WHEN content ILIKE '%' || $2 || '%' THEN 1.0 ELSE 0.0 END) AS rank
		FROM file_pages
		WHERE file_id = $1
		  AND (content_tsv @@ plainto_tsquery('english', $2) OR content ILIKE '%' || $2 || '%')
		ORDER BY rank DESC, page ASC
		LIMIT $3 OFFSET $4
	`, fileID, query, maxPages, paging.PagesOffset)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch page matches", err)
	}
	defer rows.Close()

	var out []search.PageMatch
	for rows.Next() {
		var pm search.PageMatch
		if err := rows.Scan(&pm.Page, &pm.Matched, &pm.Rank); err != nil {
			return nil, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch page scan", err)
		}
		out = append(out, pm)
	}
	return out, nil
}

func (b *Backend) count(ctx context.Context, filter search.Filter) (int, error) {
	var total int
	err := b.pool.QueryRow(ctx, countSQL, filter.Query, boxesArg(filter.DocumentBoxes),
		foldersArg(filter.FolderChildren), filter.IncludeName, filter.IncludeContent,
		nullableStr(filter.CreatedBy), nullableStr(filter.Mime),
		filter.CreatedAfter, filter.CreatedBefore).Scan(&total)
	if err != nil {
		return 0, docboxerr.Wrap(docboxerr.IndexFailure, "pgsearch count", err)
	}
	return total, nil
}

func boxesArg(boxes []string) []string {
	if boxes == nil {
		return []string{}
	}
	return boxes
}

func foldersArg(ids []string) []string {
	if ids == nil {
		return nil
	}
	return ids
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// unionSQL implements the per-type rank formula:
//
//	rank = name_match_tsv_rank + content_rank
//	     + (1.0 if name_match else 0.0)
//	     + (1.0 if item=Link and content_match else 0.0)
//
// across files, folders, and links in one ranked, paginated result set.
const unionSQL = `
WITH matches AS (
	SELECT f.id AS item_id, 'file' AS item_type, f.document_box, f.folder_id::text AS folder_id, f.name,
	       (CASE WHEN $4 THEN ts_rank_cd(f.name_tsv, plainto_tsquery('english', $1)) ELSE 0 END) AS name_rank,
	       ($4 AND f.name ILIKE '%' || $1 || '%') AS name_match,
	       EXISTS (
	         SELECT 1 FROM file_pages p
	         WHERE p.file_id = f.id AND $5
	           AND (p.content_tsv @@ plainto_tsquery('english', $1) OR p.content ILIKE '%' || $1 || '%')
	       ) AS content_match,
	       (CASE WHEN $5 THEN COALESCE((
	         SELECT MAX(ts_rank(p.content_tsv, plainto_tsquery('english', $1)))
	         FROM file_pages p WHERE p.file_id = f.id
	       ), 0) ELSE 0 END) AS content_rank,
	       (CASE WHEN $5 THEN COALESCE((
	         SELECT COUNT(*) FROM file_pages p WHERE p.file_id = f.id
	           AND (p.content_tsv @@ plainto_tsquery('english', $1) OR p.content ILIKE '%' || $1 || '%')
	       ), 0) ELSE 0 END) AS total_hits,
	       f.created_at
	FROM files f
	WHERE f.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR f.folder_id = ANY($3))
	  AND ($6::text IS NULL OR f.created_by = $6)
	  AND ($7::text IS NULL OR f.mime = $7)
	  AND ($8::bigint IS NULL OR f.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR f.created_at <= to_timestamp($9))
	UNION ALL
	SELECT d.id, 'folder', d.document_box, COALESCE(d.folder_id::text, ''), d.name,
	       ts_rank_cd(d.name_tsv, plainto_tsquery('english', $1)),
	       (d.name ILIKE '%' || $1 || '%'),
	       false, 0, 0,
	       d.created_at
	FROM folders d
	WHERE d.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR d.folder_id = ANY($3))
	  AND $4
	  AND ($6::text IS NULL OR d.created_by = $6)
	  AND $7::text IS NULL
	  AND ($8::bigint IS NULL OR d.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR d.created_at <= to_timestamp($9))
	UNION ALL
	SELECT l.id, 'link', l.document_box, l.folder_id::text, l.name,
	       (CASE WHEN $4 THEN ts_rank_cd(l.name_tsv, plainto_tsquery('english', $1)) ELSE 0 END),
	       ($4 AND l.name ILIKE '%' || $1 || '%'),
	       (l.value ILIKE '%' || $1 || '%'),
	       0,
	       (CASE WHEN l.value ILIKE '%' || $1 || '%' THEN 1 ELSE 0 END),
	       l.created_at
	FROM links l
	WHERE l.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR l.folder_id = ANY($3))
	  AND ($6::text IS NULL OR l.created_by = $6)
	  AND $7::text IS NULL
	  AND ($8::bigint IS NULL OR l.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR l.created_at <= to_timestamp($9))
)
SELECT item_id, item_type, document_box, folder_id, name, name_rank, name_match, content_match, content_rank, total_hits,
       extract(epoch from created_at)::bigint,
       name_rank + content_rank
         + (CASE WHEN name_match THEN 1.0 ELSE 0.0 END)
         + (CASE WHEN item_type = 'link' AND content_match THEN 1.0 ELSE 0.0 END) AS rank
FROM matches
WHERE name_rank > 0 OR content_match OR name_match
ORDER BY rank DESC, created_at DESC
LIMIT $10 OFFSET $11
`

const countSQL = `
WITH matches AS (
	SELECT f.id AS item_id, 'file' AS item_type,
	       (CASE WHEN $4 THEN ts_rank_cd(f.name_tsv, plainto_tsquery('english', $1)) ELSE 0 END) AS name_rank,
	       ($4 AND f.name ILIKE '%' || $1 || '%') AS name_match,
	       EXISTS (
	         SELECT 1 FROM file_pages p
	         WHERE p.file_id = f.id AND $5
	           AND (p.content_tsv @@ plainto_tsquery('english', $1) OR p.content ILIKE '%' || $1 || '%')
	       ) AS content_match
	FROM files f
	WHERE f.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR f.folder_id = ANY($3))
	  AND ($6::text IS NULL OR f.created_by = $6)
	  AND ($7::text IS NULL OR f.mime = $7)
	  AND ($8::bigint IS NULL OR f.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR f.created_at <= to_timestamp($9))
	UNION ALL
	SELECT d.id, 'folder',
	       ts_rank_cd(d.name_tsv, plainto_tsquery('english', $1)),
	       (d.name ILIKE '%' || $1 || '%'),
	       false
	FROM folders d
	WHERE d.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR d.folder_id = ANY($3))
	  AND $4
	  AND ($6::text IS NULL OR d.created_by = $6)
	  AND $7::text IS NULL
	  AND ($8::bigint IS NULL OR d.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR d.created_at <= to_timestamp($9))
	UNION ALL
	SELECT l.id, 'link',
	       (CASE WHEN $4 THEN ts_rank_cd(l.name_tsv, plainto_tsquery('english', $1)) ELSE 0 END),
	       ($4 AND l.name ILIKE '%' || $1 || '%'),
	       (l.value ILIKE '%' || $1 || '%')
	FROM links l
	WHERE l.document_box = ANY($2)
	  AND ($3::uuid[] IS NULL OR l.folder_id = ANY($3))
	  AND ($6::text IS NULL OR l.created_by = $6)
	  AND $7::text IS NULL
	  AND ($8::bigint IS NULL OR l.created_at >= to_timestamp($8))
	  AND ($9::bigint IS NULL OR l.created_at <= to_timestamp($9))
)
SELECT COUNT(*) FROM matches WHERE name_rank > 0 OR content_match OR name_match
`
