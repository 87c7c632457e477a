// Package search defines the pluggable full-text index: a single
// capability set implemented by a database-resident backend
// (internal/search/pgsearch) and an external backend
// (internal/search/extsearch). Callers never see backend specifics.
package search

import "context"

// ItemType discriminates the three searchable entity kinds.
type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
	ItemLink   ItemType = "link"
)

// ContentPage is one page's worth of indexed text for a File.
type ContentPage struct {
	Page int
	Text string
}

// IndexDoc is the single schema both backends index.
type IndexDoc struct {
	ItemID      string
	ItemType    ItemType
	DocumentBox string
	FolderID    string
	Name        string
	Value       string // Link.Value; empty for File/Folder
	Pages       []ContentPage
	CreatedAt   int64 // unix seconds, for recency fallback ordering
	CreatedBy   string
	Mime        string // files only
}

// Filter is the search request's filter tuple.
type Filter struct {
	DocumentBoxes  []string
	FolderChildren []string // nil/empty means unrestricted
	IncludeName    bool
	IncludeContent bool
	CreatedAfter   *int64
	CreatedBefore  *int64
	CreatedBy      string
	Mime           string // files only
	Query          string
}

// Paging bounds the ranked-result page and, separately, the per-file
// page-hit window.
type Paging struct {
	Limit       int
	Offset      int
	MaxPages    int
	PagesOffset int
}

// PageMatch is a single ranked page hit within a File match.
type PageMatch struct {
	Page    int
	Matched string // headlined fragment, <em>...</em> around hits
	Rank    float64
}

// RankedMatch is one result row.
type RankedMatch struct {
	ItemID        string
	ItemType      ItemType
	DocumentBox   string
	FolderID      string // the item's own parent folder, for breadcrumb resolution
	Name          string
	NameMatchRank float64
	NameMatch     bool
	ContentMatch  bool
	ContentRank   float64
	TotalHits     int
	PageMatches   []PageMatch
	CreatedAt     int64
	Rank          float64
}

// Index is the capability set both search backends satisfy.
type Index interface {
	// IndexDoc upserts a searchable document. At-least-once: callers log
	// failures and may retry via an admin reindex, but an index failure
	// must never roll back the owning write.
	Index(ctx context.Context, doc IndexDoc) error
	// Delete removes a document by (itemID, documentBox).
	Delete(ctx context.Context, itemID, documentBox string) error
	// Query executes filters+paging and returns the ranked page plus the
	// total unpaginated match count.
	Query(ctx context.Context, filter Filter, paging Paging) ([]RankedMatch, int, error)
}
