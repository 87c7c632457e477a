package service

import (
	"context"
	"fmt"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/folderalg"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
)

// SearchRequest is the caller-facing filter+paging tuple.
// FolderScope, when set, is expanded to its full
// descendant set via folderalg.DescendantIDs before being handed to
// the backend — the backend only ever sees concrete folder IDs, never
// a "children of X" request.
type SearchRequest struct {
	DocumentBoxes  []string
	FolderScope    string // a folder id; "" means unrestricted
	IncludeName    bool
	IncludeContent bool
	CreatedAfter   *int64
	CreatedBefore  *int64
	CreatedBy      string
	Mime           string
	Query          string
	Paging         search.Paging
}

// SearchResult is a RankedMatch enriched with the resolved folder path
// the backend itself cannot compute (it operates per-row; paths need
// the whole folder set).
type SearchResult struct {
	search.RankedMatch
	FolderPath []FolderPathSegment
}

// FolderPathSegment mirrors model.PathSegment at the service boundary
// so callers of this package don't need to import internal/model just
// to read a search result's breadcrumb.
type FolderPathSegment struct {
	ID   string
	Name string
}

// SearchEngine constructs filters, resolves
// folder scoping via folderalg, and delegates ranking to whichever
// search.Index backend the tenant is configured with.
type SearchEngine struct {
	Folders FolderRepository
}

// Query executes req against idx and enriches the ranked matches with
// folder_path, resolved from the document box's full folder set via
// folderalg.Paths.
func (e *SearchEngine) Query(ctx context.Context, documentBox string, idx search.Index, req SearchRequest) ([]SearchResult, int, error) {
	filter := search.Filter{
		DocumentBoxes:  req.DocumentBoxes,
		IncludeName:    req.IncludeName,
		IncludeContent: req.IncludeContent,
		CreatedAfter:   req.CreatedAfter,
		CreatedBefore:  req.CreatedBefore,
		CreatedBy:      req.CreatedBy,
		Mime:           req.Mime,
		Query:          req.Query,
	}

	folders, err := e.Folders.ListByDocumentBox(ctx, documentBox)
	if err != nil {
		return nil, 0, fmt.Errorf("service.SearchEngine.Query: list folders: %w", err)
	}

	if req.FolderScope != "" {
		descendants := folderalg.DescendantIDs(folders, req.FolderScope)
		ids := make([]string, 0, len(descendants))
		for id := range descendants {
			ids = append(ids, id)
		}
		filter.FolderChildren = ids
	}

	matches, total, err := idx.Query(ctx, filter, req.Paging)
	if err != nil {
		return nil, 0, fmt.Errorf("service.SearchEngine.Query: %w", err)
	}

	byID := make(map[string]string, len(folders)) // folder id -> name, for appending the containing folder itself
	for _, f := range folders {
		byID[f.ID] = f.Name
	}

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{RankedMatch: m, FolderPath: resolvePath(folders, byID, m.FolderID)}
	}
	return results, total, nil
}

// Reindex walks every File, Folder, and Link in documentBox and
// re-submits each as an IndexDoc, used after an IndexFailure or a
// search-backend migration. File content pages are re-read from
// FilePageRepository so the reindex reflects whatever the pipeline
// already derived, without re-running derivation itself.
func (e *SearchEngine) Reindex(ctx context.Context, documentBox string, idx search.Index, files FileRepository, links LinkRepository, pages FilePageRepository) (int, error) {
	folders, err := e.Folders.ListByDocumentBox(ctx, documentBox)
	if err != nil {
		return 0, fmt.Errorf("service.SearchEngine.Reindex: list folders: %w", err)
	}
	count := 0
	for _, f := range folders {
		doc := search.IndexDoc{
			ItemID:      f.ID,
			ItemType:    search.ItemFolder,
			DocumentBox: f.DocumentBox,
			Name:        f.Name,
			CreatedAt:   f.CreatedAt.Unix(),
		}
		if f.FolderID != nil {
			doc.FolderID = *f.FolderID
		}
		if f.CreatedBy != nil {
			doc.CreatedBy = *f.CreatedBy
		}
		if err := idx.Index(ctx, doc); err != nil {
			return count, docboxerr.Wrap(docboxerr.IndexFailure, "reindex folder "+f.ID, err)
		}
		count++
	}

	fileRows, err := files.ListByDocumentBox(ctx, documentBox)
	if err != nil {
		return count, fmt.Errorf("service.SearchEngine.Reindex: list files: %w", err)
	}
	for _, f := range fileRows {
		filePages, err := pages.ListForFile(ctx, f.ID)
		if err != nil {
			return count, fmt.Errorf("service.SearchEngine.Reindex: list pages for %s: %w", f.ID, err)
		}
		contentPages := make([]search.ContentPage, 0, len(filePages))
		for _, pg := range filePages {
			contentPages = append(contentPages, search.ContentPage{Page: pg.Page, Text: pg.Content})
		}
		var createdBy string
		if f.CreatedBy != nil {
			createdBy = *f.CreatedBy
		}
		doc := search.IndexDoc{
			ItemID:      f.ID,
			ItemType:    search.ItemFile,
			DocumentBox: f.DocumentBox,
			FolderID:    f.FolderID,
			Name:        f.Name,
			Pages:       contentPages,
			CreatedAt:   f.CreatedAt.Unix(),
			CreatedBy:   createdBy,
			Mime:        f.Mime,
		}
		if err := idx.Index(ctx, doc); err != nil {
			return count, docboxerr.Wrap(docboxerr.IndexFailure, "reindex file "+f.ID, err)
		}
		count++
	}

	linkRows, err := links.ListByDocumentBox(ctx, documentBox)
	if err != nil {
		return count, fmt.Errorf("service.SearchEngine.Reindex: list links: %w", err)
	}
	for _, l := range linkRows {
		var createdBy string
		if l.CreatedBy != nil {
			createdBy = *l.CreatedBy
		}
		doc := search.IndexDoc{
			ItemID:      l.ID,
			ItemType:    search.ItemLink,
			DocumentBox: l.DocumentBox,
			FolderID:    l.FolderID,
			Name:        l.Name,
			Value:       l.Value,
			CreatedAt:   l.CreatedAt.Unix(),
			CreatedBy:   createdBy,
		}
		if err := idx.Index(ctx, doc); err != nil {
			return count, docboxerr.Wrap(docboxerr.IndexFailure, "reindex link "+l.ID, err)
		}
		count++
	}

	return count, nil
}

// resolvePath returns the ancestor chain of folderID (via
// folderalg.Path) with folderID's own segment appended, giving the
// full breadcrumb down to and including the item's containing folder.
func resolvePath(folders []model.Folder, names map[string]string, folderID string) []FolderPathSegment {
	if folderID == "" {
		return nil
	}
	ancestors, err := folderalg.Path(folders, folderID)
	if err != nil {
		return nil
	}
	out := make([]FolderPathSegment, 0, len(ancestors)+1)
	for _, seg := range ancestors {
		out = append(out, FolderPathSegment{ID: seg.ID, Name: seg.Name})
	}
	if name, ok := names[folderID]; ok {
		out = append(out, FolderPathSegment{ID: folderID, Name: name})
	}
	return out
}
