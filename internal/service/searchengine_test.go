package service

import (
	"context"
	"testing"
	"time"

	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
)

type fakeFolderRepo struct {
	folders []model.Folder
}

func (f *fakeFolderRepo) Create(ctx context.Context, folder *model.Folder) error { return nil }
func (f *fakeFolderRepo) Get(ctx context.Context, documentBox, id string) (*model.Folder, error) {
	for _, fold := range f.folders {
		if fold.ID == id {
			return &fold, nil
		}
	}
	return nil, nil
}
func (f *fakeFolderRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Folder, error) {
	return f.folders, nil
}
func (f *fakeFolderRepo) Rename(ctx context.Context, documentBox, id, name string) error { return nil }
func (f *fakeFolderRepo) Move(ctx context.Context, documentBox, id, newParent string) error {
	return nil
}
func (f *fakeFolderRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	return nil
}
func (f *fakeFolderRepo) Delete(ctx context.Context, documentBox, id string) error { return nil }

type fakeIndex struct {
	lastFilter search.Filter
	matches    []search.RankedMatch
	total      int
	indexed    []search.IndexDoc
}

func (i *fakeIndex) Index(ctx context.Context, doc search.IndexDoc) error {
	i.indexed = append(i.indexed, doc)
	return nil
}
func (i *fakeIndex) Delete(ctx context.Context, itemID, documentBox string) error { return nil }
func (i *fakeIndex) Query(ctx context.Context, filter search.Filter, paging search.Paging) ([]search.RankedMatch, int, error) {
	i.lastFilter = filter
	return i.matches, i.total, nil
}

func strp(s string) *string { return &s }

func TestSearchEngineQuery_ExpandsFolderScopeToDescendants(t *testing.T) {
	folders := &fakeFolderRepo{folders: []model.Folder{
		{ID: "root", Name: "root"},
		{ID: "a", Name: "a", FolderID: strp("root")},
		{ID: "b", Name: "b", FolderID: strp("a")},
		{ID: "sibling", Name: "sibling"},
	}}
	idx := &fakeIndex{}
	engine := &SearchEngine{Folders: folders}

	_, _, err := engine.Query(context.Background(), "box1", idx, SearchRequest{
		DocumentBoxes: []string{"box1"},
		FolderScope:   "root",
		IncludeName:   true,
		Query:         "budget",
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	got := map[string]bool{}
	for _, id := range idx.lastFilter.FolderChildren {
		got[id] = true
	}
	for _, want := range []string{"root", "a", "b"} {
		if !got[want] {
			t.Errorf("expected folder scope to include descendant %q, got %+v", want, idx.lastFilter.FolderChildren)
		}
	}
	if got["sibling"] {
		t.Error("expected folder scope not to include an unrelated sibling folder")
	}
}

func TestSearchEngineQuery_ResolvesFolderPathOnResults(t *testing.T) {
	folders := &fakeFolderRepo{folders: []model.Folder{
		{ID: "root", Name: "Root"},
		{ID: "a", Name: "A", FolderID: strp("root")},
	}}
	idx := &fakeIndex{
		matches: []search.RankedMatch{
			{ItemID: "f1", ItemType: search.ItemFile, FolderID: "a", Name: "Q1.pdf"},
		},
		total: 1,
	}
	engine := &SearchEngine{Folders: folders}

	results, total, err := engine.Query(context.Background(), "box1", idx, SearchRequest{
		DocumentBoxes: []string{"box1"},
		IncludeName:   true,
		Query:         "budget",
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	path := results[0].FolderPath
	if len(path) != 2 || path[0].ID != "root" || path[1].ID != "a" {
		t.Errorf("expected folder path [root, a], got %+v", path)
	}
}

func TestSearchEngineReindex_CoversFilesFoldersAndLinks(t *testing.T) {
	folders := &fakeFolderRepo{folders: []model.Folder{{ID: "root", Name: "Root"}}}
	idx := &fakeIndex{}
	engine := &SearchEngine{Folders: folders}

	files := &fakeFileRepo{files: map[string]*model.File{
		"f1": {ID: "f1", Name: "Q1.pdf", DocumentBox: "box1", FolderID: "root", CreatedAt: time.Now()},
	}}
	links := &stubLinkRepo{links: []model.Link{
		{ID: "l1", Name: "budget spreadsheet", Value: "https://x/budget.xlsx", DocumentBox: "box1", FolderID: "root", CreatedAt: time.Now()},
	}}
	pages := &stubPageRepo{}

	count, err := engine.Reindex(context.Background(), "box1", idx, files, links, pages)
	if err != nil {
		t.Fatalf("Reindex returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 reindexed docs (1 folder + 1 file + 1 link), got %d", count)
	}

	var types []search.ItemType
	for _, d := range idx.indexed {
		types = append(types, d.ItemType)
	}
	if len(types) != 3 {
		t.Fatalf("expected 3 indexed docs, got %+v", types)
	}
}

type stubLinkRepo struct {
	links []model.Link
}

func (s *stubLinkRepo) Create(ctx context.Context, l *model.Link) error { return nil }
func (s *stubLinkRepo) Get(ctx context.Context, documentBox, id string) (*model.Link, error) {
	return nil, nil
}
func (s *stubLinkRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.Link, error) {
	return s.links, nil
}
func (s *stubLinkRepo) Rename(ctx context.Context, documentBox, id, name string) error { return nil }
func (s *stubLinkRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	return nil
}
func (s *stubLinkRepo) Delete(ctx context.Context, documentBox, id string) error { return nil }

type stubPageRepo struct{}

func (s *stubPageRepo) Upsert(ctx context.Context, p *model.FilePage) error { return nil }
func (s *stubPageRepo) ListForFile(ctx context.Context, fileID string) ([]model.FilePage, error) {
	return nil, nil
}
func (s *stubPageRepo) DeleteForFile(ctx context.Context, fileID string) error { return nil }
