package folderalg

import (
	"testing"
	"time"

	"github.com/docbox-nz/docbox/internal/model"
)

func mkFolder(id, name string, parent *string) model.Folder {
	return model.Folder{ID: id, Name: name, DocumentBox: "box1", FolderID: parent, CreatedAt: time.Now()}
}

func strp(s string) *string { return &s }

func TestPath_RootChildGrandchild(t *testing.T) {
	root := mkFolder("R", "R", nil)
	a := mkFolder("A", "A", strp("R"))
	b := mkFolder("B", "B", strp("A"))
	folders := []model.Folder{root, a, b}

	path, err := Path(folders, "B")
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected 2 ancestors, got %d: %+v", len(path), path)
	}
	if path[0].ID != "R" || path[1].ID != "A" {
		t.Fatalf("expected path [R, A], got %+v", path)
	}
}

func TestPath_RootHasEmptyPath(t *testing.T) {
	root := mkFolder("R", "R", nil)
	path, err := Path([]model.Folder{root}, "R")
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	if len(path) != 0 {
		t.Fatalf("expected empty path for root, got %+v", path)
	}
}

func TestPath_CycleTerminates(t *testing.T) {
	a := mkFolder("A", "A", strp("B"))
	b := mkFolder("B", "B", strp("A"))
	folders := []model.Folder{a, b}

	done := make(chan struct{})
	var path []model.PathSegment
	go func() {
		path, _ = Path(folders, "A")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Path did not terminate on a cyclic folder graph")
	}
	if len(path) > len(folders) {
		t.Fatalf("cyclic path exceeded folder count bound: %+v", path)
	}
}

func TestPaths_OneEntryPerSubject(t *testing.T) {
	root := mkFolder("R", "R", nil)
	a := mkFolder("A", "A", strp("R"))
	b := mkFolder("B", "B", strp("A"))
	folders := []model.Folder{root, a, b}

	got := Paths(folders, []string{"A", "B", "B", "missing"})
	if len(got) != 2 {
		t.Fatalf("expected paths for exactly A and B, got %+v", got)
	}
	if len(got["A"]) != 1 || got["A"][0].ID != "R" {
		t.Errorf("expected path(A) = [R], got %+v", got["A"])
	}
	if len(got["B"]) != 2 || got["B"][0].ID != "R" || got["B"][1].ID != "A" {
		t.Errorf("expected path(B) = [R, A], got %+v", got["B"])
	}
}

func TestDescendantIDs(t *testing.T) {
	root := mkFolder("R", "R", nil)
	a := mkFolder("A", "A", strp("R"))
	b := mkFolder("B", "B", strp("A"))
	c := mkFolder("C", "C", strp("R"))
	folders := []model.Folder{root, a, b, c}

	got := DescendantIDs(folders, "R")
	for _, id := range []string{"R", "A", "B", "C"} {
		if !got[id] {
			t.Errorf("expected %s in descendants of R, got %+v", id, got)
		}
	}
}

func TestCounts(t *testing.T) {
	root := mkFolder("R", "R", nil)
	a := mkFolder("A", "A", strp("R"))
	folders := []model.Folder{root, a}
	files := []model.File{
		{ID: "f1", FolderID: "A"},
		{ID: "f2", FolderID: "R"},
	}
	links := []model.Link{
		{ID: "l1", FolderID: "A"},
	}

	counts := Counts(folders, files, links, "R")
	if counts.Folders != 1 {
		t.Errorf("expected 1 folder (A), got %d", counts.Folders)
	}
	if counts.Files != 2 {
		t.Errorf("expected 2 files, got %d", counts.Files)
	}
	if counts.Links != 1 {
		t.Errorf("expected 1 link, got %d", counts.Links)
	}
}
