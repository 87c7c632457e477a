// Package folderalg implements the recursive folder algebra —
// parent-path resolution, subtree enumeration, subtree counts — as
// iterative application-code walks over an in-memory folder set,
// with cycle protection throughout. Every function takes the document
// box's full folder set as a plain slice so it can be unit tested
// without a database.
package folderalg

import (
	"fmt"
	"log/slog"

	"github.com/docbox-nz/docbox/internal/model"
)

// byID indexes folders by ID for O(1) parent lookups during a walk.
func byID(folders []model.Folder) map[string]model.Folder {
	idx := make(map[string]model.Folder, len(folders))
	for _, f := range folders {
		idx[f.ID] = f
	}
	return idx
}

// Path walks parent pointers from id upward, emitting ancestors only
// (id itself is excluded), root-first. Cycles are broken once the walk
// revisits a node or exceeds the folder count, and the broken walk is
// logged as an invariant violation.
func Path(folders []model.Folder, id string) ([]model.PathSegment, error) {
	idx := byID(folders)
	start, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("folderalg.Path: folder %s not found", id)
	}

	var reversed []model.PathSegment
	visited := map[string]bool{id: true}
	cur := start
	limit := len(folders) + 1

	for cur.FolderID != nil {
		parentID := *cur.FolderID
		if visited[parentID] || len(reversed) >= limit {
			// Cycle detected (or the bound was otherwise exhausted):
			// stop walking rather than recurse forever.
			slog.Warn("folderalg.Path: folder parent cycle (invariant violation)", "folder_id", id, "at", parentID)
			break
		}
		parent, ok := idx[parentID]
		if !ok {
			break
		}
		visited[parentID] = true
		reversed = append(reversed, model.PathSegment{ID: parent.ID, Name: parent.Name})
		cur = parent
	}

	path := make([]model.PathSegment, len(reversed))
	for i, seg := range reversed {
		path[len(reversed)-1-i] = seg
	}
	return path, nil
}

// Paths computes Path for many subjects in one pass, returning at most
// one entry per subject. Subjects that are themselves Files or Links
// should be pre-resolved by the caller to their owning folder_id before
// calling Paths, since path resolution for non-folder subjects defers
// to their parent folder's path.
func Paths(folders []model.Folder, ids []string) map[string][]model.PathSegment {
	out := make(map[string][]model.PathSegment, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		p, err := Path(folders, id)
		if err != nil {
			continue
		}
		out[id] = p
	}
	return out
}
