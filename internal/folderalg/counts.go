package folderalg

import "github.com/docbox-nz/docbox/internal/model"

// Counts returns the distinct (files, links, folders) counts across
// root's subtree. root is excluded from its own folder count the way a
// directory doesn't count itself as a child.
func Counts(folders []model.Folder, files []model.File, links []model.Link, root string) model.SubtreeCounts {
	descendants := DescendantIDs(folders, root)

	var counts model.SubtreeCounts
	for id := range descendants {
		if id != root {
			counts.Folders++
		}
	}
	for _, f := range files {
		if descendants[f.FolderID] {
			counts.Files++
		}
	}
	for _, l := range links {
		if descendants[l.FolderID] {
			counts.Links++
		}
	}
	return counts
}
