package folderalg

import "github.com/docbox-nz/docbox/internal/model"

// DescendantIDs returns root and every transitive child reachable via
// the folder_id back-edge, via an iterative BFS bounded by len(folders)
// rather than a recursive walk, so a corrupted cyclic graph cannot
// overflow the stack or loop forever.
func DescendantIDs(folders []model.Folder, root string) map[string]bool {
	children := make(map[string][]string)
	exists := make(map[string]bool, len(folders))
	for _, f := range folders {
		exists[f.ID] = true
		if f.FolderID != nil {
			children[*f.FolderID] = append(children[*f.FolderID], f.ID)
		}
	}

	result := map[string]bool{}
	if !exists[root] {
		return result
	}

	queue := []string{root}
	limit := len(folders) + 1

	for len(queue) > 0 && len(result) < limit {
		id := queue[0]
		queue = queue[1:]
		if result[id] {
			continue
		}
		result[id] = true
		queue = append(queue, children[id]...)
	}

	return result
}
