package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/folderalg"
	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// folderIndexDoc builds the search.IndexDoc for a Folder, shared by
// every write-through indexing call below and by
// service.SearchEngine.Reindex's equivalent construction.
func folderIndexDoc(f *model.Folder) search.IndexDoc {
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
	return doc
}

// reindexFolder re-submits a folder to the search index after a
// create/rename/move/pin, keeping the external backend current
// without waiting for an admin reindex. Index failures are logged,
// not returned: an indexing
// hiccup never rolls back the folder mutation that already committed,
// matching how internal/pipeline treats IndexFailure as non-terminal.
func reindexFolder(ctx context.Context, h *tenant.Handle, repos *boxRepos, scope, id string) {
	f, err := repos.Folders.Get(ctx, scope, id)
	if err != nil {
		slog.Error("folder write-through index: reload", "folder_id", id, "error", err)
		return
	}
	if err := h.Index.Index(ctx, folderIndexDoc(f)); err != nil {
		slog.Error("folder write-through index failed", "folder_id", id, "error", err)
	}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	FolderID *string `json:"folderId,omitempty"`
}

type folderView struct {
	model.Folder
	Path []model.PathSegment `json:"path"`
}

// ListFolders handles GET /box/{scope}/folders: every folder in the
// document box, each carrying its resolved path.
func ListFolders(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		folders, err := repos.Folders.ListByDocumentBox(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}

		ids := make([]string, len(folders))
		for i, f := range folders {
			ids[i] = f.ID
		}
		paths := folderalg.Paths(folders, ids)

		views := make([]folderView, len(folders))
		for i, f := range folders {
			views[i] = folderView{Folder: f, Path: paths[f.ID]}
		}
		respondOK(w, views)
	}
}

// GetFolder handles GET /box/{scope}/folders/{id}: the folder plus
// its resolved path, subtree counts, and most recent edit.
func GetFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		f, err := repos.Folders.Get(r.Context(), scope, id)
		if err != nil {
			respondError(w, err)
			return
		}
		folders, err := repos.Folders.ListByDocumentBox(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}
		files, _ := repos.Files.ListByDocumentBox(r.Context(), scope)
		links, _ := repos.Links.ListByDocumentBox(r.Context(), scope)
		path, _ := folderalg.Path(folders, id)
		counts := folderalg.Counts(folders, files, links, id)

		respondOK(w, map[string]interface{}{
			"folder":       f,
			"path":         path,
			"counts":       counts,
			"lastModified": lastEdit(r.Context(), repos, "folder", id),
		})
	}
}

// CreateFolder handles POST /box/{scope}/folders.
func CreateFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		var req createFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Name == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "name is required"})
			return
		}

		// A non-root folder must point at a folder in the same box; a
		// root folder (nil parent) must be the box's only root.
		if req.FolderID != nil {
			if _, err := repos.Folders.Get(r.Context(), scope, *req.FolderID); err != nil {
				respondError(w, err)
				return
			}
		} else {
			folders, err := repos.Folders.ListByDocumentBox(r.Context(), scope)
			if err != nil {
				respondError(w, err)
				return
			}
			for _, existing := range folders {
				if existing.FolderID == nil {
					respondError(w, docboxerr.New(docboxerr.Conflict, "document box already has a root folder"))
					return
				}
			}
		}

		createdBy := actorID(r)

		f := &model.Folder{
			ID:          uuid.NewString(),
			Name:        req.Name,
			DocumentBox: scope,
			FolderID:    req.FolderID,
			CreatedAt:   time.Now(),
			CreatedBy:   createdBy,
		}
		if err := repos.Folders.Create(r.Context(), f); err != nil {
			respondError(w, err)
			return
		}

		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FolderID: &f.ID, UserID: createdBy, Type: model.EditCreate,
		})

		if err := h.Index.Index(r.Context(), folderIndexDoc(f)); err != nil {
			slog.Error("folder write-through index failed", "folder_id", f.ID, "error", err)
		}

		respondCreated(w, f)
	}
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameFolder handles PATCH /box/{scope}/folders/{id}/name.
func RenameFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "name is required"})
			return
		}
		if err := repos.Folders.Rename(r.Context(), scope, id, req.Name); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FolderID: &id, UserID: actorID(r), Type: model.EditRename,
			Metadata: editMeta(map[string]any{"name": req.Name}),
		})
		reindexFolder(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

type moveRequest struct {
	FolderID string `json:"folderId"`
}

// MoveFolder handles PATCH /box/{scope}/folders/{id}/parent.
func MoveFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderID == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "folderId is required"})
			return
		}
		if _, err := repos.Folders.Get(r.Context(), scope, req.FolderID); err != nil {
			respondError(w, err)
			return
		}
		folders, err := repos.Folders.ListByDocumentBox(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}
		// Re-parenting under the folder's own subtree (or itself) would
		// introduce a cycle.
		if folderalg.DescendantIDs(folders, id)[req.FolderID] {
			respondError(w, docboxerr.New(docboxerr.Conflict, "cannot move a folder beneath itself"))
			return
		}
		if err := repos.Folders.Move(r.Context(), scope, id, req.FolderID); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FolderID: &id, UserID: actorID(r), Type: model.EditMove,
			Metadata: editMeta(map[string]any{"folderId": req.FolderID}),
		})
		reindexFolder(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// PinFolder handles PATCH /box/{scope}/folders/{id}/pin.
func PinFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		var req pinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if err := repos.Folders.SetPinned(r.Context(), scope, id, req.Pinned); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FolderID: &id, UserID: actorID(r), Type: model.EditPin,
			Metadata: editMeta(map[string]any{"pinned": req.Pinned}),
		})
		reindexFolder(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

// DeleteFolder handles DELETE /box/{scope}/folders/{id}. A folder with
// file children is rejected as Conflict by the repository's foreign-key
// restriction.
func DeleteFolder(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		if err := repos.Folders.Delete(r.Context(), scope, id); err != nil {
			respondError(w, err)
			return
		}
		if err := h.Index.Delete(r.Context(), id, scope); err != nil {
			slog.Error("folder write-through delete failed", "folder_id", id, "error", err)
		}
		respondOK(w, nil)
	}
}
