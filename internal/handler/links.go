package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// linkIndexDoc builds the search.IndexDoc for a Link, shared by every
// write-through indexing call below and by
// service.SearchEngine.Reindex's equivalent construction.
func linkIndexDoc(l *model.Link) search.IndexDoc {
	var createdBy string
	if l.CreatedBy != nil {
		createdBy = *l.CreatedBy
	}
	return search.IndexDoc{
		ItemID:      l.ID,
		ItemType:    search.ItemLink,
		DocumentBox: l.DocumentBox,
		FolderID:    l.FolderID,
		Name:        l.Name,
		Value:       l.Value,
		CreatedAt:   l.CreatedAt.Unix(),
		CreatedBy:   createdBy,
	}
}

// reindexLink re-submits a link to the search index after a
// rename/pin, keeping the external backend current without waiting
// for an admin reindex. Index failures are logged, not returned,
// matching reindexFolder.
func reindexLink(ctx context.Context, h *tenant.Handle, repos *boxRepos, scope, id string) {
	l, err := repos.Links.Get(ctx, scope, id)
	if err != nil {
		slog.Error("link write-through index: reload", "link_id", id, "error", err)
		return
	}
	if err := h.Index.Index(ctx, linkIndexDoc(l)); err != nil {
		slog.Error("link write-through index failed", "link_id", id, "error", err)
	}
}

type createLinkRequest struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	FolderID string `json:"folderId"`
}

// ListLinks handles GET /box/{scope}/links.
func ListLinks(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		links, err := repos.Links.ListByDocumentBox(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, links)
	}
}

// GetLink handles GET /box/{scope}/links/{id}, attaching resolved
// preview metadata and the most recent edit.
func GetLink(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		l, err := repos.Links.Get(r.Context(), scope, id)
		if err != nil {
			respondError(w, err)
			return
		}

		resolver := deps.resolverFor(repos)
		meta, err := resolver.Resolve(r.Context(), l.Value)
		if err != nil {
			respondOK(w, map[string]interface{}{
				"link":         l,
				"metadata":     nil,
				"lastModified": lastEdit(r.Context(), repos, "link", id),
			})
			return
		}
		respondOK(w, map[string]interface{}{
			"link":         l,
			"metadata":     meta,
			"lastModified": lastEdit(r.Context(), repos, "link", id),
		})
	}
}

// CreateLink handles POST /box/{scope}/links.
func CreateLink(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		var req createLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Name == "" || req.Value == "" || req.FolderID == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "name, value, and folderId are required"})
			return
		}
		if _, err := repos.Folders.Get(r.Context(), scope, req.FolderID); err != nil {
			respondError(w, err)
			return
		}

		createdBy := actorID(r)

		l := &model.Link{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Value:       req.Value,
			DocumentBox: scope,
			FolderID:    req.FolderID,
			CreatedAt:   time.Now(),
			CreatedBy:   createdBy,
		}
		if err := repos.Links.Create(r.Context(), l); err != nil {
			respondError(w, err)
			return
		}

		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			LinkID: &l.ID, UserID: createdBy, Type: model.EditCreate,
		})

		if err := h.Index.Index(r.Context(), linkIndexDoc(l)); err != nil {
			slog.Error("link write-through index failed", "link_id", l.ID, "error", err)
		}

		respondCreated(w, l)
	}
}

// RenameLink handles PATCH /box/{scope}/links/{id}/name.
func RenameLink(deps *Deps) http.HandlerFunc {
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
		if err := repos.Links.Rename(r.Context(), scope, id, req.Name); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			LinkID: &id, UserID: actorID(r), Type: model.EditRename,
			Metadata: editMeta(map[string]any{"name": req.Name}),
		})
		reindexLink(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

// PinLink handles PATCH /box/{scope}/links/{id}/pin.
func PinLink(deps *Deps) http.HandlerFunc {
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
		if err := repos.Links.SetPinned(r.Context(), scope, id, req.Pinned); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			LinkID: &id, UserID: actorID(r), Type: model.EditPin,
			Metadata: editMeta(map[string]any{"pinned": req.Pinned}),
		})
		reindexLink(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

// DeleteLink handles DELETE /box/{scope}/links/{id}.
func DeleteLink(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		if err := repos.Links.Delete(r.Context(), scope, id); err != nil {
			respondError(w, err)
			return
		}
		if err := h.Index.Delete(r.Context(), id, scope); err != nil {
			slog.Error("link write-through delete failed", "link_id", id, "error", err)
		}
		respondOK(w, nil)
	}
}
