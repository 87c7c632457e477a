package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/folderalg"
	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/service"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// fileIndexDoc builds the search.IndexDoc for a File, shared by the
// write-through indexing calls below and mirroring the construction
// pipeline.indexFile and service.SearchEngine.Reindex use. pages may
// be nil for a name-only (pre-derivation) index write.
func fileIndexDoc(f *model.File, pages []model.FilePage) search.IndexDoc {
	contentPages := make([]search.ContentPage, 0, len(pages))
	for _, pg := range pages {
		contentPages = append(contentPages, search.ContentPage{Page: pg.Page, Text: pg.Content})
	}
	var createdBy string
	if f.CreatedBy != nil {
		createdBy = *f.CreatedBy
	}
	return search.IndexDoc{
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
}

// reindexFile re-submits a file (name and whatever pages the pipeline
// has derived so far) to the search index after a rename or move.
// Failures are logged, not returned, matching reindexFolder.
func reindexFile(ctx context.Context, h *tenant.Handle, repos *boxRepos, scope, id string) {
	f, err := repos.Files.Get(ctx, scope, id)
	if err != nil {
		slog.Error("file write-through index: reload", "file_id", id, "error", err)
		return
	}
	pages, err := repos.Pages.ListForFile(ctx, id)
	if err != nil {
		slog.Error("file write-through index: pages", "file_id", id, "error", err)
		pages = nil
	}
	if err := h.Index.Index(ctx, fileIndexDoc(f, pages)); err != nil {
		slog.Error("file write-through index failed", "file_id", id, "error", err)
	}
}

// ListFiles handles GET /box/{scope}/files, optionally scoped to a
// folder via the ?folderId= query parameter.
func ListFiles(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		var (
			files []model.File
			err   error
		)
		if folderID := r.URL.Query().Get("folderId"); folderID != "" {
			files, err = repos.Files.ListByFolder(r.Context(), scope, folderID)
		} else {
			files, err = repos.Files.ListByDocumentBox(r.Context(), scope)
		}
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, files)
	}
}

// GetFile handles GET /box/{scope}/files/{id}: the file plus its
// generated artifacts, processing status, resolved folder path, and
// the most recent edit (last modifier / last modified at).
func GetFile(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		f, err := repos.Files.Get(r.Context(), scope, id)
		if err != nil {
			respondError(w, err)
			return
		}
		generated, err := repos.Generated.ListForFile(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		// A file that hasn't reached the pipeline yet has no status row;
		// that's a normal race with the background derivation trigger,
		// not an error worth failing the whole read for.
		status, err := repos.Processing.Get(r.Context(), id)
		if err != nil && !docboxerr.Is(err, docboxerr.NotFound) {
			respondError(w, err)
			return
		}

		folders, err := repos.Folders.ListByDocumentBox(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}

		respondOK(w, map[string]interface{}{
			"file":         f,
			"generated":    generated,
			"status":       status,
			"path":         containerPath(folders, f.FolderID),
			"lastModified": lastEdit(r.Context(), repos, "file", id),
		})
	}
}

// containerPath resolves a File's or Link's breadcrumb: the ancestors
// of its containing folder plus the containing folder itself. The
// subject never appears in its own path.
func containerPath(folders []model.Folder, folderID string) []model.PathSegment {
	path, err := folderalg.Path(folders, folderID)
	if err != nil {
		return nil
	}
	for _, f := range folders {
		if f.ID == folderID {
			path = append(path, model.PathSegment{ID: f.ID, Name: f.Name})
			break
		}
	}
	return path
}

// UploadFile handles POST /box/{scope}/files: a direct multipart
// upload, streamed straight into object storage per
// service.Ingestion.UploadDirect.
func UploadFile(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid multipart body"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "file field is required"})
			return
		}
		defer file.Close()

		folderID := r.FormValue("folderId")
		if folderID == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "folderId is required"})
			return
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		if _, err := repos.Folders.Get(r.Context(), scope, folderID); err != nil {
			respondError(w, err)
			return
		}

		ing := deps.ingestionFor(h, repos)
		f, err := ing.UploadDirect(r.Context(), service.DirectUploadInput{
			DocumentBox: scope,
			FolderID:    folderID,
			Name:        header.Filename,
			Mime:        mime,
			CreatedBy:   actorID(r),
		}, file)
		if err != nil {
			respondError(w, err)
			return
		}

		// The name is indexed synchronously so the file is findable the
		// moment the upload returns; content pages follow asynchronously
		// once the pipeline derives them.
		if err := h.Index.Index(r.Context(), fileIndexDoc(f, nil)); err != nil {
			slog.Error("file write-through index failed", "file_id", f.ID, "error", err)
		}

		respondCreated(w, f)
	}
}

// DownloadFile handles GET /box/{scope}/files/{id}/download: a
// presigned redirect to the object store rather than proxying bytes
// through this process.
func DownloadFile(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		f, err := repos.Files.Get(r.Context(), scope, id)
		if err != nil {
			respondError(w, err)
			return
		}
		url, err := h.Store.PresignGet(r.Context(), f.FileKey, 15*time.Minute)
		if err != nil {
			respondError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// RenameFile handles PATCH /box/{scope}/files/{id}/name.
func RenameFile(deps *Deps) http.HandlerFunc {
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
		if err := repos.Files.Rename(r.Context(), scope, id, req.Name); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FileID: &id, UserID: actorID(r), Type: model.EditRename,
			Metadata: editMeta(map[string]any{"name": req.Name}),
		})
		reindexFile(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

// MoveFile handles PATCH /box/{scope}/files/{id}/folder.
func MoveFile(deps *Deps) http.HandlerFunc {
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
		if err := repos.Files.Move(r.Context(), scope, id, req.FolderID); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FileID: &id, UserID: actorID(r), Type: model.EditMove,
			Metadata: editMeta(map[string]any{"folderId": req.FolderID}),
		})
		reindexFile(r.Context(), h, repos, scope, id)
		respondOK(w, nil)
	}
}

// PinFile handles PATCH /box/{scope}/files/{id}/pin.
func PinFile(deps *Deps) http.HandlerFunc {
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
		if err := repos.Files.SetPinned(r.Context(), scope, id, req.Pinned); err != nil {
			respondError(w, err)
			return
		}
		recordEdit(r.Context(), repos, &model.EditHistoryEntry{
			FileID: &id, UserID: actorID(r), Type: model.EditPin,
			Metadata: editMeta(map[string]any{"pinned": req.Pinned}),
		})
		respondOK(w, nil)
	}
}

// DeleteFile handles DELETE /box/{scope}/files/{id}. Attachments
// parented to this file are reparented to nil rather than cascaded.
// Deleting a file leaves no residue: the row (and its cascaded
// pages/artifacts/history), the stored objects, and the index
// document all go.
func DeleteFile(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		f, err := repos.Files.Get(r.Context(), scope, id)
		if err != nil {
			respondError(w, err)
			return
		}
		generated, err := repos.Generated.ListForFile(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}

		if err := repos.Files.ClearParent(r.Context(), scope, id); err != nil {
			respondError(w, err)
			return
		}
		if err := repos.Files.Delete(r.Context(), scope, id); err != nil {
			respondError(w, err)
			return
		}

		// Object and index cleanup happens after the row delete
		// committed; failures here are retryable residue (logged), not
		// grounds to resurrect the row.
		if err := h.Store.Delete(r.Context(), f.FileKey); err != nil {
			slog.Error("file delete: remove object failed", "key", f.FileKey, "error", err)
		}
		for _, g := range generated {
			if err := h.Store.Delete(r.Context(), g.FileKey); err != nil {
				slog.Error("file delete: remove generated object failed", "key", g.FileKey, "error", err)
			}
		}
		if err := h.Index.Delete(r.Context(), id, scope); err != nil {
			slog.Error("file write-through delete failed", "file_id", id, "error", err)
		}
		respondOK(w, nil)
	}
}
