package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/service"
)

type beginPresignRequest struct {
	Name             string          `json:"name"`
	Mime             string          `json:"mime"`
	Size             int64           `json:"size"`
	FolderID         *string         `json:"folderId,omitempty"`
	ParentID         *string         `json:"parentId,omitempty"`
	ProcessingConfig json.RawMessage `json:"processingConfig,omitempty"`
}

// BeginPresign handles POST /box/{scope}/presign: registers a pending
// upload task and returns a presigned PUT URL. The object is finalized
// out of band, either by the S3 event reconciler or by the client
// calling the matching completion endpoint.
func BeginPresign(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		var req beginPresignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Name == "" || req.Mime == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "name and mime are required"})
			return
		}

		ing := deps.ingestionFor(h, repos)
		result, err := ing.BeginPresigned(r.Context(), service.PresignInput{
			DocumentBox:      scope,
			FolderID:         req.FolderID,
			ParentID:         req.ParentID,
			Name:             req.Name,
			Mime:             req.Mime,
			Size:             req.Size,
			CreatedBy:        actorID(r),
			ProcessingConfig: req.ProcessingConfig,
		}, deps.PresignExpiry)
		if err != nil {
			respondError(w, err)
			return
		}

		respondCreated(w, map[string]interface{}{
			"task": result.Task,
			"url":  result.URL,
		})
	}
}

// GetPresignTask handles GET /box/{scope}/presign/{id}: lets a client
// poll a presigned upload's status while waiting for the reconciler.
func GetPresignTask(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		id := chi.URLParam(r, "id")

		task, err := repos.Presign.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, task)
	}
}

// FinalizePresign handles POST /box/{scope}/presign/{id}/finalize: a
// client-driven completion path for deployments without an S3 event
// source wired to the reconciler, running the same verify-then-ingest
// sequence the reconciler would.
func FinalizePresign(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		id := chi.URLParam(r, "id")

		task, err := repos.Presign.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}

		ing := deps.ingestionFor(h, repos)
		if err := ing.FinalizePresigned(r.Context(), task.FileKey); err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, nil)
	}
}
