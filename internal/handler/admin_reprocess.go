package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/middleware"
)

// AdminReprocess handles POST /box/{scope}/admin/files/{id}/reprocess:
// re-enters the processing pipeline at Queued for an already-ingested
// file. Safe to call repeatedly since every derivation step is
// content-addressed.
func AdminReprocess(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		id := chi.URLParam(r, "id")

		pipe := deps.pipelineFor(h, repos)
		if err := pipe.Reprocess(r.Context(), scope, id); err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, nil)
	}
}
