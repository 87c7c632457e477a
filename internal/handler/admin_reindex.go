package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/middleware"
)

// AdminReindex handles POST /box/{scope}/admin/reindex: walks the
// document box and re-submits every Folder, File, and Link to the
// tenant's configured search backend, recovering from missed
// write-through index calls.
func AdminReindex(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")

		engine := deps.searchEngineFor(repos)
		count, err := engine.Reindex(r.Context(), scope, h.Index, repos.Files, repos.Links, repos.Pages)
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, map[string]interface{}{"indexed": count})
	}
}
