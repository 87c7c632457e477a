package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/service"
)

func queryInt64Ptr(r *http.Request, key string) *int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryIntDefault(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// Search handles GET /box/{scope}/search. Every filter rides the
// query string; includeName/includeContent default to true so a bare
// ?q= searches both.
func Search(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		repos := newBoxRepos(h)
		scope := chi.URLParam(r, "scope")
		q := r.URL.Query()

		includeName := q.Get("includeName") != "false"
		includeContent := q.Get("includeContent") != "false"

		req := service.SearchRequest{
			DocumentBoxes:  []string{scope},
			FolderScope:    q.Get("folderId"),
			IncludeName:    includeName,
			IncludeContent: includeContent,
			CreatedAfter:   queryInt64Ptr(r, "createdAfter"),
			CreatedBefore:  queryInt64Ptr(r, "createdBefore"),
			CreatedBy:      q.Get("createdBy"),
			Mime:           q.Get("mime"),
			Query:          q.Get("q"),
			Paging: search.Paging{
				Limit:       queryIntDefault(r, "limit", 20),
				Offset:      queryIntDefault(r, "offset", 0),
				MaxPages:    queryIntDefault(r, "maxPages", 3),
				PagesOffset: queryIntDefault(r, "pagesOffset", 0),
			},
		}

		engine := deps.searchEngineFor(repos)
		results, total, err := engine.Query(r.Context(), scope, h.Index, req)
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, map[string]interface{}{
			"results": results,
			"total":   total,
		})
	}
}
