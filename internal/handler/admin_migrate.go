package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docbox-nz/docbox/internal/middleware"
)

// SQLRunner executes a raw SQL string, satisfied by *pgxpool.Pool.Exec
// with the result discarded.
type SQLRunner func(ctx context.Context, sql string) error

// AdminMigrate runs every *.up.sql file in dir, in lexicographic
// order, against the document box's tenant database. Each file records
// itself in the tenant migration log and must be safe to re-run.
func AdminMigrate(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := middleware.TenantHandleFromContext(r.Context())
		_ = chi.URLParam(r, "scope")

		ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
		defer cancel()

		entries, err := os.ReadDir(dir)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: fmt.Sprintf("read migrations dir: %v", err)})
			return
		}

		var upFiles []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
				upFiles = append(upFiles, e.Name())
			}
		}
		sort.Strings(upFiles)

		applied := make([]string, 0, len(upFiles))
		for _, name := range upFiles {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: fmt.Sprintf("read %s: %v", name, err)})
				return
			}
			if _, err := h.Pool.Exec(ctx, string(data)); err != nil {
				respondJSON(w, http.StatusInternalServerError, envelope{
					Success: false,
					Error:   fmt.Sprintf("apply %s: %v", name, err),
					Data:    map[string]interface{}{"applied": applied},
				})
				return
			}
			applied = append(applied, name)
		}

		respondOK(w, map[string]interface{}{"applied": applied})
	}
}
