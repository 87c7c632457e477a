// Package router wires the HTTP surface: an unauthenticated
// health/metrics namespace, and the /box/{scope}/* namespace guarded
// by tenant resolution.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docbox-nz/docbox/internal/handler"
	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// Dependencies holds everything the router needs to build routes.
type Dependencies struct {
	DB          handler.DBPinger
	Registry    *tenant.Registry
	Environment string
	FrontendURL string
	Version     string

	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	GeneralRateLimiter *middleware.RateLimiter

	MigrationsDir string

	Handler *handler.Deps
}

// New builds the chi.Mux for the whole service.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	timeout30s := middleware.Timeout(30 * time.Second)
	uploadTimeout := middleware.Timeout(120 * time.Second)

	r.Route("/box/{scope}", func(r chi.Router) {
		r.Use(middleware.Identity)
		r.Use(middleware.TenantScope(deps.Registry, deps.Environment))
		if deps.GeneralRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.GeneralRateLimiter))
		}

		h := deps.Handler

		r.With(timeout30s).Get("/folders", handler.ListFolders(h))
		r.With(timeout30s).Post("/folders", handler.CreateFolder(h))
		r.With(timeout30s).Get("/folders/{id}", handler.GetFolder(h))
		r.With(timeout30s).Patch("/folders/{id}/name", handler.RenameFolder(h))
		r.With(timeout30s).Patch("/folders/{id}/parent", handler.MoveFolder(h))
		r.With(timeout30s).Patch("/folders/{id}/pin", handler.PinFolder(h))
		r.With(timeout30s).Delete("/folders/{id}", handler.DeleteFolder(h))

		r.With(timeout30s).Get("/files", handler.ListFiles(h))
		r.With(uploadTimeout).Post("/files", handler.UploadFile(h))
		r.With(timeout30s).Get("/files/{id}", handler.GetFile(h))
		r.With(timeout30s).Get("/files/{id}/download", handler.DownloadFile(h))
		r.With(timeout30s).Patch("/files/{id}/name", handler.RenameFile(h))
		r.With(timeout30s).Patch("/files/{id}/folder", handler.MoveFile(h))
		r.With(timeout30s).Patch("/files/{id}/pin", handler.PinFile(h))
		r.With(timeout30s).Delete("/files/{id}", handler.DeleteFile(h))

		r.With(timeout30s).Get("/links", handler.ListLinks(h))
		r.With(timeout30s).Post("/links", handler.CreateLink(h))
		r.With(timeout30s).Get("/links/{id}", handler.GetLink(h))
		r.With(timeout30s).Patch("/links/{id}/name", handler.RenameLink(h))
		r.With(timeout30s).Patch("/links/{id}/pin", handler.PinLink(h))
		r.With(timeout30s).Delete("/links/{id}", handler.DeleteLink(h))

		r.With(timeout30s).Get("/search", handler.Search(h))

		r.With(uploadTimeout).Post("/presign", handler.BeginPresign(h))
		r.With(timeout30s).Get("/presign/{id}", handler.GetPresignTask(h))
		r.With(uploadTimeout).Post("/presign/{id}/finalize", handler.FinalizePresign(h))

		r.With(uploadTimeout).Post("/admin/reindex", handler.AdminReindex(h))
		r.With(uploadTimeout).Post("/admin/files/{id}/reprocess", handler.AdminReprocess(h))
		if deps.MigrationsDir != "" {
			r.With(middleware.Timeout(120*time.Second)).Post("/admin/migrate", handler.AdminMigrate(deps.MigrationsDir))
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
