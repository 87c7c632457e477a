package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docbox-nz/docbox/internal/config"
	"github.com/docbox-nz/docbox/internal/filelock"
	"github.com/docbox-nz/docbox/internal/handler"
	"github.com/docbox-nz/docbox/internal/linkmeta"
	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/officeclient"
	"github.com/docbox-nz/docbox/internal/pipeline"
	"github.com/docbox-nz/docbox/internal/reconciler"
	"github.com/docbox-nz/docbox/internal/repository"
	"github.com/docbox-nz/docbox/internal/router"
	"github.com/docbox-nz/docbox/internal/service"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rootPool, err := repository.NewPool(ctx, cfg.RootDatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("open root database: %w", err)
	}
	defer rootPool.Close()

	var meiliClient meilisearch.ServiceManager
	if cfg.SearchBackend == config.SearchBackendExternal {
		meiliClient = meilisearch.New(cfg.MeilisearchURL, meilisearch.WithAPIKey(cfg.MeilisearchAPIKey))
	}

	resolver := repository.NewTenantResolver(rootPool)
	factory := &tenant.DefaultFactory{
		Cfg:      cfg,
		OpenPool: repository.NewPool,
		Meili:    meiliClient,
	}
	registry := tenant.New(resolver, factory, 10*time.Minute)

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	generalLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 600,
		Window:      time.Minute,
	})
	defer generalLimiter.Stop()

	pool := service.NewDerivationPool(cfg.DerivationWorkerCount, cfg.IngestQueueCapacity)

	deps := &handler.Deps{
		Office:        officeclient.New(os.Getenv("OFFICE_CONVERTER_URL")),
		Locks:         filelock.New(),
		Scraper:       linkmeta.NewHTTPScraper(),
		Pool:          pool,
		PresignExpiry: cfg.PresignExpiry,
		LinkMetaTTL:   cfg.LinkMetadataCacheTTL,
		Version:       Version,
		Metrics:       metrics,
	}

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go runPresignSweep(resolver, registry, cfg, stopSweep)

	reconcilers, err := startReconcilers(ctx, resolver, registry, cfg, deps.Office, pool, metrics)
	if err != nil {
		slog.Error("failed to start tenant reconcilers", "error", err)
	}
	defer func() {
		for _, rc := range reconcilers {
			rc.Stop()
		}
	}()

	r := router.New(&router.Dependencies{
		DB:                 rootPool,
		Registry:           registry,
		Environment:        cfg.Environment,
		FrontendURL:        cfg.FrontendURL,
		Version:            Version,
		Metrics:            metrics,
		MetricsReg:         metricsReg,
		GeneralRateLimiter: generalLimiter,
		MigrationsDir:      os.Getenv("TENANT_MIGRATIONS_DIR"),
		Handler:            deps,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docbox starting", "version", Version, "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// startReconcilers boots one reconciler.Reconciler per tenant that
// has an EventQueueURL configured, each driving that tenant's own
// Ingestion.FinalizePresigned as S3 object-created events arrive.
// Tenants provisioned after startup are picked up the next time the
// process restarts; provisioning is an out-of-band admin flow, not a
// hot-reload concern.
func startReconcilers(ctx context.Context, resolver *repository.TenantResolver, registry *tenant.Registry, cfg *config.Config, office pipeline.OfficeConverter, pool *service.DerivationPool, metrics *middleware.Metrics) ([]*reconciler.Reconciler, error) {
	tenants, err := resolver.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("startReconcilers: list tenants: %w", err)
	}

	var started []*reconciler.Reconciler
	for _, t := range tenants {
		if t.EventQueueURL == nil || *t.EventQueueURL == "" {
			continue
		}
		h, err := registry.Get(ctx, t.Env, t.ID)
		if err != nil {
			slog.Error("startReconcilers: resolve tenant", "tenant", t.Key(), "error", err)
			continue
		}

		locks := filelock.New()
		repos := struct {
			Files      *repository.FileRepo
			Generated  *repository.GeneratedFileRepo
			Pages      *repository.FilePageRepo
			Processing *repository.ProcessingStatusRepo
			EditHist   *repository.EditHistoryRepo
			Presign    *repository.PresignRepo
		}{
			Files:      repository.NewFileRepo(h.Pool),
			Generated:  repository.NewGeneratedFileRepo(h.Pool),
			Pages:      repository.NewFilePageRepo(h.Pool),
			Processing: repository.NewProcessingStatusRepo(h.Pool),
			EditHist:   repository.NewEditHistoryRepo(h.Pool),
			Presign:    repository.NewPresignRepo(h.Pool),
		}
		ing := &service.Ingestion{
			Files:       repos.Files,
			EditHistory: repos.EditHist,
			Presign:     repos.Presign,
			Store:       h.Store,
			Pipeline: &pipeline.Pipeline{
				Files:       repos.Files,
				Generated:   repos.Generated,
				Pages:       repos.Pages,
				Status:      repos.Processing,
				ObjectStore: h.Store,
				Index:       h.Index,
				Locks:       locks,
				Office:      office,
				Metrics:     metrics,
			},
			PresignExpiry: cfg.PresignExpiry,
			Pool:          pool,
			Metrics:       metrics,
		}

		rc, err := reconciler.New(ctx, cfg.AWSRegion, *t.EventQueueURL, ing)
		if err != nil {
			slog.Error("startReconcilers: build reconciler", "tenant", t.Key(), "error", err)
			continue
		}
		rc.Start()
		started = append(started, rc)
		slog.Info("reconciler started", "tenant", t.Key())
	}
	return started, nil
}

// runPresignSweep periodically reclaims expired presigned-upload
// tasks across every tenant. Generalized from
// service.PresignSweeper's single-tenant ticker loop to fan out over
// repository.TenantResolver.ListAll, since reclaiming expired uploads
// is a process-wide concern, not a per-request one.
func runPresignSweep(resolver *repository.TenantResolver, registry *tenant.Registry, cfg *config.Config, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.PresignSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			tenants, err := resolver.ListAll(ctx)
			if err != nil {
				slog.Error("presign sweep: list tenants", "error", err)
				cancel()
				continue
			}
			for _, t := range tenants {
				h, err := registry.Get(ctx, t.Env, t.ID)
				if err != nil {
					slog.Error("presign sweep: resolve tenant", "tenant", t.Key(), "error", err)
					continue
				}
				ing := &service.Ingestion{
					Files:   repository.NewFileRepo(h.Pool),
					Presign: repository.NewPresignRepo(h.Pool),
					Store:   h.Store,
				}
				n, err := ing.SweepExpired(ctx)
				if err != nil {
					slog.Error("presign sweep: sweep tenant", "tenant", t.Key(), "error", err)
					continue
				}
				if n > 0 {
					slog.Info("presign sweep: reclaimed expired tasks", "tenant", t.Key(), "count", n)
				}
			}
			cancel()
		}
	}
}
