package handler

import (
	"time"

	"github.com/docbox-nz/docbox/internal/filelock"
	"github.com/docbox-nz/docbox/internal/linkmeta"
	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/pipeline"
	"github.com/docbox-nz/docbox/internal/repository"
	"github.com/docbox-nz/docbox/internal/service"
	"github.com/docbox-nz/docbox/internal/tenant"
)

// Deps bundles the dependencies shared across every box-scoped
// handler that aren't themselves tenant-resources: the office
// converter RPC client, the per-process file-lock registry (fileIDs
// are UUIDs so sharing one registry across tenants is safe), the link
// scraper, and the presign/reindex tuning knobs. Each handler builds
// its own repository/service instances from the request's
// tenant.Handle, matching the "no ambient tenant" rule in
// internal/tenant.Handle: every data path takes a Handle explicitly.
type Deps struct {
	Office        pipeline.OfficeConverter
	Locks         *filelock.Registry
	Scraper       linkmeta.ScraperClient
	Pool          *service.DerivationPool
	PresignExpiry time.Duration
	LinkMetaTTL   time.Duration
	Version       string

	// Metrics is optional; a nil Metrics disables ingest/pipeline counters.
	Metrics *middleware.Metrics
}

// boxRepos is the set of per-request repository instances bound to one
// tenant's pool, rebuilt per-request since each tenant has its own pool
// and there is no process-wide connection shared across tenants.
type boxRepos struct {
	Folders    *repository.FolderRepo
	Files      *repository.FileRepo
	Links      *repository.LinkRepo
	Generated  *repository.GeneratedFileRepo
	Pages      *repository.FilePageRepo
	Processing *repository.ProcessingStatusRepo
	EditHist   *repository.EditHistoryRepo
	Presign    *repository.PresignRepo
	LinkMeta   *repository.LinkMetaRepo
}

func newBoxRepos(h *tenant.Handle) *boxRepos {
	return &boxRepos{
		Folders:    repository.NewFolderRepo(h.Pool),
		Files:      repository.NewFileRepo(h.Pool),
		Links:      repository.NewLinkRepo(h.Pool),
		Generated:  repository.NewGeneratedFileRepo(h.Pool),
		Pages:      repository.NewFilePageRepo(h.Pool),
		Processing: repository.NewProcessingStatusRepo(h.Pool),
		EditHist:   repository.NewEditHistoryRepo(h.Pool),
		Presign:    repository.NewPresignRepo(h.Pool),
		LinkMeta:   repository.NewLinkMetaRepo(h.Pool),
	}
}

func (d *Deps) pipelineFor(h *tenant.Handle, repos *boxRepos) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Files:       repos.Files,
		Generated:   repos.Generated,
		Pages:       repos.Pages,
		Status:      repos.Processing,
		ObjectStore: h.Store,
		Index:       h.Index,
		Locks:       d.Locks,
		Office:      d.Office,
	}
	// Assigning a nil *middleware.Metrics straight into the
	// pipeline.StageMetrics interface field would produce a non-nil
	// interface wrapping a nil pointer, so nil is only attached when
	// d.Metrics is actually set.
	if d.Metrics != nil {
		p.Metrics = d.Metrics
	}
	return p
}

func (d *Deps) ingestionFor(h *tenant.Handle, repos *boxRepos) *service.Ingestion {
	ing := &service.Ingestion{
		Files:         repos.Files,
		EditHistory:   repos.EditHist,
		Presign:       repos.Presign,
		Store:         h.Store,
		Pipeline:      d.pipelineFor(h, repos),
		PresignExpiry: d.PresignExpiry,
		Pool:          d.Pool,
	}
	if d.Metrics != nil {
		ing.Metrics = d.Metrics
	}
	return ing
}

func (d *Deps) searchEngineFor(repos *boxRepos) *service.SearchEngine {
	return &service.SearchEngine{Folders: repos.Folders}
}

func (d *Deps) resolverFor(repos *boxRepos) *linkmeta.Resolver {
	return &linkmeta.Resolver{
		Scraper: d.Scraper,
		Repo:    repos.LinkMeta,
		TTL:     d.LinkMetaTTL,
	}
}
