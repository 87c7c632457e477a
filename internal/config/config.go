package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SearchBackend selects which implementation of internal/search.Index is
// wired up: the in-database lexical+tsvector engine, or an external
// index such as Meilisearch.
type SearchBackend string

const (
	SearchBackendDatabase SearchBackend = "db"
	SearchBackendExternal SearchBackend = "external"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	RootDatabaseURL  string
	DatabaseMaxConns int

	AWSRegion        string
	S3Endpoint       string // non-empty for S3-compatible non-AWS deployments
	S3ForcePathStyle bool

	SearchBackend     SearchBackend
	MeilisearchURL    string
	MeilisearchAPIKey string

	PresignExpiry        time.Duration
	PresignSweepInterval time.Duration

	IngestQueueCapacity   int
	DerivationWorkerCount int

	LinkMetadataCacheTTL time.Duration

	FrontendURL string
}

// Load reads configuration from environment variables.
// ROOT_DATABASE_URL is required (it locates the tenant registry);
// everything else has a default suitable for local development.
func Load() (*Config, error) {
	rootDB := os.Getenv("ROOT_DATABASE_URL")
	if rootDB == "" {
		return nil, fmt.Errorf("config.Load: ROOT_DATABASE_URL is required")
	}

	cfg := &Config{
		Port:                  envInt("PORT", 8080),
		Environment:           envStr("ENVIRONMENT", "development"),
		RootDatabaseURL:       rootDB,
		DatabaseMaxConns:      envInt("DATABASE_MAX_CONNS", 25),
		AWSRegion:             envStr("AWS_REGION", "us-east-1"),
		S3Endpoint:            envStr("S3_ENDPOINT", ""),
		S3ForcePathStyle:      envBool("S3_FORCE_PATH_STYLE", false),
		SearchBackend:         SearchBackend(envStr("SEARCH_BACKEND", string(SearchBackendDatabase))),
		MeilisearchURL:        envStr("MEILISEARCH_URL", ""),
		MeilisearchAPIKey:     envStr("MEILISEARCH_API_KEY", ""),
		PresignExpiry:         envDuration("PRESIGN_EXPIRY", 10*time.Minute),
		PresignSweepInterval:  envDuration("PRESIGN_SWEEP_INTERVAL", 1*time.Minute),
		IngestQueueCapacity:   envInt("INGEST_QUEUE_CAPACITY", 256),
		DerivationWorkerCount: envInt("DERIVATION_WORKER_COUNT", 8),
		LinkMetadataCacheTTL:  envDuration("LINK_METADATA_CACHE_TTL", 24*time.Hour),
		FrontendURL:           envStr("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.SearchBackend != SearchBackendDatabase && cfg.SearchBackend != SearchBackendExternal {
		return nil, fmt.Errorf("config.Load: SEARCH_BACKEND must be %q or %q, got %q",
			SearchBackendDatabase, SearchBackendExternal, cfg.SearchBackend)
	}
	if cfg.SearchBackend == SearchBackendExternal && cfg.MeilisearchURL == "" {
		return nil, fmt.Errorf("config.Load: MEILISEARCH_URL is required when SEARCH_BACKEND=external")
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
