package migrations

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping migration integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return pool
}

func runSQL(t *testing.T, pool *pgxpool.Pool, filename string) {
	t.Helper()
	sql, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, string(sql))
	if err != nil {
		t.Fatalf("failed to execute %s: %v", filename, err)
	}
}

func TestMigration_UpCreatesAllTables(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	// Run up (idempotent — safe even if tables already exist)
	runSQL(t, pool, "001_initial_schema.up.sql")

	ctx := context.Background()

	expectedTables := []string{
		"folders", "files", "links", "generated_files", "file_pages",
		"edit_history", "file_processing_status", "presigned_upload_tasks",
		"resolved_link_metadata", "tenant_migration_log",
	}

	for _, table := range expectedTables {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist after up migration", table)
		}
	}
}

func TestMigration_UpIsIdempotent(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	// Run up twice — second run should not error (idempotent: every
	// DDL statement is CREATE ... IF NOT EXISTS or ON CONFLICT DO NOTHING).
	runSQL(t, pool, "001_initial_schema.up.sql")
	runSQL(t, pool, "001_initial_schema.up.sql")
}

func TestMigration_NameTsvColumnsExist(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_initial_schema.up.sql")

	ctx := context.Background()
	cases := []struct {
		table, column string
	}{
		{"files", "name_tsv"},
		{"folders", "name_tsv"},
		{"links", "name_tsv"},
		{"file_pages", "content_tsv"},
	}
	for _, c := range cases {
		var dataType string
		err := pool.QueryRow(ctx, `
			SELECT udt_name FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		`, c.table, c.column).Scan(&dataType)
		if err != nil {
			t.Fatalf("failed to check %s.%s: %v", c.table, c.column, err)
		}
		if dataType != "tsvector" {
			t.Errorf("%s.%s type = %q, want %q", c.table, c.column, dataType, "tsvector")
		}
	}
}

func TestMigration_RecordsAppliedName(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_initial_schema.up.sql")

	ctx := context.Background()
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenant_migration_log WHERE name = '001_initial_schema')`,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check tenant_migration_log: %v", err)
	}
	if !exists {
		t.Error("tenant_migration_log missing row for 001_initial_schema")
	}
}
