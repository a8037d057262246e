// Package pgtest provisions throwaway Postgres schemas for integration tests.
package pgtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"payaid/internal/platform/migrate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool returns a pool bound to a fresh, fully migrated schema. The test is
// skipped unless TEST_DB_DSN is set. The schema is dropped on cleanup.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is required for integration tests")
	}
	ctx := context.Background()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := execOnce(ctx, dsn, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = execOnce(context.Background(), dsn, "DROP SCHEMA "+schema+" CASCADE")
	})

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

// SeedTenant inserts an active tenant and returns its ID.
func SeedTenant(t *testing.T, pool *pgxpool.Pool, stateCode string) string {
	t.Helper()
	tenantID := uuid.NewString()
	slug := "t-" + tenantID[:8]
	_, err := pool.Exec(context.Background(), `
		INSERT INTO tenants (tenant_id, name, slug, state_code, status)
		VALUES ($1, $2, $3, $4, 'active')
	`, tenantID, "Tenant "+slug, slug, stateCode)
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenantID
}

func execOnce(ctx context.Context, dsn, statement string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, statement)
	return err
}
