package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationTable = "schema_migrations"

//go:embed sql/*.sql
var migrationFS embed.FS

// Apply runs every embedded migration that has not been recorded yet, each
// inside its own transaction. It returns the names of the files it applied.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	files, err := Files()
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, name := range files {
		done, err := applyOne(ctx, pool, name)
		if err != nil {
			return applied, err
		}
		if done {
			applied = append(applied, name)
		}
	}
	return applied, nil
}

// Files lists the embedded migration files in apply order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	content, err := fs.ReadFile(migrationFS, "sql/"+name)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", name, err)
	}
	upSQL := ExtractUp(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return false, nil
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// serialize concurrent migrators started by several services at once
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, migrationTable); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}

	var found int
	err = tx.QueryRow(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = $1`, name).Scan(&found)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, upSQL); err != nil {
		return false, fmt.Errorf("exec migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO `+migrationTable+` (name) VALUES ($1)`, name); err != nil {
		return false, fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}

// ExtractUp returns the SQL in the "-- +migrate Up" section, or the whole
// file when it has no markers.
func ExtractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
