package licensing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads tenant status and licenses from the shared database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) LoadTenant(ctx context.Context, tenantID string) (TenantState, error) {
	state := TenantState{TenantID: tenantID, Licenses: make(map[string]License)}
	row := s.pool.QueryRow(ctx, `SELECT status FROM tenants WHERE tenant_id = $1`, tenantID)
	if err := row.Scan(&state.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantState{}, ErrTenantNotFound
		}
		return TenantState{}, fmt.Errorf("load tenant: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT module, enabled, seats, expires_at, updated_at
		FROM module_licenses
		WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return TenantState{}, fmt.Errorf("load licenses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		license := License{TenantID: tenantID}
		var expiresAt sql.NullTime
		if err := rows.Scan(&license.Module, &license.Enabled, &license.Seats, &expiresAt, &license.UpdatedAt); err != nil {
			return TenantState{}, err
		}
		if expiresAt.Valid {
			value := expiresAt.Time
			license.ExpiresAt = &value
		}
		state.Licenses[license.Module] = license
	}
	if err := rows.Err(); err != nil {
		return TenantState{}, err
	}
	return state, nil
}
