package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payaid/internal/licensing"
	"payaid/internal/outbox"
	"payaid/internal/platform/web"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type grantInput struct {
	TenantID string
	Module   string
	Seats    int
	Expires  string
}

func newLicenseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "license", Short: "Module licenses"}

	var grant grantInput
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant or renew a module license",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expiresAt, err := grant.validate(a.now())
			if err != nil {
				return err
			}
			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			license, err := grantLicense(cmd.Context(), pool, grant, expiresAt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), license)
		},
	}
	grantCmd.Flags().StringVar(&grant.TenantID, "tenant", "", "tenant ID")
	grantCmd.Flags().StringVar(&grant.Module, "module", "", "module name")
	grantCmd.Flags().IntVar(&grant.Seats, "seats", 0, "licensed seats (0 for unlimited)")
	grantCmd.Flags().StringVar(&grant.Expires, "expires", "", "expiry date YYYY-MM-DD")
	_ = grantCmd.MarkFlagRequired("tenant")
	_ = grantCmd.MarkFlagRequired("module")

	var tenantID string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the module catalog for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !web.IsValidUUID(tenantID) {
				return fmt.Errorf("invalid tenant ID %q", tenantID)
			}
			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			state, err := licensing.NewPostgresSource(pool).LoadTenant(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"tenant_id": state.TenantID,
				"status":    state.Status,
				"modules":   licensing.Modules(state, a.now()),
			})
		},
	}
	listCmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	_ = listCmd.MarkFlagRequired("tenant")

	cmd.AddCommand(grantCmd, listCmd)
	return cmd
}

func (g grantInput) validate(now time.Time) (*time.Time, error) {
	if !web.IsValidUUID(g.TenantID) {
		return nil, fmt.Errorf("invalid tenant ID %q", g.TenantID)
	}
	if !licensing.KnownModule(g.Module) {
		return nil, fmt.Errorf("unknown module %q", g.Module)
	}
	if g.Seats < 0 {
		return nil, errors.New("seats must not be negative")
	}
	if g.Expires == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", g.Expires)
	if err != nil {
		return nil, fmt.Errorf("invalid --expires: %w", err)
	}
	// Valid through the end of the given day.
	expiresAt := day.Add(24*time.Hour - time.Second).UTC()
	if !expiresAt.After(now) {
		return nil, errors.New("expiry must be in the future")
	}
	return &expiresAt, nil
}

func grantLicense(ctx context.Context, pool *pgxpool.Pool, g grantInput, expiresAt *time.Time) (license licensing.License, err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return licensing.License{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	license = licensing.License{TenantID: g.TenantID, Module: g.Module}
	err = tx.QueryRow(ctx, `
		INSERT INTO module_licenses (tenant_id, module, enabled, seats, expires_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4, NOW())
		ON CONFLICT (tenant_id, module) DO UPDATE
		SET enabled = TRUE, seats = EXCLUDED.seats, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		RETURNING enabled, seats, expires_at, updated_at
	`, g.TenantID, g.Module, g.Seats, expiresAt).Scan(&license.Enabled, &license.Seats, &license.ExpiresAt, &license.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			err = licensing.ErrTenantNotFound
		}
		return licensing.License{}, err
	}

	if _, err = outbox.Insert(ctx, tx, g.TenantID, "tenant.license.granted", license); err != nil {
		return licensing.License{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return licensing.License{}, err
	}
	return license, nil
}
