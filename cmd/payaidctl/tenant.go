package main

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"payaid/internal/authn"
	"payaid/internal/gst"
	"payaid/internal/licensing"
	"payaid/internal/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type tenantInput struct {
	Name          string
	Slug          string
	GSTIN         string
	StateCode     string
	Status        string
	AdminEmail    string
	AdminPassword string
	SuperAdmin    bool
}

type createdTenant struct {
	TenantID    string `json:"tenant_id"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	StateCode   string `json:"state_code,omitempty"`
	AdminUserID string `json:"admin_user_id"`
	AdminEmail  string `json:"admin_email"`
}

func newTenantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Tenant administration"}

	var input tenantInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant with its roles and an admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := input.normalize(); err != nil {
				return err
			}
			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			created, err := createTenant(cmd.Context(), pool, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	create.Flags().StringVar(&input.Name, "name", "", "tenant display name")
	create.Flags().StringVar(&input.Slug, "slug", "", "unique tenant slug")
	create.Flags().StringVar(&input.GSTIN, "gstin", "", "tenant GSTIN")
	create.Flags().StringVar(&input.StateCode, "state", "", "two digit state code (derived from --gstin when omitted)")
	create.Flags().StringVar(&input.Status, "status", licensing.TenantActive, "initial status: active or trial")
	create.Flags().StringVar(&input.AdminEmail, "admin-email", "", "admin user email")
	create.Flags().StringVar(&input.AdminPassword, "admin-password", "", "admin user password")
	create.Flags().BoolVar(&input.SuperAdmin, "super-admin", false, "make the admin a platform super-admin")
	for _, name := range []string{"name", "slug", "admin-email", "admin-password"} {
		_ = create.MarkFlagRequired(name)
	}

	cmd.AddCommand(create)
	return cmd
}

func (in *tenantInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.AdminEmail = strings.ToLower(strings.TrimSpace(in.AdminEmail))
	if in.Name == "" || in.Slug == "" {
		return errors.New("name and slug are required")
	}
	if _, err := mail.ParseAddress(in.AdminEmail); err != nil {
		return fmt.Errorf("invalid admin email: %w", err)
	}
	if len(in.AdminPassword) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}
	if in.Status != licensing.TenantActive && in.Status != licensing.TenantTrial {
		return fmt.Errorf("invalid status %q", in.Status)
	}
	if in.GSTIN != "" {
		in.GSTIN = gst.NormalizeGSTIN(in.GSTIN)
		if err := gst.ValidateGSTIN(in.GSTIN); err != nil {
			return err
		}
		if in.StateCode == "" {
			in.StateCode = gst.StateCode(in.GSTIN)
		}
	}
	if in.StateCode != "" && !gst.ValidStateCode(in.StateCode) {
		return fmt.Errorf("invalid state code %q", in.StateCode)
	}
	return nil
}

func createTenant(ctx context.Context, pool *pgxpool.Pool, in tenantInput) (created createdTenant, err error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return createdTenant{}, err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return createdTenant{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	created = createdTenant{
		TenantID:    uuid.NewString(),
		Slug:        in.Slug,
		Status:      in.Status,
		StateCode:   in.StateCode,
		AdminUserID: uuid.NewString(),
		AdminEmail:  in.AdminEmail,
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO tenants (tenant_id, name, slug, gstin, state_code, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, created.TenantID, in.Name, in.Slug, in.GSTIN, in.StateCode, in.Status); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = fmt.Errorf("tenant slug %q already exists", in.Slug)
		}
		return createdTenant{}, err
	}

	var adminRoleID string
	for _, role := range authn.Roles {
		roleID := uuid.NewString()
		if _, err = tx.Exec(ctx, `INSERT INTO roles (role_id, tenant_id, name) VALUES ($1, $2, $3)`,
			roleID, created.TenantID, role); err != nil {
			return createdTenant{}, fmt.Errorf("seed role %s: %w", role, err)
		}
		if role == authn.RoleAdmin {
			adminRoleID = roleID
		}
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO users (user_id, tenant_id, role_id, email, password_hash, super_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, created.AdminUserID, created.TenantID, adminRoleID, in.AdminEmail, string(hash), in.SuperAdmin); err != nil {
		return createdTenant{}, fmt.Errorf("create admin user: %w", err)
	}

	if _, err = outbox.Insert(ctx, tx, created.TenantID, "tenant.created", map[string]string{
		"tenant_id": created.TenantID,
		"slug":      created.Slug,
		"status":    created.Status,
	}); err != nil {
		return createdTenant{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return createdTenant{}, err
	}
	return created, nil
}
