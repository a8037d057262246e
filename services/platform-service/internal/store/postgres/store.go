package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payaid/internal/authn"
	"payaid/internal/licensing"
	"payaid/internal/outbox"
	"payaid/services/platform-service/internal/models"
	"payaid/services/platform-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const tenantColumns = `tenant_id, name, slug, COALESCE(gstin, ''), COALESCE(state_code, ''), status, created_at, updated_at`

const approvalColumns = `
	approval_id, tenant_id, request_type, payload::text, status,
	COALESCE(created_by::text, ''), COALESCE(decided_by::text, ''), created_at, decided_at`

const webhookColumns = `
	webhook_id, tenant_id, url, events, active, failure_count, COALESCE(last_error, ''),
	last_delivery_at, created_at`

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateTenant inserts a trial tenant and seeds one role row per built-in
// role so users can be assigned immediately.
func (s *Store) CreateTenant(ctx context.Context, input store.TenantInput) (models.Tenant, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Tenant{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	row := tx.QueryRow(ctx, `
		INSERT INTO tenants (tenant_id, name, slug, gstin, state_code, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+tenantColumns,
		uuid.NewString(), input.Name, input.Slug, nullIfEmpty(input.GSTIN), nullIfEmpty(input.StateCode), licensing.TenantTrial, now)
	var tenant models.Tenant
	tenant, err = scanTenant(row)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			err = store.ErrTenantExists
		}
		return models.Tenant{}, err
	}

	for _, role := range authn.Roles {
		if _, err = tx.Exec(ctx, `
			INSERT INTO roles (role_id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), tenant.TenantID, role, now); err != nil {
			return models.Tenant{}, fmt.Errorf("seed role %s: %w", role, err)
		}
	}

	if _, err = outbox.Insert(ctx, tx, tenant.TenantID, "tenant.created", map[string]string{
		"tenant_id": tenant.TenantID,
		"slug":      tenant.Slug,
		"status":    tenant.Status,
	}); err != nil {
		return models.Tenant{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (models.Tenant, error) {
	tenant, err := scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, store.ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) SetTenantStatus(ctx context.Context, tenantID, status string) (models.Tenant, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Tenant{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM tenants WHERE tenant_id = $1 FOR UPDATE`, tenantID).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTenantNotFound
		}
		return models.Tenant{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE tenants SET status = $2, updated_at = $3
		WHERE tenant_id = $1
		RETURNING `+tenantColumns, tenantID, status, s.now().UTC())
	var tenant models.Tenant
	tenant, err = scanTenant(row)
	if err != nil {
		return models.Tenant{}, err
	}

	if _, err = outbox.Insert(ctx, tx, tenantID, "tenant.status.changed", map[string]string{
		"tenant_id": tenantID,
		"from":      from,
		"to":        status,
	}); err != nil {
		return models.Tenant{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) ListLicenses(ctx context.Context, tenantID string) ([]licensing.License, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, module, enabled, seats, expires_at, updated_at
		FROM module_licenses
		WHERE tenant_id = $1
		ORDER BY module ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	licenses := []licensing.License{}
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}
	return licenses, rows.Err()
}

// GrantLicense enables or renews a module license. Seats and expiry replace
// whatever the previous grant held.
func (s *Store) GrantLicense(ctx context.Context, grant store.LicenseGrant) (licensing.License, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return licensing.License{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO module_licenses (tenant_id, module, enabled, seats, expires_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4, $5)
		ON CONFLICT (tenant_id, module) DO UPDATE
		SET enabled = TRUE, seats = EXCLUDED.seats, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		RETURNING tenant_id, module, enabled, seats, expires_at, updated_at
	`, grant.TenantID, grant.Module, grant.Seats, grant.ExpiresAt, s.now().UTC())
	var license licensing.License
	license, err = scanLicense(row)
	if err != nil {
		if isPgError(err, foreignKeyViolation) {
			err = store.ErrTenantNotFound
		}
		return licensing.License{}, err
	}

	if _, err = outbox.Insert(ctx, tx, grant.TenantID, "tenant.license.granted", license); err != nil {
		return licensing.License{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return licensing.License{}, err
	}
	return license, nil
}

func (s *Store) RevokeLicense(ctx context.Context, revoke store.LicenseRevoke) (licensing.License, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return licensing.License{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE module_licenses SET enabled = FALSE, updated_at = $3
		WHERE tenant_id = $1 AND module = $2
		RETURNING tenant_id, module, enabled, seats, expires_at, updated_at
	`, revoke.TenantID, revoke.Module, s.now().UTC())
	var license licensing.License
	license, err = scanLicense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrLicenseNotFound
		}
		return licensing.License{}, err
	}

	if _, err = outbox.Insert(ctx, tx, revoke.TenantID, "tenant.license.revoked", license); err != nil {
		return licensing.License{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return licensing.License{}, err
	}
	return license, nil
}

func (s *Store) CreateRole(ctx context.Context, tenantID, name string) (models.Role, error) {
	var role models.Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (role_id, tenant_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING role_id, tenant_id, name, created_at
	`, uuid.NewString(), tenantID, name, s.now().UTC()).Scan(&role.RoleID, &role.TenantID, &role.Name, &role.CreatedAt)
	if err != nil {
		switch {
		case isPgError(err, uniqueViolation):
			return models.Role{}, store.ErrRoleExists
		case isPgError(err, foreignKeyViolation):
			return models.Role{}, store.ErrTenantNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]models.Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role_id, tenant_id, name, created_at
		FROM roles
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.RoleID, &role.TenantID, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, tenantID, userID string) (models.User, error) {
	return getUser(ctx, s.pool, tenantID, userID)
}

func (s *Store) UpdateUserRole(ctx context.Context, assignment store.RoleAssignment) (models.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var roleName string
	err = tx.QueryRow(ctx, `SELECT name FROM roles WHERE role_id = $1 AND tenant_id = $2`, assignment.RoleID, assignment.TenantID).Scan(&roleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrRoleNotFound
		}
		return models.User{}, err
	}

	var tag pgconn.CommandTag
	tag, err = tx.Exec(ctx, `UPDATE users SET role_id = $3 WHERE user_id = $1 AND tenant_id = $2`,
		assignment.UserID, assignment.TenantID, assignment.RoleID)
	if err != nil {
		return models.User{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrUserNotFound
		return models.User{}, err
	}

	var user models.User
	user, err = getUser(ctx, tx, assignment.TenantID, assignment.UserID)
	if err != nil {
		return models.User{}, err
	}
	if _, err = outbox.Insert(ctx, tx, assignment.TenantID, "user.role.changed", map[string]string{
		"user_id": user.UserID,
		"role":    roleName,
	}); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) InsertAudit(ctx context.Context, audit models.AuditLog) error {
	if audit.AuditID == "" {
		audit.AuditID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (audit_id, tenant_id, actor_user_id, action_type, target_type, target_id, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, audit.AuditID, audit.TenantID, nullIfEmpty(audit.ActorUserID), audit.ActionType, audit.TargetType,
		nullIfEmpty(audit.TargetID), nullIfEmpty(audit.IP), nullIfEmpty(audit.UserAgent), s.now().UTC())
	return err
}

func (s *Store) ListAudit(ctx context.Context, tenantID string, filter store.AuditFilter) ([]models.AuditLog, error) {
	query := `
		SELECT audit_id, tenant_id, COALESCE(actor_user_id::text, ''), action_type, target_type,
			COALESCE(target_id, ''), COALESCE(ip, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}
	if filter.ActionType != "" {
		args = append(args, filter.ActionType)
		query += fmt.Sprintf(" AND action_type = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC LIMIT 200"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var entry models.AuditLog
		if err := rows.Scan(&entry.AuditID, &entry.TenantID, &entry.ActorUserID, &entry.ActionType, &entry.TargetType,
			&entry.TargetID, &entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateApproval(ctx context.Context, approval models.ApprovalRequest) (models.ApprovalRequest, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO approval_requests (approval_id, tenant_id, request_type, payload, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+approvalColumns,
		uuid.NewString(), approval.TenantID, approval.RequestType, string(approval.Payload), models.ApprovalPending,
		nullIfEmpty(approval.CreatedBy), s.now().UTC())
	return scanApproval(row)
}

func (s *Store) ListApprovals(ctx context.Context, tenantID, status string) ([]models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approvals := []models.ApprovalRequest{}
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

func (s *Store) GetApproval(ctx context.Context, tenantID, approvalID string) (models.ApprovalRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE approval_id = $1 AND tenant_id = $2`, approvalID, tenantID)
	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ApprovalRequest{}, store.ErrApprovalNotFound
		}
		return models.ApprovalRequest{}, err
	}
	return approval, nil
}

// DecideApproval approves or rejects a pending request under a row lock.
// The requester can never decide their own request.
func (s *Store) DecideApproval(ctx context.Context, input store.DecisionInput) (models.ApprovalRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ApprovalRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE approval_id = $1 AND tenant_id = $2 FOR UPDATE`,
		input.ApprovalID, input.TenantID)
	var approval models.ApprovalRequest
	approval, err = scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrApprovalNotFound
		}
		return models.ApprovalRequest{}, err
	}
	if approval.Status != models.ApprovalPending {
		err = store.ErrApprovalNotPending
		return models.ApprovalRequest{}, err
	}
	if approval.CreatedBy != "" && approval.CreatedBy == input.DeciderID {
		err = store.ErrSelfApproval
		return models.ApprovalRequest{}, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE approval_requests SET status = $2, decided_by = $3, decided_at = $4
		WHERE approval_id = $1
		RETURNING `+approvalColumns,
		input.ApprovalID, input.Status, nullIfEmpty(input.DeciderID), s.now().UTC())
	approval, err = scanApproval(row)
	if err != nil {
		return models.ApprovalRequest{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.ApprovalRequest{}, err
	}
	return approval, nil
}

// ReopenApproval returns an approved request to pending when its change could
// not be applied, so it can be decided again.
func (s *Store) ReopenApproval(ctx context.Context, tenantID, approvalID string) (models.ApprovalRequest, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE approval_requests SET status = $3, decided_by = NULL, decided_at = NULL
		WHERE approval_id = $1 AND tenant_id = $2 AND status = $4
		RETURNING `+approvalColumns,
		approvalID, tenantID, models.ApprovalPending, models.ApprovalApproved)
	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ApprovalRequest{}, store.ErrApprovalNotFound
		}
		return models.ApprovalRequest{}, err
	}
	return approval, nil
}

func (s *Store) ApprovalsEnabled(ctx context.Context, tenantID string) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx, `SELECT approvals_enabled FROM tenant_approval_prefs WHERE tenant_id = $1`, tenantID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return enabled, nil
}

func (s *Store) SetApprovalPrefs(ctx context.Context, tenantID string, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_approval_prefs (tenant_id, approvals_enabled)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET approvals_enabled = EXCLUDED.approvals_enabled
	`, tenantID, enabled)
	return err
}

func (s *Store) CreateWebhook(ctx context.Context, webhook models.Webhook) (models.Webhook, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_subscriptions (webhook_id, tenant_id, url, secret, events, active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING `+webhookColumns,
		uuid.NewString(), webhook.TenantID, webhook.URL, webhook.Secret, webhook.Events, s.now().UTC())
	created, err := scanWebhook(row)
	if err != nil {
		if isPgError(err, foreignKeyViolation) {
			return models.Webhook{}, store.ErrTenantNotFound
		}
		return models.Webhook{}, err
	}
	created.Secret = webhook.Secret
	return created, nil
}

func (s *Store) ListWebhooks(ctx context.Context, tenantID string) ([]models.Webhook, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, webhook)
	}
	return webhooks, rows.Err()
}

func (s *Store) DeleteWebhook(ctx context.Context, tenantID, webhookID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE webhook_id = $1 AND tenant_id = $2`, webhookID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrWebhookNotFound
	}
	return nil
}

func (s *Store) EnableWebhook(ctx context.Context, tenantID, webhookID string) (models.Webhook, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE webhook_subscriptions SET active = TRUE, failure_count = 0, last_error = NULL
		WHERE webhook_id = $1 AND tenant_id = $2
		RETURNING `+webhookColumns, webhookID, tenantID)
	webhook, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Webhook{}, store.ErrWebhookNotFound
		}
		return models.Webhook{}, err
	}
	return webhook, nil
}

func getUser(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, tenantID, userID string) (models.User, error) {
	var user models.User
	err := q.QueryRow(ctx, `
		SELECT u.user_id, u.tenant_id, u.email, u.role_id, r.name, u.super_admin, u.active, u.created_at
		FROM users u
		JOIN roles r ON r.role_id = u.role_id
		WHERE u.tenant_id = $1 AND u.user_id = $2
	`, tenantID, userID).Scan(&user.UserID, &user.TenantID, &user.Email, &user.RoleID, &user.RoleName,
		&user.SuperAdmin, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanTenant(row pgx.Row) (models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(&tenant.TenantID, &tenant.Name, &tenant.Slug, &tenant.GSTIN, &tenant.StateCode, &tenant.Status,
		&tenant.CreatedAt, &tenant.UpdatedAt)
	return tenant, err
}

func scanLicense(row pgx.Row) (licensing.License, error) {
	var license licensing.License
	var expiresAt sql.NullTime
	if err := row.Scan(&license.TenantID, &license.Module, &license.Enabled, &license.Seats, &expiresAt, &license.UpdatedAt); err != nil {
		return licensing.License{}, err
	}
	if expiresAt.Valid {
		value := expiresAt.Time
		license.ExpiresAt = &value
	}
	return license, nil
}

func scanApproval(row pgx.Row) (models.ApprovalRequest, error) {
	var approval models.ApprovalRequest
	var payload string
	var decidedAt sql.NullTime
	err := row.Scan(&approval.ApprovalID, &approval.TenantID, &approval.RequestType, &payload, &approval.Status,
		&approval.CreatedBy, &approval.DecidedBy, &approval.CreatedAt, &decidedAt)
	if err != nil {
		return models.ApprovalRequest{}, err
	}
	approval.Payload = json.RawMessage(payload)
	if decidedAt.Valid {
		value := decidedAt.Time
		approval.DecidedAt = &value
	}
	return approval, nil
}

func scanWebhook(row pgx.Row) (models.Webhook, error) {
	var webhook models.Webhook
	var lastDelivery sql.NullTime
	err := row.Scan(&webhook.WebhookID, &webhook.TenantID, &webhook.URL, &webhook.Events, &webhook.Active,
		&webhook.FailureCount, &webhook.LastError, &lastDelivery, &webhook.CreatedAt)
	if err != nil {
		return models.Webhook{}, err
	}
	if lastDelivery.Valid {
		value := lastDelivery.Time
		webhook.LastDeliveryAt = &value
	}
	return webhook, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
