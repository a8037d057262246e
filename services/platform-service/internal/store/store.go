package store

import (
	"context"
	"time"

	"payaid/internal/licensing"
	"payaid/services/platform-service/internal/models"
)

type TenantInput struct {
	Name      string
	Slug      string
	GSTIN     string
	StateCode string
}

type LicenseGrant struct {
	TenantID  string     `json:"tenant_id"`
	Module    string     `json:"module"`
	Seats     int        `json:"seats"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type LicenseRevoke struct {
	TenantID string `json:"tenant_id"`
	Module   string `json:"module"`
}

type RoleAssignment struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	RoleID   string `json:"role_id"`
}

type AuditFilter struct {
	ActionType string
	UserID     string
}

type DecisionInput struct {
	TenantID   string
	ApprovalID string
	DeciderID  string
	Status     string
}

type TenantStore interface {
	CreateTenant(ctx context.Context, input TenantInput) (models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (models.Tenant, error)
	SetTenantStatus(ctx context.Context, tenantID, status string) (models.Tenant, error)
}

type LicenseStore interface {
	ListLicenses(ctx context.Context, tenantID string) ([]licensing.License, error)
	GrantLicense(ctx context.Context, grant LicenseGrant) (licensing.License, error)
	RevokeLicense(ctx context.Context, revoke LicenseRevoke) (licensing.License, error)
}

type AccessStore interface {
	CreateRole(ctx context.Context, tenantID, name string) (models.Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]models.Role, error)
	GetUser(ctx context.Context, tenantID, userID string) (models.User, error)
	UpdateUserRole(ctx context.Context, assignment RoleAssignment) (models.User, error)
	InsertAudit(ctx context.Context, audit models.AuditLog) error
	ListAudit(ctx context.Context, tenantID string, filter AuditFilter) ([]models.AuditLog, error)
}

type ApprovalStore interface {
	CreateApproval(ctx context.Context, approval models.ApprovalRequest) (models.ApprovalRequest, error)
	ListApprovals(ctx context.Context, tenantID, status string) ([]models.ApprovalRequest, error)
	GetApproval(ctx context.Context, tenantID, approvalID string) (models.ApprovalRequest, error)
	DecideApproval(ctx context.Context, input DecisionInput) (models.ApprovalRequest, error)
	ReopenApproval(ctx context.Context, tenantID, approvalID string) (models.ApprovalRequest, error)
	ApprovalsEnabled(ctx context.Context, tenantID string) (bool, error)
	SetApprovalPrefs(ctx context.Context, tenantID string, enabled bool) error
}

type WebhookStore interface {
	CreateWebhook(ctx context.Context, webhook models.Webhook) (models.Webhook, error)
	ListWebhooks(ctx context.Context, tenantID string) ([]models.Webhook, error)
	DeleteWebhook(ctx context.Context, tenantID, webhookID string) error
	EnableWebhook(ctx context.Context, tenantID, webhookID string) (models.Webhook, error)
}

type Store interface {
	TenantStore
	LicenseStore
	AccessStore
	ApprovalStore
	WebhookStore
}
