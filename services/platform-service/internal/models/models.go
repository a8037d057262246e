package models

import (
	"encoding/json"
	"time"
)

type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	GSTIN     string    `json:"gstin,omitempty"`
	StateCode string    `json:"state_code,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role struct {
	RoleID    string    `json:"role_id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	UserID     string    `json:"user_id"`
	TenantID   string    `json:"tenant_id"`
	Email      string    `json:"email"`
	RoleID     string    `json:"role_id"`
	RoleName   string    `json:"role"`
	SuperAdmin bool      `json:"super_admin"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditLog struct {
	AuditID     string    `json:"audit_id"`
	TenantID    string    `json:"tenant_id"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	ActionType  string    `json:"action_type"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// ApprovalRequest holds a deferred change until a second user decides it.
type ApprovalRequest struct {
	ApprovalID  string          `json:"approval_id"`
	TenantID    string          `json:"tenant_id"`
	RequestType string          `json:"request_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by,omitempty"`
	DecidedBy   string          `json:"decided_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
}

// Webhook is a tenant's outbound subscription. Secret is only populated on
// create.
type Webhook struct {
	WebhookID      string     `json:"webhook_id"`
	TenantID       string     `json:"tenant_id"`
	URL            string     `json:"url"`
	Events         []string   `json:"events"`
	Secret         string     `json:"secret,omitempty"`
	Active         bool       `json:"active"`
	FailureCount   int        `json:"failure_count"`
	LastError      string     `json:"last_error,omitempty"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
