package store

import "errors"

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantExists       = errors.New("tenant slug already exists")
	ErrLicenseNotFound    = errors.New("license not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleExists         = errors.New("role already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrApprovalNotFound   = errors.New("approval request not found")
	ErrApprovalNotPending = errors.New("approval request not pending")
	ErrSelfApproval       = errors.New("approver must differ from requester")
	ErrWebhookNotFound    = errors.New("webhook not found")
)
