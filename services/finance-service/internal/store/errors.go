package store

import "errors"

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantStateMissing = errors.New("tenant has no registered state")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvalidState       = errors.New("invalid invoice state")
	ErrPurchaseExists     = errors.New("purchase bill already recorded")
)
