package models

import (
	"time"

	"payaid/internal/gst"
)

// Invoice is a stored outward invoice. Money is in paise.
type Invoice struct {
	TenantID string `json:"tenant_id"`
	gst.Invoice
	CreatedAt   time.Time  `json:"created_at"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type Purchase struct {
	TenantID string `json:"tenant_id"`
	gst.Purchase
	CreatedAt time.Time `json:"created_at"`
}

type Archive struct {
	ArchiveID string    `json:"archive_id"`
	TenantID  string    `json:"tenant_id"`
	Report    string    `json:"report"`
	Period    string    `json:"period"`
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"object_key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
