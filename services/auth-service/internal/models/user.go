package models

import "time"

type User struct {
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	RoleName     string    `json:"role"`
	Email        string    `json:"email"`
	SuperAdmin   bool      `json:"super_admin"`
	TenantStatus string    `json:"tenant_status"`
	Created      time.Time `json:"created_at"`
}

// RefreshToken is stored by hash only. The raw value is handed to the client
// once.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
}
