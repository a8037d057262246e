package store

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTenantSuspended    = errors.New("tenant suspended")
	ErrUserNotFound       = errors.New("user not found")
	ErrRefreshInvalid     = errors.New("refresh token invalid")
	ErrNoDefaultRole      = errors.New("tenant has no default role")
)
