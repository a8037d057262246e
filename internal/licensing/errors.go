package licensing

import "errors"

var (
	ErrUnknownModule      = errors.New("unknown module")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantSuspended    = errors.New("tenant suspended")
	ErrModuleNotLicensed  = errors.New("module not licensed")
	ErrLicenseExpired     = errors.New("license expired")
	ErrLicenseUnavailable = errors.New("license check unavailable")
)
