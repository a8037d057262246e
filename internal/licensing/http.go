package licensing

import (
	"errors"
	"net/http"

	"payaid/internal/authn"
	"payaid/internal/platform/web"
)

// HandleLicenseError writes the JSON error for a license failure. It returns
// false, writing nothing, when err is not one.
func HandleLicenseError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, ErrUnknownModule):
		web.WriteError(w, r, http.StatusBadRequest, "unknown_module", "unknown module")
	case errors.Is(err, ErrTenantNotFound):
		web.WriteError(w, r, http.StatusNotFound, "tenant_not_found", "tenant not found")
	case errors.Is(err, ErrTenantSuspended):
		web.WriteError(w, r, http.StatusForbidden, "tenant_suspended", "tenant is suspended")
	case errors.Is(err, ErrModuleNotLicensed):
		web.WriteError(w, r, http.StatusForbidden, "module_not_licensed", "module is not licensed for this tenant")
	case errors.Is(err, ErrLicenseExpired):
		web.WriteError(w, r, http.StatusForbidden, "license_expired", "module license has expired")
	case errors.Is(err, ErrLicenseUnavailable):
		web.WriteError(w, r, http.StatusServiceUnavailable, "license_unavailable", "license check temporarily unavailable")
	default:
		return false
	}
	return true
}

// RequireModule rejects requests whose principal may not use module. Requests
// that public exempts pass through untouched.
func RequireModule(gate *Gate, module string, public func(*http.Request) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public != nil && public(r) {
			next.ServeHTTP(w, r)
			return
		}
		p, ok := authn.FromContext(r.Context())
		if !ok {
			web.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		if err := gate.RequireModuleAccess(r.Context(), p, module); err != nil {
			if !HandleLicenseError(w, r, err) {
				web.Internal(w, r)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
