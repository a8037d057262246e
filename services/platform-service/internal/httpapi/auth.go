package httpapi

import (
	"net/http"

	"payaid/internal/authn"
)

// IsPublic reports whether a request skips authentication and the module
// gate.
func IsPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return true
	default:
		return r.Method == http.MethodOptions
	}
}

func actorID(r *http.Request) string {
	p, _ := authn.FromContext(r.Context())
	return p.UserID
}
