package httpapi

import "net/http"

// IsPublic reports whether a request skips access token verification. Only
// /api/auth/me needs a token.
func IsPublic(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	return r.URL.Path != "/api/auth/me"
}
