package middleware

import (
	"net/http"

	"github.com/huddlehq/huddle/internal/api/response"
)

// RequirePlatformAdmin returns middleware that rejects non-admin identities with 403.
func RequirePlatformAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			if !identity.IsPlatformAdmin {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Platform admin access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns middleware that rejects identities whose team role is not
// in the allowed list. Platform admins have no team role and are also rejected.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			if identity.TeamID == nil || identity.Role == nil || !allowed[*identity.Role] {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireWriteMethods applies RequireRole(roles...) to every request except
// GET and HEAD, which pass through unchanged.
func RequireWriteMethods(roles ...string) func(http.Handler) http.Handler {
	gate := RequireRole(roles...)
	return func(next http.Handler) http.Handler {
		gated := gate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}
