package middleware

import (
	"net/http"

	"estately/internal/pkg/errors"
	"estately/internal/platform/auth"
)

// RequireRole lets the request through only when the caller's role is one of
// roles. It must run after AuthMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}

func RequireAdmin() Middleware {
	return RequireRole(auth.RoleAdmin)
}
