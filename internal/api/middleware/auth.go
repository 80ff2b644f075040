package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "estately/internal/api/context"
	"estately/internal/pkg/errors"
	"estately/internal/platform/auth"
)

type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokenSvc TokenValidator
}

func NewAuthMiddleware(tokenSvc TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Handle requires "Authorization: Bearer <token>" and stores the validated
// claims on the request.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, msg := bearerToken(r.Header.Get("Authorization"))
		if msg != "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, msg, nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token, returning a client-facing message when the
// header is unusable.
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "Missing authorization header"
	}

	rest, ok := strings.CutPrefix(header, "Bearer ")
	token := strings.TrimSpace(rest)
	if !ok || token == "" || strings.ContainsAny(token, " \t") {
		return "", "Invalid authorization header format"
	}
	return token, ""
}

// ClaimsFrom returns the claims AuthMiddleware stored on the request.
func ClaimsFrom(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	return claims, ok && claims != nil
}
