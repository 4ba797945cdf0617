package middleware

import (
	"context"
	"net/http"

	"aaron-services/internal/common/auth"
)

type contextKey string

const principalContextKey contextKey = "principal"

type AuthMiddleware struct {
	verifier *auth.TokenVerifier
}

func NewAuthMiddleware(verifier *auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Wrap rejects requests without a valid bearer token. The response is a
// plain 401 either way; expired and malformed tokens are indistinguishable
// to the caller.
func (am *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := am.verifier.VerifyRequest(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the verified identity set by Wrap.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*auth.Principal)
	return principal, ok
}
