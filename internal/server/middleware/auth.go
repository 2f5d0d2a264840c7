package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

type contextKey string

const accountContextKey contextKey = "account_id"

// AccountFrom returns the authenticated account ID stored by the Auth
// middleware, or "" when the request was not authenticated.
func AccountFrom(ctx context.Context) string {
	id, _ := ctx.Value(accountContextKey).(string)
	return id
}

// WithAccount returns a context carrying an authenticated account ID. Exposed
// for handler tests.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountContextKey, accountID)
}

// Auth returns middleware that resolves the request's bearer token to an
// account through the Authenticator and stores the account ID on the request
// context. Tokens are read from the Authorization header (Bearer scheme) or
// the X-API-Key header. Paths listed in exempt pass through unauthenticated.
func Auth(authn domain.Authenticator, exempt ...string) func(http.Handler) http.Handler {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			accountID, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), accountID)))
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
