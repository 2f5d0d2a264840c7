// Package auth provides the token authenticator used by the API server.
// Identity management (registration, credential issuance) lives outside this
// service; tokens arrive through configuration.
package auth

import (
	"context"
	"crypto/subtle"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// StaticAuthenticator resolves bearer tokens against a fixed token-to-account
// map loaded from configuration.
type StaticAuthenticator struct {
	tokens map[string]string
}

// NewStaticAuthenticator creates a StaticAuthenticator from a token → account
// ID map.
func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	copied := make(map[string]string, len(tokens))
	for token, account := range tokens {
		copied[token] = account
	}
	return &StaticAuthenticator{tokens: copied}
}

// Authenticate returns the account ID for a known token. Comparison is
// constant-time per candidate to prevent timing attacks.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	var accountID string
	found := 0
	for candidate, account := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			accountID = account
			found = 1
		}
	}
	if found != 1 {
		return "", domain.ErrUnauthorized
	}
	return accountID, nil
}

// Compile-time interface check.
var _ domain.Authenticator = (*StaticAuthenticator)(nil)
