package domain

import "context"

// Authenticator resolves a bearer token to an authenticated account
// identifier. Identity and credential management live outside this service;
// the core consumes them only through this contract.
type Authenticator interface {
	// Authenticate returns ErrUnauthorized when the token is unknown.
	Authenticate(ctx context.Context, token string) (accountID string, err error)
}
