package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/auth"
	"github.com/alanyoungcy/stocksim/internal/domain"
)

func TestStaticAuthenticator(t *testing.T) {
	a := auth.NewStaticAuthenticator(map[string]string{
		"token-1": "acct-1",
		"token-2": "acct-2",
	})

	accountID, err := a.Authenticate(context.Background(), "token-2")
	require.NoError(t, err)
	require.Equal(t, "acct-2", accountID)

	_, err = a.Authenticate(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
