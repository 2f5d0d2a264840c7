package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/auth"
	"github.com/alanyoungcy/stocksim/internal/server/middleware"
)

func TestAuth(t *testing.T) {
	authn := auth.NewStaticAuthenticator(map[string]string{"secret": "acct-1"})

	var gotAccount string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = middleware.AccountFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := middleware.Auth(authn, "/api/health")(next)

	t.Run("bearer token resolves the account", func(t *testing.T) {
		gotAccount = ""
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "acct-1", gotAccount)
	})

	t.Run("api key header resolves the account", func(t *testing.T) {
		gotAccount = ""
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "acct-1", gotAccount)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("exempt path passes without a token", func(t *testing.T) {
		gotAccount = "stale"
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, gotAccount)
	})
}
