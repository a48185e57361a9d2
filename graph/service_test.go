package graph_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-graph-signin/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchProfile(t *testing.T) {
	t.Run("returns the user", func(t *testing.T) {
		srv := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1.0/me", r.URL.Path)
			assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","displayName":"Jane Doe","mail":"jane@contoso.com","userPrincipalName":"jane_contoso.com#EXT#","businessPhones":["+1 555"]}`))
		})

		user, err := graph.NewService(srv.URL+"/v1.0/", nil).FetchProfile(t.Context(), "T1")
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", user.DisplayName)
		assert.Equal(t, "jane@contoso.com", user.Mail)
		assert.Equal(t, []string{"+1 555"}, user.BusinessPhones)
	})

	t.Run("error envelope", func(t *testing.T) {
		srv := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("request-id", "req-123")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired or is not yet valid."}}`))
		})

		_, err := graph.NewService(srv.URL, nil).FetchProfile(t.Context(), "expired")
		var graphErr *graph.Error
		require.ErrorAs(t, err, &graphErr)
		assert.Equal(t, http.StatusUnauthorized, graphErr.StatusCode)
		assert.Equal(t, "InvalidAuthenticationToken", graphErr.Code)
		assert.Equal(t, "req-123", graphErr.RequestID)
		assert.Equal(t, "InvalidAuthenticationToken: Access token has expired or is not yet valid.", err.Error())
	})

	t.Run("non json failure", func(t *testing.T) {
		srv := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		})

		_, err := graph.NewService(srv.URL, nil).FetchProfile(t.Context(), "T1")
		var graphErr *graph.Error
		require.ErrorAs(t, err, &graphErr)
		assert.Equal(t, "Bad Gateway", graphErr.Code)
		assert.Equal(t, "upstream unavailable", graphErr.Message)
	})
}

func TestClientAuthProviderFailure(t *testing.T) {
	providerErr := errors.New("no token")
	client := graph.NewClient("http://unused", func(context.Context) (string, error) {
		return "", providerErr
	}, nil)

	err := client.API("me").Get(t.Context(), nil)
	require.ErrorIs(t, err, providerErr)
}
