package authflow_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-graph-signin/identity/authflow"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	repo := authflow.NewInMemoryRepo()
	flow := authflow.NewFlow("state-1", "verifier", "nonce", []string{"user.read"}, time.Now())

	require.NoError(t, repo.Upsert("state-1", flow))

	t.Run("get returns a copy sharing the response channel", func(t *testing.T) {
		got, err := repo.Get("state-1")
		require.NoError(t, err)
		require.Equal(t, "verifier", got.CodeVerifier)

		got.Scopes[0] = "mutated"
		again, err := repo.Get("state-1")
		require.NoError(t, err)
		require.Equal(t, "user.read", again.Scopes[0])

		require.True(t, got.Complete(oauthmodel.AuthorizationResponse{State: "state-1", Code: "c"}))
		resp := <-flow.Responses()
		require.Equal(t, "c", resp.Code)
	})

	t.Run("complete accepts one response", func(t *testing.T) {
		f := authflow.NewFlow("s", "v", "n", nil, time.Now())
		require.True(t, f.Complete(oauthmodel.AuthorizationResponse{Code: "first"}))
		require.False(t, f.Complete(oauthmodel.AuthorizationResponse{Code: "second"}))
		require.Equal(t, "first", (<-f.Responses()).Code)
	})

	t.Run("missing state", func(t *testing.T) {
		_, err := repo.Get("unknown")
		require.ErrorIs(t, err, apperrors.ErrFlowNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete("state-1"))
		_, err := repo.Get("state-1")
		require.ErrorIs(t, err, apperrors.ErrFlowNotFound)
	})

	t.Run("empty state rejected", func(t *testing.T) {
		require.Error(t, repo.Upsert("", flow))
		require.Error(t, repo.Upsert("x", nil))
		require.Error(t, repo.Delete(""))
	})
}
