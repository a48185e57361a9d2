package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/internal/seal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	"github.com/valkey-io/valkey-go"
)

// startValkey runs a throwaway Valkey container, skipping when Docker is unavailable.
func startValkey(t *testing.T) valkey.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := valkeycontainer.Run(ctx, "valkey/valkey:8-alpine")
	if err != nil {
		t.Skipf("valkey container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	port, err := container.MappedPort(ctx, nat.Port("6379"))
	require.NoError(t, err)

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{net.JoinHostPort("localhost", port.Port())},
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestValkeyStoreKey(t *testing.T) {
	s := NewValkeyStore(nil, "graph-signin:", time.Hour, nil)
	assert.Equal(t, "graph-signin:token:oid.tid", s.key("oid.tid"))
}

func TestExpiryMillis(t *testing.T) {
	assert.Equal(t, int64(1), expiryMillis(time.Nanosecond))
	assert.Equal(t, int64(500), expiryMillis(500*time.Millisecond))
	assert.Equal(t, int64(1001), expiryMillis(time.Second+time.Microsecond))
	assert.Equal(t, int64(86_400_000), expiryMillis(24*time.Hour))
}

func TestValkeyStore(t *testing.T) {
	client := startValkey(t)
	ctx := t.Context()

	sealer, err := seal.New([]byte("cache-secret"), "token-cache")
	require.NoError(t, err)
	store := NewValkeyStore(client, "test", time.Hour, sealer)

	type entry struct {
		AccessToken string `json:"accessToken"`
	}

	t.Run("miss", func(t *testing.T) {
		var e entry
		require.ErrorIs(t, store.Get(ctx, "absent", &e), apperrors.ErrCacheMiss)
	})

	t.Run("round trip is sealed at rest", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "oid.tid", entry{AccessToken: "secret-at"}))

		raw, err := client.Do(ctx, client.B().Get().Key("test:token:oid.tid").Build()).ToString()
		require.NoError(t, err)
		assert.NotContains(t, raw, "secret-at")

		var out entry
		require.NoError(t, store.Get(ctx, "oid.tid", &out))
		assert.Equal(t, "secret-at", out.AccessToken)
	})

	t.Run("sub-second ttl expires", func(t *testing.T) {
		short := NewValkeyStore(client, "short", 300*time.Millisecond, nil)
		require.NoError(t, short.Set(ctx, "oid.tid", entry{AccessToken: "brief"}))

		ttl, err := client.Do(ctx, client.B().Pttl().Key("short:token:oid.tid").Build()).AsInt64()
		require.NoError(t, err)
		assert.Positive(t, ttl)
		assert.LessOrEqual(t, ttl, int64(300))

		require.Eventually(t, func() bool {
			var out entry
			return apperrors.Is(short.Get(ctx, "oid.tid", &out), apperrors.ErrCacheMiss)
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "oid.tid"))
		var out entry
		require.ErrorIs(t, store.Get(ctx, "oid.tid", &out), apperrors.ErrCacheMiss)
	})
}
