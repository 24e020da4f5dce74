package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// RunSessionStoreNarrowWrites checks SetIdentity and RotateTokens against a store.
// newStore must return an empty store for every call.
func RunSessionStoreNarrowWrites(t *testing.T, newStore func(t *testing.T) ports.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("set identity on empty store does nothing", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SetIdentity(ctx, NewIdentity().Build()))

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("set identity keeps tokens", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, SessionFor("a1", "r1", NewIdentity().Build())))

		updated := NewIdentity().WithHospital("General").Build()
		require.NoError(t, store.SetIdentity(ctx, updated))

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domainauth.Tokens{Access: "a1", Refresh: "r1"}, got.Tokens())
		require.NotNil(t, got.Identity)
		assert.Equal(t, "General", got.Identity.Hospital)

		require.NoError(t, store.SetIdentity(ctx, nil))
		got, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, got.Identity)
		assert.Equal(t, "r1", got.RefreshToken)
	})

	t.Run("rotate tokens keeps identity", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, SessionFor("a1", "r1", NewIdentity().Build())))

		swapped, err := store.RotateTokens(ctx, "r1", domainauth.Tokens{Access: "a2", Refresh: "r2"})
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domainauth.Tokens{Access: "a2", Refresh: "r2"}, got.Tokens())
		require.NotNil(t, got.Identity)
		assert.Equal(t, "St Mary", got.Identity.Hospital)
	})

	t.Run("rotate tokens with a stale refresh token is refused", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, SessionFor("a2", "r2", nil)))

		swapped, err := store.RotateTokens(ctx, "r1", domainauth.Tokens{Access: "a3", Refresh: "r3"})
		require.NoError(t, err)
		assert.False(t, swapped)

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domainauth.Tokens{Access: "a2", Refresh: "r2"}, got.Tokens())
	})

	t.Run("rotate tokens on empty store is refused", func(t *testing.T) {
		store := newStore(t)
		swapped, err := store.RotateTokens(ctx, "r1", domainauth.Tokens{Access: "a2", Refresh: "r2"})
		require.NoError(t, err)
		assert.False(t, swapped)

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("rotate tokens rejects a half pair", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, SessionFor("a1", "r1", nil)))

		_, err := store.RotateTokens(ctx, "r1", domainauth.Tokens{Access: "a2"})
		require.ErrorIs(t, err, domainauth.ErrHalfSession)
	})

	t.Run("identity write after a rotation keeps the rotated pair", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, SessionFor("a1", "r1", NewIdentity().Build())))

		swapped, err := store.RotateTokens(ctx, "r1", domainauth.Tokens{Access: "a2", Refresh: "r2"})
		require.NoError(t, err)
		require.True(t, swapped)
		require.NoError(t, store.SetIdentity(ctx, NewIdentity().WithHospital("General").Build()))

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domainauth.Tokens{Access: "a2", Refresh: "r2"}, got.Tokens())
		require.NotNil(t, got.Identity)
		assert.Equal(t, "General", got.Identity.Hospital)
	})
}
