package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	id := &domainauth.Identity{ID: "1", Email: "a@example.com"}
	require.NoError(t, store.Set(ctx, domainauth.NewSession(domainauth.Tokens{Access: "a", Refresh: "r"}, id)))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)
	require.NotNil(t, got.Identity)

	// returned identities never alias the stored one
	got.Identity.Email = "mutated@example.com"
	assert.Equal(t, "a@example.com", store.Snapshot().Identity.Email)

	require.NoError(t, store.Clear(ctx))
	assert.True(t, store.Snapshot().IsZero())
	assert.Equal(t, 1, store.Sets())
	assert.Equal(t, 1, store.Clears())
}

func TestMemorySessionStore_RejectsHalfSession(t *testing.T) {
	store := NewMemorySessionStore()
	err := store.Set(context.Background(), domainauth.Session{AccessToken: "a"})
	assert.ErrorIs(t, err, domainauth.ErrHalfSession)
	assert.Zero(t, store.Sets())
}

func TestMemorySessionStore_ErrorInjection(t *testing.T) {
	boom := errors.New("boom")
	store := NewMemorySessionStoreWith(domainauth.Session{AccessToken: "a", RefreshToken: "r"})
	store.GetErr = boom

	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", store.Snapshot().AccessToken)
}

func TestMemorySessionStore_NarrowWritesCountAndFail(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStoreWith(domainauth.Session{AccessToken: "a", RefreshToken: "r"})

	require.NoError(t, store.SetIdentity(ctx, &domainauth.Identity{ID: "1"}))
	swapped, err := store.RotateTokens(ctx, "stale", domainauth.Tokens{Access: "a2", Refresh: "r2"})
	require.NoError(t, err)
	assert.False(t, swapped)
	swapped, err = store.RotateTokens(ctx, "r", domainauth.Tokens{Access: "a2", Refresh: "r2"})
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, 2, store.Sets())

	got := store.Snapshot()
	assert.Equal(t, "r2", got.RefreshToken)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "1", got.Identity.ID)

	boom := errors.New("boom")
	store.SetErr = boom
	assert.ErrorIs(t, store.SetIdentity(ctx, nil), boom)
	_, err = store.RotateTokens(ctx, "r2", domainauth.Tokens{Access: "a3", Refresh: "r3"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "r2", store.Snapshot().RefreshToken)
	assert.Equal(t, 2, store.Sets())
}

func TestStubRefresher_Deterministic(t *testing.T) {
	r := &StubRefresher{}
	tok, err := r.Refresh(context.Background(), "r0")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Tokens{Access: "access-1", Refresh: "refresh-1"}, tok)

	tok, err = r.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.Access)
	assert.Equal(t, 2, r.Calls())
}

func TestRecordingListener_Concurrent(t *testing.T) {
	var l RecordingListener
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.SessionLost(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, l.Lost())
}
