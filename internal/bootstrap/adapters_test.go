package bootstrap

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/adapters/filestore"
	"github.com/oculus-oct/oculus-go/internal/adapters/memstore"
	redisstore "github.com/oculus-oct/oculus-go/internal/adapters/redis"
	"github.com/oculus-oct/oculus-go/internal/testutil"
)

func TestOpenSessionStore_Memory(t *testing.T) {
	store, closeFn, err := OpenSessionStore(context.Background(), SessionStoreConfig{
		Session: config.SessionConfig{Backend: config.SessionBackendMemory},
	})
	require.NoError(t, err)
	assert.IsType(t, &memstore.SessionStore{}, store)
	assert.NoError(t, closeFn())
}

func TestOpenSessionStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	key := hex.EncodeToString(bytes.Repeat([]byte{1}, 32))

	store, closeFn, err := OpenSessionStore(ctx, SessionStoreConfig{
		Session: config.SessionConfig{Backend: config.SessionBackendFile, File: path, EncryptionKey: key},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	fs, ok := store.(*filestore.SessionStore)
	require.True(t, ok)
	assert.Equal(t, path, fs.Path())

	require.NoError(t, store.Set(ctx, testutil.SessionFor("access-1", "refresh-1", testutil.NewIdentity().Build())))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "access-1"), "tokens must be sealed on disk")

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
}

func TestOpenSessionStore_Redis(t *testing.T) {
	ctx := context.Background()
	mr, _ := testutil.SetupMiniRedis(t)

	store, closeFn, err := OpenSessionStore(ctx, SessionStoreConfig{
		Session: config.SessionConfig{Backend: config.SessionBackendRedis, RedisPrefix: "ward:"},
		Redis:   config.RedisConfig{URI: mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	assert.IsType(t, &redisstore.SessionStore{}, store)

	require.NoError(t, store.Set(ctx, testutil.SessionFor("a1", "r1", testutil.NewIdentity().Build())))
	assert.True(t, mr.Exists("ward:access_token"))
	assert.True(t, mr.Exists("ward:refresh_token"))
	assert.True(t, mr.Exists("ward:user"))
}

func TestOpenSessionStore_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionStoreConfig
		want string
	}{
		{
			name: "invalid encryption key",
			cfg:  SessionStoreConfig{Session: config.SessionConfig{Backend: config.SessionBackendMemory, EncryptionKey: "short"}},
			want: "session encryption key",
		},
		{
			name: "unreachable redis",
			cfg: SessionStoreConfig{
				Session: config.SessionConfig{Backend: config.SessionBackendRedis},
				Redis:   config.RedisConfig{URI: "127.0.0.1:1"},
			},
			want: "ping redis",
		},
		{
			name: "unknown backend",
			cfg:  SessionStoreConfig{Session: config.SessionConfig{Backend: "keychain"}},
			want: "unsupported session backend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := OpenSessionStore(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Nil(t, store)
			require.NotNil(t, closeFn)
			assert.NoError(t, closeFn())
		})
	}
}
