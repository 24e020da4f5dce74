package bootstrap

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/data/cryptoutil"
)

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInitLogger(t *testing.T) {
	t.Run("text handler honours level", func(t *testing.T) {
		restoreDefaultLogger(t)
		var buf bytes.Buffer
		logger := InitLogger(config.LogConfig{Level: "warn", Format: config.LogFormatText}, &buf)

		logger.Info("hidden")
		logger.Warn("shown", "component", "test")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "msg=shown")
		assert.Contains(t, out, "component=test")
		assert.Same(t, logger, slog.Default())
	})

	t.Run("json handler by default", func(t *testing.T) {
		restoreDefaultLogger(t)
		var buf bytes.Buffer
		logger := InitLogger(config.LogConfig{Level: "debug"}, &buf)

		logger.Debug("hello")
		assert.True(t, strings.HasPrefix(buf.String(), "{"), "expected JSON output, got %q", buf.String())
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://oculus.example.com/api/")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://oculus.example.com/api", cfg.API.BaseURL)
	assert.InDelta(t, 2.5, cfg.API.RateLimit, 0.0001)
	assert.Equal(t, config.SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, config.LogFormatText, cfg.Log.Format)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Setenv("API_REQUEST_TIMEOUT", "soon")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestCreateSealer(t *testing.T) {
	t.Run("empty key stores plainly", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		sealer, err := CreateSealer("", logger)
		require.NoError(t, err)
		assert.IsType(t, cryptoutil.PlainSealer{}, sealer)
		assert.Contains(t, buf.String(), "unsealed")
	})

	t.Run("hex key seals", func(t *testing.T) {
		key := hex.EncodeToString(bytes.Repeat([]byte{7}, 32))
		sealer, err := CreateSealer(key, nil)
		require.NoError(t, err)

		sealed, err := sealer.Seal("access_token", []byte("a1"))
		require.NoError(t, err)
		assert.NotEqual(t, "a1", sealed)

		opened, err := sealer.Open("access_token", sealed)
		require.NoError(t, err)
		assert.Equal(t, "a1", string(opened))
	})

	t.Run("invalid key fails", func(t *testing.T) {
		_, err := CreateSealer("not-a-key", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session encryption key")
	})
}

func TestNewRateLimiter(t *testing.T) {
	assert.Nil(t, NewRateLimiter(config.APIConfig{}))

	lim := NewRateLimiter(config.APIConfig{RateLimit: 4, RateBurst: 2})
	require.NotNil(t, lim)
	assert.InDelta(t, 4.0, float64(lim.Limit()), 0.0001)
	assert.Equal(t, 2, lim.Burst())
}

func TestNewHTTPClient(t *testing.T) {
	hc, err := NewHTTPClient()
	require.NoError(t, err)
	assert.NotNil(t, hc.Jar)
	assert.Zero(t, hc.Timeout)
}
