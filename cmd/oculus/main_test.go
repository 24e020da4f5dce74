package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/adapters/memstore"
	"github.com/oculus-oct/oculus-go/internal/bootstrap"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/testutil"
)

// harness runs CLI invocations against a fake backend, sharing one session store so
// the session survives between commands like it would on disk.
type harness struct {
	backend *testutil.FakeBackend
	store   *memstore.SessionStore
	cfg     config.AppConfig
}

type result struct {
	stdout string
	stderr string
	code   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	backend := testutil.NewFakeBackend(t)
	backend.AddUser(testutil.FakeUser{
		Username: "doc1", Password: "secret", Email: "doc1@example.com",
		FirstName: "Ada", LastName: "Lovelace", Hospital: "St Mary",
	})

	cfg := config.AppConfig{
		API: config.APIConfig{
			BaseURL:         backend.URL(),
			RequestTimeout:  5 * time.Second,
			RefreshTimeout:  5 * time.Second,
			CoalesceRefresh: true,
		},
		Session: config.SessionConfig{Backend: config.SessionBackendMemory},
		Cache:   config.CacheConfig{AnalysisSize: 16, AnalysisTTL: time.Minute},
		Log:     config.LogConfig{Level: "error", Format: config.LogFormatText},
	}
	cfg.Sanitize()

	return &harness{backend: backend, store: memstore.NewSessionStore(), cfg: cfg}
}

func (h *harness) runWithInput(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &out, &errOut)
	c.loadConfig = func() (config.AppConfig, error) { return h.cfg, nil }
	c.appOptions = bootstrap.AppOptions{Store: h.store, Metrics: statsd.Discard{}}

	code := run(context.Background(), c, args)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func (h *harness) run(t *testing.T, args ...string) result {
	t.Helper()
	return h.runWithInput(t, "", args...)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	res := h.run(t, "login", "-u", "doc1", "-p", "secret")
	require.Zero(t, res.code, res.stderr)
}

func (h *harness) uploadScan(t *testing.T, name, customID string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("scan-bytes-"+name), 0o600))

	res := h.run(t, "images", "upload", path, "--custom-id", customID, "--query", "id")
	require.Zero(t, res.code, res.stderr)
	var id string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &id))
	return id
}

func TestCLI_Help(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "--help")
	require.Zero(t, res.code)
	for _, sub := range []string{"login", "signup", "images", "analysis", "reviews", "status"} {
		assert.Contains(t, res.stdout, sub)
	}
}

func TestCLI_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "teleport")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "login", "-u", "doc1", "-p", "secret")
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged in as Ada Lovelace.")
	assert.Contains(t, res.stdout, "St Mary")

	res = h.run(t, "whoami", "--query", "hospital")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "\"St Mary\"\n", res.stdout)

	res = h.run(t, "status", "--json")
	require.Zero(t, res.code, res.stderr)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &status))
	assert.Equal(t, "confirmed", status["state"])
	assert.Equal(t, "memory", status["backend"])
	assert.NotEmpty(t, status["access_expires_at"])

	res = h.run(t, "logout")
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged out.")

	res = h.run(t, "whoami")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not logged in")

	res = h.run(t, "status", "--query", "state")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "\"anonymous\"\n", res.stdout)
}

func TestCLI_LoginPasswordStdin(t *testing.T) {
	h := newHarness(t)
	res := h.runWithInput(t, "secret\n", "login", "--username", "doc1", "--password-stdin", "--query", "username")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "\"doc1\"\n", res.stdout)
}

func TestCLI_LoginRejected(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "login", "-u", "doc1", "-p", "wrong")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "No active account found")

	sess, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.IsZero())
}

func TestCLI_InvalidQuery(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "status", "--query", "[?")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid --query")
}

func TestCLI_Signup(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "signup", "-u", "doc2", "-p", "pw", "--email", "doc2@example.com",
		"--first-name", "Grace", "--last-name", "Hopper", "--hospital", "General")
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Account created, logged in as Grace Hopper.")

	res = h.run(t, "signup", "-u", "doc1", "-p", "pw", "--email", "other@example.com")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "username")
}

func TestCLI_ProfileUpdate(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	res := h.run(t, "profile", "update", "--specialty", "Retina", "--json")
	require.Zero(t, res.code, res.stderr)
	var id map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &id))
	assert.Equal(t, "Retina", id["specialty"])
	assert.Equal(t, "St Mary", id["hospital"])

	res = h.run(t, "profile", "update")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "at least one field")
}

func TestCLI_ImagesRequireSession(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "images", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not logged in")
	assert.Empty(t, h.backend.RequestsTo("GET", "/oct-images/"))
}

func TestCLI_ImagesWorkflow(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	first := h.uploadScan(t, "left.png", "P-1")
	second := h.uploadScan(t, "right.png", "P-2")

	res := h.run(t, "images", "list")
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "CUSTOM ID")
	assert.Contains(t, res.stdout, "P-1")
	assert.Contains(t, res.stdout, "P-2")

	res = h.run(t, "images", "get", first, second, "--query", "[].custom_id")
	require.Zero(t, res.code, res.stderr)
	assert.JSONEq(t, `["P-1","P-2"]`, res.stdout)

	res = h.run(t, "images", "get", first)
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "CLASSIFICATION")
	assert.Contains(t, res.stdout, "normal")

	res = h.run(t, "analysis", "list", first, "--query", "[0].classification")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "\"normal\"\n", res.stdout)

	dst := filepath.Join(t.TempDir(), "out.png")
	res = h.run(t, "images", "download", first, "-o", dst)
	require.Zero(t, res.code, res.stderr)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "scan-bytes-left.png", string(got))
}

func TestCLI_SessionExpired(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.backend.ExpireAccessTokens()
	h.backend.RevokeRefreshTokens()

	res := h.run(t, "images", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "session expired")

	sess, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.IsZero())
}

func TestCLI_ReviewsWorkflow(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	imageID := h.uploadScan(t, "scan.png", "P-9")

	res := h.run(t, "images", "get", imageID, "--query", "analysis_result.id")
	require.Zero(t, res.code, res.stderr)
	var analysisID string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &analysisID))

	res = h.run(t, "reviews", "submit", "--analysis", analysisID, "--rating", "4", "--comments", "Agree", "--json")
	require.Zero(t, res.code, res.stderr)
	var submitted struct {
		Review struct {
			ID      string `json:"id"`
			IsOwner bool   `json:"is_owner"`
		} `json:"review"`
		Reviews []map[string]any `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &submitted))
	require.NotEmpty(t, submitted.Review.ID)
	assert.True(t, submitted.Review.IsOwner)
	assert.Len(t, submitted.Reviews, 1)

	res = h.run(t, "reviews", "submit", "--analysis", analysisID, "--rating", "9", "--comments", "x")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "rating must be between 1 and 5")

	res = h.run(t, "reviews", "update", submitted.Review.ID, "--rating", "2")
	require.Zero(t, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Review updated.")
	assert.Contains(t, res.stdout, "RATING")

	res = h.run(t, "reviews", "list", "--analysis", analysisID, "--query", "[0].rating")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "2\n", res.stdout)

	res = h.run(t, "reviews", "delete", submitted.Review.ID, "--analysis", analysisID, "--query", "length(reviews)")
	require.Zero(t, res.code, res.stderr)
	assert.Equal(t, "0\n", res.stdout)
}
