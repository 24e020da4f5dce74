package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculus-oct/oculus-go/config"
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/service"
	"github.com/oculus-oct/oculus-go/internal/testutil"
)

func newTestApp(t *testing.T) (*App, *testutil.FakeBackend, *testutil.RecordingSink) {
	t.Helper()
	backend := testutil.NewFakeBackend(t)
	backend.AddUser(testutil.FakeUser{
		Username: "doc1", Password: "secret", Email: "doc1@example.com",
		FirstName: "Ada", LastName: "Lovelace", Hospital: "St Mary",
	})

	cfg := &config.AppConfig{
		API: config.APIConfig{
			BaseURL:         backend.URL(),
			RequestTimeout:  5 * time.Second,
			RefreshTimeout:  5 * time.Second,
			UserAgent:       "oculus-test",
			CoalesceRefresh: true,
		},
		Session: config.SessionConfig{Backend: config.SessionBackendMemory},
		Cache:   config.CacheConfig{AnalysisSize: 16, AnalysisTTL: time.Minute},
	}
	cfg.Sanitize()

	sink := &testutil.RecordingSink{}
	app, err := NewApp(context.Background(), AppOptions{Config: cfg, Metrics: sink})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	return app, backend, sink
}

func TestNewApp_RequiresConfig(t *testing.T) {
	_, err := NewApp(context.Background(), AppOptions{})
	require.EqualError(t, err, "config is required")
}

func TestNewApp_StoreFailureReleasesResources(t *testing.T) {
	cfg := &config.AppConfig{
		API:     config.APIConfig{BaseURL: "http://localhost:8000/api"},
		Session: config.SessionConfig{Backend: config.SessionBackendMemory, EncryptionKey: "bogus"},
	}
	_, err := NewApp(context.Background(), AppOptions{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open session store")
}

func TestNewApp_InvalidBaseURL(t *testing.T) {
	cfg := &config.AppConfig{
		API:     config.APIConfig{BaseURL: "::not a url"},
		Session: config.SessionConfig{Backend: config.SessionBackendMemory},
	}
	_, err := NewApp(context.Background(), AppOptions{Config: cfg})
	require.Error(t, err)
}

func TestApp_LoginLifecycle(t *testing.T) {
	ctx := context.Background()
	app, backend, sink := newTestApp(t)

	<-app.Sessions.Start(ctx)
	assert.Equal(t, domainauth.StateAnonymous, app.Sessions.State())

	id, err := app.Sessions.Login(ctx, domainauth.Credentials{Username: "doc1", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "St Mary", id.Hospital)
	assert.Equal(t, domainauth.StateConfirmed, app.Sessions.State())

	sess, err := app.Store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, sess.HasTokens())

	subject, ok := app.Subjects.Subject(sess.AccessToken)
	require.True(t, ok)
	assert.Equal(t, id.ID, subject)

	// an expired access token is refreshed transparently through the shared pipeline
	backend.ExpireAccessTokens()
	_, err = app.Sessions.RefreshIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.RefreshCount())

	app.Sessions.Logout(ctx)
	assert.Equal(t, domainauth.StateAnonymous, app.Sessions.State())
	assert.Positive(t, sink.Total("api.request", nil))
}

func TestApp_LostSessionReachesSessionService(t *testing.T) {
	ctx := context.Background()
	app, backend, sink := newTestApp(t)
	<-app.Sessions.Start(ctx)

	_, err := app.Sessions.Login(ctx, domainauth.Credentials{Username: "doc1", Password: "secret"})
	require.NoError(t, err)

	var seen []domainauth.AuthState
	cancel := app.Sessions.Subscribe(func(s service.Snapshot) { seen = append(seen, s.State) })
	defer cancel()

	backend.ExpireAccessTokens()
	backend.RevokeRefreshTokens()

	_, err = app.Images.List(ctx, model.ImageQuery{})
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err), "got %v", err)

	assert.Equal(t, domainauth.StateAnonymous, app.Sessions.State())
	assert.Equal(t, []domainauth.AuthState{domainauth.StateAnonymous}, seen)
	assert.Equal(t, int64(1), sink.Total("session.lost", map[string]string{"reason": "refresh_failed"}))

	sess, err := app.Store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, sess.IsZero())
}
