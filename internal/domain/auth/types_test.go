package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Validate(t *testing.T) {
	assert.NoError(t, Session{}.Validate())
	assert.NoError(t, Session{AccessToken: "a", RefreshToken: "r"}.Validate())
	assert.ErrorIs(t, Session{AccessToken: "a"}.Validate(), ErrHalfSession)
	assert.ErrorIs(t, Session{RefreshToken: "r"}.Validate(), ErrHalfSession)
}

func TestSession_WithTokensRetainsIdentity(t *testing.T) {
	id := &Identity{ID: "7", Email: "doc@example.com"}
	s := NewSession(Tokens{Access: "a1", Refresh: "r1"}, id)

	next := s.WithTokens(Tokens{Access: "a2", Refresh: "r2"})
	assert.Equal(t, "a2", next.AccessToken)
	assert.Equal(t, "r2", next.RefreshToken)
	require.NotNil(t, next.Identity)
	assert.Equal(t, FlexString("7"), next.Identity.ID)

	// copies never alias the caller's identity
	id.Email = "changed@example.com"
	assert.Equal(t, "doc@example.com", s.Identity.Email)
	assert.Equal(t, "doc@example.com", next.Identity.Email)
}

func TestSession_IsZero(t *testing.T) {
	assert.True(t, Session{}.IsZero())
	assert.False(t, Session{Identity: &Identity{ID: "1"}}.IsZero())
	assert.False(t, Session{}.WithTokens(Tokens{Access: "a", Refresh: "r"}).IsZero())
}

func TestTokens_OAuth2SetsBearerHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	Tokens{Access: "abc", Refresh: "def"}.OAuth2().SetAuthHeader(req)
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
}

func TestAuthState_Authenticated(t *testing.T) {
	assert.False(t, StateLoading.Authenticated())
	assert.False(t, StateAnonymous.Authenticated())
	assert.True(t, StateOptimistic.Authenticated())
	assert.True(t, StateConfirmed.Authenticated())
}

func TestRetryState_String(t *testing.T) {
	assert.Equal(t, "not_retried", NotRetried.String())
	assert.Equal(t, "retried", Retried.String())
}
