package jwtclaims

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-key"))
	require.NoError(t, err)
	return tok
}

func TestReader_SubjectFromUserID(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"user_id": 42, "token_type": "access"})

	id, ok := Reader{}.Subject(tok)
	require.True(t, ok)
	assert.Equal(t, domainauth.FlexString("42"), id)
}

func TestReader_SubjectFallsBackToSub(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"sub": "doc-7"})

	id, ok := Reader{}.Subject(tok)
	require.True(t, ok)
	assert.Equal(t, domainauth.FlexString("doc-7"), id)
}

func TestReader_SubjectUnreadable(t *testing.T) {
	for _, tok := range []string{"", "opaque-token", "a.b.c"} {
		_, ok := Reader{}.Subject(tok)
		assert.False(t, ok, tok)
	}

	_, ok := Reader{}.Subject(sign(t, jwt.MapClaims{"scope": "x"}))
	assert.False(t, ok)
}

func TestReader_ExpiredTokenStillReadable(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	tok := sign(t, jwt.MapClaims{"user_id": "9", "exp": exp.Unix()})

	id, ok := Reader{}.Subject(tok)
	require.True(t, ok)
	assert.Equal(t, domainauth.FlexString("9"), id)

	got, ok := Reader{}.ExpiresAt(tok)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestReader_ExpiresAtMissing(t *testing.T) {
	_, ok := Reader{}.ExpiresAt(sign(t, jwt.MapClaims{"user_id": 1}))
	assert.False(t, ok)
}
