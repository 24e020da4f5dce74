// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

// ErrCorruptSession is returned by a SessionStore whose persisted record cannot be decoded.
// Callers treat it like an absent session.
var ErrCorruptSession = errors.New("session store: unreadable record")

// SessionStore persists the client-side session.
// Writes are atomic over the token pair and the cached identity; Get on an empty store
// returns the zero Session and a nil error.
type SessionStore interface {
	Get(ctx context.Context) (domainauth.Session, error)
	Set(ctx context.Context, sess domainauth.Session) error
	Clear(ctx context.Context) error

	// SetIdentity replaces only the cached identity; the stored tokens are never rewritten.
	// It does nothing when no session is stored.
	SetIdentity(ctx context.Context, id *domainauth.Identity) error

	// RotateTokens replaces the token pair, keeping the cached identity, only while the
	// stored refresh token is still presented. swapped is false when the session changed
	// hands or was cleared in the meantime.
	RotateTokens(ctx context.Context, presented string, tokens domainauth.Tokens) (swapped bool, err error)
}

// CredentialRefresher exchanges a refresh token for a new token pair.
// Implementations never retry and never touch the SessionStore.
type CredentialRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domainauth.Tokens, error)
}

// SessionListener is told when the session has been torn down after an irrecoverable auth failure.
type SessionListener interface {
	SessionLost(ctx context.Context)
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(ctx context.Context)

// SessionLost implements SessionListener.
func (f SessionListenerFunc) SessionLost(ctx context.Context) { f(ctx) }

// SubjectReader extracts the user id an access token was issued for.
// ok is false when the token does not carry a readable subject.
type SubjectReader interface {
	Subject(accessToken string) (userID domainauth.FlexString, ok bool)
}
