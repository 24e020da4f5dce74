package auth

// Package auth contains domain-level types for the client session lifecycle.
// It is pure and free of transport/storage concerns.

import (
	"errors"

	"golang.org/x/oauth2"
)

// Persisted key names. Every store adapter keeps the three session fields under these names.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyIdentity     = "user"
)

// ErrHalfSession is returned when a session carries only one of the two tokens.
var ErrHalfSession = errors.New("access and refresh tokens must be set together")

// Tokens is an access/refresh credential pair issued by the token endpoints.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether neither token is present.
func (t Tokens) Empty() bool { return t.Access == "" && t.Refresh == "" }

// Complete reports whether both tokens are present.
func (t Tokens) Complete() bool { return t.Access != "" && t.Refresh != "" }

// OAuth2 converts the pair into a bearer oauth2.Token.
func (t Tokens) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.Access,
		RefreshToken: t.Refresh,
		TokenType:    "Bearer",
	}
}

// AuthResult is what the login and signup endpoints return.
type AuthResult struct {
	Tokens   Tokens
	Identity Identity
}

// Session is the client-held tuple of access credential, refresh credential and cached identity.
// The zero value is the absent session.
type Session struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Identity     *Identity `json:"user,omitempty"`
}

// NewSession builds a session from a token pair and an optional identity.
func NewSession(tokens Tokens, identity *Identity) Session {
	return Session{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		Identity:     identity.Clone(),
	}
}

// Tokens returns the credential pair held by the session.
func (s Session) Tokens() Tokens {
	return Tokens{Access: s.AccessToken, Refresh: s.RefreshToken}
}

// HasTokens reports whether the session carries a credential pair.
func (s Session) HasTokens() bool { return s.Tokens().Complete() }

// IsZero reports whether the session is absent (all three fields cleared).
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.Identity == nil
}

// WithTokens returns a copy of the session with the credential pair replaced and identity retained.
func (s Session) WithTokens(t Tokens) Session {
	s.AccessToken = t.Access
	s.RefreshToken = t.Refresh
	s.Identity = s.Identity.Clone()
	return s
}

// WithIdentity returns a copy of the session with the cached identity replaced.
func (s Session) WithIdentity(id *Identity) Session {
	s.Identity = id.Clone()
	return s
}

// Validate enforces the paired-token invariant.
func (s Session) Validate() error {
	if (s.AccessToken == "") != (s.RefreshToken == "") {
		return ErrHalfSession
	}
	return nil
}

// AuthState describes where the session context is in its startup state machine.
type AuthState string

const (
	// StateLoading is the initial state before the store has been read.
	StateLoading AuthState = "loading"
	// StateAnonymous means no usable session is held.
	StateAnonymous AuthState = "anonymous"
	// StateOptimistic means the identity came from the local cache and is not yet server-confirmed.
	StateOptimistic AuthState = "optimistic"
	// StateConfirmed means the identity was returned by the server during this process lifetime.
	StateConfirmed AuthState = "confirmed"
)

// Authenticated reports whether the state carries an identity.
func (s AuthState) Authenticated() bool {
	return s == StateOptimistic || s == StateConfirmed
}

func (s AuthState) String() string { return string(s) }

// RetryState is the single-shot retry flag carried alongside every pending request.
type RetryState uint8

const (
	// NotRetried is the state of a freshly created request.
	NotRetried RetryState = iota
	// Retried marks a request that has already been resent after an authorization failure.
	Retried
)

func (r RetryState) String() string {
	if r == Retried {
		return "retried"
	}
	return "not_retried"
}
