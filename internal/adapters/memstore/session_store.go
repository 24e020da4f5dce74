// Package memstore keeps the client session in process memory. Nothing survives a restart;
// it backs SESSION_BACKEND=memory for scripted, one-shot use.
package memstore

import (
	"context"
	"sync"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// SessionStore is a mutex-guarded session held in memory.
type SessionStore struct {
	mu   sync.RWMutex
	sess domainauth.Session
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore { return &SessionStore{} }

// Get implements ports.SessionStore. The identity is copied so callers cannot mutate it.
func (s *SessionStore) Get(_ context.Context) (domainauth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.WithIdentity(s.sess.Identity), nil
}

// Set implements ports.SessionStore.
func (s *SessionStore) Set(_ context.Context, sess domainauth.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sess = sess.WithIdentity(sess.Identity)
	s.mu.Unlock()
	return nil
}

// Clear implements ports.SessionStore.
func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.sess = domainauth.Session{}
	s.mu.Unlock()
	return nil
}

// SetIdentity implements ports.SessionStore.
func (s *SessionStore) SetIdentity(_ context.Context, id *domainauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.IsZero() {
		return nil
	}
	s.sess = s.sess.WithIdentity(id)
	return nil
}

// RotateTokens implements ports.SessionStore.
func (s *SessionStore) RotateTokens(_ context.Context, presented string, tokens domainauth.Tokens) (bool, error) {
	if !tokens.Complete() {
		return false, domainauth.ErrHalfSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if presented == "" || s.sess.RefreshToken != presented {
		return false, nil
	}
	s.sess = s.sess.WithTokens(tokens)
	return true, nil
}
