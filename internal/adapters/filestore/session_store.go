// Package filestore persists the client session as a single JSON document on local disk.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oculus-oct/oculus-go/internal/data/cryptoutil"
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

const (
	documentVersion = 1
	fileMode        = 0o600
	dirMode         = 0o700
)

// document is the on-disk layout. Token values are sealed.
type document struct {
	Version      int                  `json:"version"`
	AccessToken  string               `json:"access_token,omitempty"`
	RefreshToken string               `json:"refresh_token,omitempty"`
	User         *domainauth.Identity `json:"user,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SessionStore keeps the session in one file, replaced atomically by rename.
type SessionStore struct {
	mu     sync.Mutex
	path   string
	sealer cryptoutil.Sealer
	now    func() time.Time
}

var _ ports.SessionStore = (*SessionStore)(nil)

// DefaultPath returns <user config dir>/oculus/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "oculus", "session.json"), nil
}

// NewSessionStore creates a store at path. A nil sealer stores tokens base64-encoded.
func NewSessionStore(path string, sealer cryptoutil.Sealer) (*SessionStore, error) {
	if path == "" {
		return nil, errors.New("file session store: path is required")
	}
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	return &SessionStore{path: path, sealer: sealer, now: time.Now}, nil
}

// Path returns the file the session is stored in.
func (s *SessionStore) Path() string { return s.path }

// Get implements ports.SessionStore.
func (s *SessionStore) Get(_ context.Context) (domainauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Set implements ports.SessionStore.
func (s *SessionStore) Set(ctx context.Context, sess domainauth.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.IsZero() {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(sess)
}

// SetIdentity implements ports.SessionStore.
func (s *SessionStore) SetIdentity(_ context.Context, id *domainauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.readLocked()
	if err != nil {
		return err
	}
	if sess.IsZero() {
		return nil
	}
	next := sess.WithIdentity(id)
	if next.IsZero() {
		return s.removeLocked()
	}
	return s.writeLocked(next)
}

// RotateTokens implements ports.SessionStore.
func (s *SessionStore) RotateTokens(_ context.Context, presented string, tokens domainauth.Tokens) (bool, error) {
	if !tokens.Complete() {
		return false, domainauth.ErrHalfSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.readLocked()
	if err != nil {
		return false, err
	}
	if presented == "" || sess.RefreshToken != presented {
		return false, nil
	}
	if err := s.writeLocked(sess.WithTokens(tokens)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionStore) readLocked() (domainauth.Session, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domainauth.Session{}, nil
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return domainauth.Session{}, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	if doc.Version != documentVersion {
		return domainauth.Session{}, fmt.Errorf("%w: unsupported version %d", ports.ErrCorruptSession, doc.Version)
	}
	tokens, err := cryptoutil.OpenTokens(s.sealer, doc.AccessToken, doc.RefreshToken)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	sess := domainauth.NewSession(tokens, doc.User)
	if err := sess.Validate(); err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	return sess, nil
}

func (s *SessionStore) writeLocked(sess domainauth.Session) error {
	access, refresh, err := cryptoutil.SealTokens(s.sealer, sess.Tokens())
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(document{
		Version:      documentVersion,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         sess.Identity,
		UpdatedAt:    s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.writeAtomic(raw)
}

// Clear implements ports.SessionStore.
func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked()
}

func (s *SessionStore) removeLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *SessionStore) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}
