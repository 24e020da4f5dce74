package auth

// Package auth contains simple hand-written test doubles for the session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oculus-oct/oculus-go/internal/adapters/memstore"
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore        = (*MemorySessionStore)(nil)
	_ ports.CredentialRefresher = (*StubRefresher)(nil)
	_ ports.SessionListener     = (*RecordingListener)(nil)
)

// MemorySessionStore wraps memstore.SessionStore with error injection and write counters.
// Err fields, when set, are returned instead of touching the stored session; SetErr also
// fails the narrow writes.
type MemorySessionStore struct {
	store *memstore.SessionStore

	mu       sync.Mutex
	GetErr   error
	SetErr   error
	ClearErr error

	sets   int
	clears int
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{store: memstore.NewSessionStore()}
}

// NewMemorySessionStoreWith creates a store pre-populated with sess. The seed is not counted
// as a write; a half session panics.
func NewMemorySessionStoreWith(sess domainauth.Session) *MemorySessionStore {
	m := NewMemorySessionStore()
	if err := m.store.Set(context.Background(), sess); err != nil {
		panic(err)
	}
	return m
}

func (m *MemorySessionStore) Get(ctx context.Context) (domainauth.Session, error) {
	if err := m.injected(&m.GetErr); err != nil {
		return domainauth.Session{}, err
	}
	return m.store.Get(ctx)
}

func (m *MemorySessionStore) Set(ctx context.Context, sess domainauth.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := m.injected(&m.SetErr); err != nil {
		return err
	}
	if err := m.store.Set(ctx, sess); err != nil {
		return err
	}
	m.count(&m.sets)
	return nil
}

func (m *MemorySessionStore) SetIdentity(ctx context.Context, id *domainauth.Identity) error {
	if err := m.injected(&m.SetErr); err != nil {
		return err
	}
	if err := m.store.SetIdentity(ctx, id); err != nil {
		return err
	}
	m.count(&m.sets)
	return nil
}

func (m *MemorySessionStore) RotateTokens(ctx context.Context, presented string, tokens domainauth.Tokens) (bool, error) {
	if err := m.injected(&m.SetErr); err != nil {
		return false, err
	}
	swapped, err := m.store.RotateTokens(ctx, presented, tokens)
	if swapped {
		m.count(&m.sets)
	}
	return swapped, err
}

func (m *MemorySessionStore) Clear(ctx context.Context) error {
	if err := m.injected(&m.ClearErr); err != nil {
		return err
	}
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.count(&m.clears)
	return nil
}

// Snapshot returns the stored session without going through Get's error injection.
func (m *MemorySessionStore) Snapshot() domainauth.Session {
	sess, _ := m.store.Get(context.Background())
	return sess
}

// Sets returns how many successful writes the store has seen.
func (m *MemorySessionStore) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Clears returns how many successful clears the store has seen.
func (m *MemorySessionStore) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func (m *MemorySessionStore) injected(err *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *err
}

func (m *MemorySessionStore) count(n *int) {
	m.mu.Lock()
	*n++
	m.mu.Unlock()
}

// StubRefresher is a deterministic CredentialRefresher.
// Without RefreshFunc it issues "access-N"/"refresh-N" for the Nth call.
type StubRefresher struct {
	RefreshFunc func(ctx context.Context, refreshToken string) (domainauth.Tokens, error)

	calls atomic.Int64
}

func (s *StubRefresher) Refresh(ctx context.Context, refreshToken string) (domainauth.Tokens, error) {
	n := s.calls.Add(1)
	if s.RefreshFunc != nil {
		return s.RefreshFunc(ctx, refreshToken)
	}
	return domainauth.Tokens{
		Access:  fmt.Sprintf("access-%d", n),
		Refresh: fmt.Sprintf("refresh-%d", n),
	}, nil
}

// Calls returns how many times Refresh was invoked.
func (s *StubRefresher) Calls() int { return int(s.calls.Load()) }

// RecordingListener counts session-lost notifications.
type RecordingListener struct {
	lost atomic.Int64
}

func (r *RecordingListener) SessionLost(context.Context) { r.lost.Add(1) }

// Lost returns how many notifications were received.
func (r *RecordingListener) Lost() int { return int(r.lost.Load()) }
