package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/observability/metrics"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// ErrSessionChanged is returned when a logout or a new login replaced the session while
// an operation was in flight; its result is discarded.
var ErrSessionChanged = errors.New("session changed while the request was in flight")

// Snapshot is an immutable view of the session context.
type Snapshot struct {
	State    domainauth.AuthState
	Identity *domainauth.Identity
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool { return s.State.Authenticated() }

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	API        ports.AccountAPI
	Store      ports.SessionStore
	Reconciler *IdentityReconciler
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// SessionService is the session context: it owns the in-memory identity and auth state,
// persists every change to the session store, and tells subscribers about transitions.
// It implements ports.SessionListener so the request pipeline can report a lost session.
type SessionService struct {
	api        ports.AccountAPI
	store      ports.SessionStore
	reconciler *IdentityReconciler
	logger     *slog.Logger
	metrics    statsd.Sink

	mu       sync.RWMutex
	state    domainauth.AuthState
	identity *domainauth.Identity
	// gen is bumped whenever the session changes hands; results computed for an older
	// generation are dropped.
	gen uint64

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

var _ ports.SessionListener = (*SessionService)(nil)

// NewSessionService constructs a new SessionService in the Loading state.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.API == nil {
		return nil, errors.New("API is required")
	}
	if opts.Store == nil {
		return nil, errors.New("Store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Discard{}
	}
	reconciler := opts.Reconciler
	if reconciler == nil {
		var err error
		reconciler, err = NewIdentityReconciler(IdentityReconcilerOptions{API: opts.API, Store: opts.Store, Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	return &SessionService{
		api:        opts.API,
		store:      opts.Store,
		reconciler: reconciler,
		logger:     logger.With("component", "session_service"),
		metrics:    sink,
		state:      domainauth.StateLoading,
		subs:       make(map[int]func(Snapshot)),
	}, nil
}

// MustNewSessionService constructs a new SessionService and panics on error.
func MustNewSessionService(opts SessionServiceOptions) *SessionService {
	svc, err := NewSessionService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return svc
}

// Start runs the startup state machine. A cached identity moves the context to Optimistic
// immediately and is revalidated in the background; without one the context is Anonymous.
// The returned channel is closed when background reconciliation has finished.
func (s *SessionService) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	cached := s.reconciler.Hydrate(ctx)
	if cached == nil {
		s.transition(func() { s.set(domainauth.StateAnonymous, nil) })
		close(done)
		return done
	}

	var gen uint64
	s.transition(func() {
		s.set(domainauth.StateOptimistic, cached)
		gen = s.gen
	})

	go func() {
		defer close(done)
		id, err := s.reconciler.Reconcile(ctx)
		if err != nil {
			return
		}
		if err := s.confirm(ctx, gen, id); err != nil && !errors.Is(err, ErrSessionChanged) {
			s.logger.WarnContext(ctx, "persist confirmed identity failed", "error", err)
		}
	}()
	return done
}

// Login exchanges credentials for a session. On failure nothing stored changes.
func (s *SessionService) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	if err := creds.Validate(); err != nil {
		return domainauth.Identity{}, apperrors.Validation(err.Error())
	}
	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if err := s.establish(ctx, res); err != nil {
		return domainauth.Identity{}, err
	}
	s.logger.InfoContext(ctx, "logged in", "user_id", res.Identity.ID)
	return res.Identity, nil
}

// Signup registers an account and establishes its session. Field errors reported by the
// server are kept on the returned *errors.AppError.
func (s *SessionService) Signup(ctx context.Context, reg domainauth.Registration) (domainauth.Identity, error) {
	if err := reg.Validate(); err != nil {
		return domainauth.Identity{}, apperrors.Validation(err.Error())
	}
	res, err := s.api.Signup(ctx, reg)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if err := s.establish(ctx, res); err != nil {
		return domainauth.Identity{}, err
	}
	s.logger.InfoContext(ctx, "signed up", "user_id", res.Identity.ID)
	return res.Identity, nil
}

func (s *SessionService) establish(ctx context.Context, res domainauth.AuthResult) error {
	sess := domainauth.NewSession(res.Tokens, &res.Identity)
	var err error
	s.transition(func() {
		if err = s.store.Set(ctx, sess); err != nil {
			return
		}
		s.gen++
		s.set(domainauth.StateConfirmed, sess.Identity)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout clears the stored and in-memory session. It never fails and is idempotent.
func (s *SessionService) Logout(ctx context.Context) {
	s.transition(func() {
		s.gen++
		if err := s.store.Clear(ctx); err != nil {
			s.logger.ErrorContext(ctx, "clear session store failed", "error", err)
		}
		s.set(domainauth.StateAnonymous, nil)
	})
}

// SessionLost implements ports.SessionListener. The pipeline has already cleared the store.
func (s *SessionService) SessionLost(ctx context.Context) {
	s.logger.InfoContext(ctx, "session lost; re-authentication required")
	s.transition(func() {
		s.gen++
		s.set(domainauth.StateAnonymous, nil)
	})
}

// UpdateProfile sends a partial profile edit and shallow-merges the server's response into
// the in-memory identity: returned keys win, keys the server omitted are kept.
func (s *SessionService) UpdateProfile(ctx context.Context, upd domainauth.ProfileUpdate) (domainauth.Identity, error) {
	if err := upd.Validate(); err != nil {
		return domainauth.Identity{}, apperrors.Validation(err.Error())
	}
	gen := s.generation()

	raw, err := s.api.UpdateProfile(ctx, upd)
	if err != nil {
		return domainauth.Identity{}, err
	}

	var merged domainauth.Identity
	s.transition(func() {
		if s.gen != gen {
			err = ErrSessionChanged
			return
		}
		base := domainauth.Identity{}
		if s.identity != nil {
			base = *s.identity
		}
		if merged, err = base.Merge(raw); err != nil {
			err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "Malformed profile response.")
			return
		}
		s.persistIdentityLocked(ctx, &merged)
		state := s.state
		if !state.Authenticated() {
			// a partial response is not a confirmed identity
			state = domainauth.StateOptimistic
		}
		s.set(state, &merged)
	})
	if err != nil {
		return domainauth.Identity{}, err
	}
	return merged, nil
}

// RefreshIdentity re-fetches the authoritative identity and replaces the in-memory copy.
// On failure the prior identity is left intact and the error is returned.
func (s *SessionService) RefreshIdentity(ctx context.Context) (domainauth.Identity, error) {
	gen := s.generation()
	id, err := s.api.Me(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "refresh identity failed", "error", err)
		return domainauth.Identity{}, err
	}
	if err := s.confirm(ctx, gen, id); err != nil {
		return domainauth.Identity{}, err
	}
	return id, nil
}

// confirm installs a server-returned identity if the session has not changed hands.
func (s *SessionService) confirm(ctx context.Context, gen uint64, id domainauth.Identity) error {
	var err error
	s.transition(func() {
		if s.gen != gen {
			err = ErrSessionChanged
			return
		}
		s.persistIdentityLocked(ctx, &id)
		s.set(domainauth.StateConfirmed, &id)
	})
	return err
}

// persistIdentityLocked writes the identity next to the stored tokens without rewriting them,
// so a refresh racing with this call keeps its rotated pair. A store failure is logged;
// memory still follows the server.
func (s *SessionService) persistIdentityLocked(ctx context.Context, id *domainauth.Identity) {
	if err := s.store.SetIdentity(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "persist identity failed", "error", err)
	}
}

// Identity returns a copy of the current identity, or nil when anonymous.
func (s *SessionService) Identity() *domainauth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// IsAuthenticated reports whether an identity is held (optimistic or confirmed).
func (s *SessionService) IsAuthenticated() bool {
	return s.State().Authenticated()
}

// State returns the current auth state.
func (s *SessionService) State() domainauth.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current state and identity together.
func (s *SessionService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state transition. fn runs on the goroutine that caused
// the transition, outside the service lock. The returned func unsubscribes.
func (s *SessionService) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *SessionService) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *SessionService) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Identity: s.identity.Clone()}
}

// set must be called with mu held.
func (s *SessionService) set(state domainauth.AuthState, id *domainauth.Identity) {
	s.state = state
	s.identity = id.Clone()
}

// transition runs mutate under the write lock and, if the snapshot changed, notifies
// subscribers after the lock is released.
func (s *SessionService) transition(mutate func()) {
	s.mu.Lock()
	before := s.snapshotLocked()
	mutate()
	after := s.snapshotLocked()
	changed := before.State != after.State || !sameIdentity(before.Identity, after.Identity)
	s.mu.Unlock()

	if !changed {
		return
	}
	if before.State != after.State {
		metrics.EmitSessionState(s.metrics, after.State.String())
		s.logger.Debug("session state changed", "from", before.State, "to", after.State)
	}
	s.notify(after)
}

func (s *SessionService) notify(snap Snapshot) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func sameIdentity(a, b *domainauth.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
