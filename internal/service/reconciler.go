package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

const defaultReconcileTimeout = 15 * time.Second

// IdentityReconcilerOptions groups dependencies for IdentityReconciler.
type IdentityReconcilerOptions struct {
	API   ports.AccountAPI
	Store ports.SessionStore
	// Subjects, when set, is used to reject a cached identity issued for another user.
	Subjects ports.SubjectReader
	Logger   *slog.Logger
	// Timeout bounds the background identity fetch; defaults to 15s.
	Timeout time.Duration
}

// IdentityReconciler hydrates the cached identity and revalidates it against the server
// (stale-while-revalidate).
type IdentityReconciler struct {
	api      ports.AccountAPI
	store    ports.SessionStore
	subjects ports.SubjectReader
	logger   *slog.Logger
	timeout  time.Duration
}

// NewIdentityReconciler constructs a new IdentityReconciler.
func NewIdentityReconciler(opts IdentityReconcilerOptions) (*IdentityReconciler, error) {
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
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultReconcileTimeout
	}
	return &IdentityReconciler{
		api:      opts.API,
		store:    opts.Store,
		subjects: opts.Subjects,
		logger:   logger.With("component", "identity_reconciler"),
		timeout:  timeout,
	}, nil
}

// Hydrate returns the cached identity, or nil when there is none to trust.
// An unreadable store counts as empty. A cached identity that contradicts the user the
// access token was issued for is discarded together with the rest of the session.
func (r *IdentityReconciler) Hydrate(ctx context.Context) *domainauth.Identity {
	sess, err := r.store.Get(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "session store unreadable; starting anonymous", "error", err)
		return nil
	}
	if sess.Identity == nil {
		return nil
	}

	if r.subjects != nil && sess.AccessToken != "" {
		if subject, ok := r.subjects.Subject(sess.AccessToken); ok && subject != sess.Identity.ID {
			r.logger.WarnContext(ctx, "cached identity does not match the access token; discarding session",
				"cached_id", sess.Identity.ID, "token_subject", subject)
			if err := r.store.Clear(ctx); err != nil {
				r.logger.ErrorContext(ctx, "clear mismatched session failed", "error", err)
			}
			return nil
		}
	}
	return sess.Identity
}

// Reconcile fetches the authoritative identity. Failures are logged and returned; the
// caller keeps its optimistic copy.
func (r *IdentityReconciler) Reconcile(ctx context.Context) (domainauth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := r.api.Me(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "could not refresh identity; keeping cached copy", "error", err)
		return domainauth.Identity{}, err
	}
	r.logger.DebugContext(ctx, "identity confirmed", "user_id", id.ID)
	return id, nil
}
