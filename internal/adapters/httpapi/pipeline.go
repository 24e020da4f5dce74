// Package httpapi is the authenticated HTTP adapter for the Oculus backend: the request
// pipeline that attaches and refreshes credentials, the credential refresher, and typed
// endpoint wrappers.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/observability/metrics"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// errNoRefreshToken is the session-lost cause when a 401 arrives and nothing can be refreshed.
var errNoRefreshToken = errors.New("no refresh token stored")

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      ports.SessionStore
	Refresher  ports.CredentialRefresher
	Listener   ports.SessionListener
	Logger     *slog.Logger
	Metrics    statsd.Sink

	// RequestTimeout bounds each send (the initial call and the replay separately); 0 disables.
	RequestTimeout time.Duration
	UserAgent      string
	// Limiter, when set, paces outgoing sends.
	Limiter *rate.Limiter
	// CoalesceRefresh makes concurrent 401s share a single refresh call.
	CoalesceRefresh bool
}

// Pipeline sends every API call. It attaches the stored access token, and on a 401
// refreshes the credentials once and replays the request once. When the refresh fails
// it clears the session store and notifies the session listener.
type Pipeline struct {
	base      *url.URL
	http      *http.Client
	store     ports.SessionStore
	refresher ports.CredentialRefresher
	logger    *slog.Logger
	metrics   statsd.Sink
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	coalesce  bool

	group singleflight.Group

	mu       sync.RWMutex
	listener ports.SessionListener
}

// NewPipeline validates options and returns a Pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Refresher == nil {
		return nil, errors.New("credential refresher is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Discard{}
	}
	return &Pipeline{
		base:      base,
		http:      hc,
		store:     opts.Store,
		refresher: opts.Refresher,
		logger:    logger.With("component", "pipeline"),
		metrics:   sink,
		timeout:   opts.RequestTimeout,
		userAgent: opts.UserAgent,
		limiter:   opts.Limiter,
		coalesce:  opts.CoalesceRefresh,
		listener:  opts.Listener,
	}, nil
}

// SetListener replaces the session listener. The session service registers itself here
// after construction.
func (p *Pipeline) SetListener(l ports.SessionListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
}

func (p *Pipeline) currentListener() ports.SessionListener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listener
}

// Do sends req and returns the buffered response for any HTTP status. The error is
// non-nil only when no response was obtained, or when the session was torn down
// (an *errors.AppError with code session_expired).
func (p *Pipeline) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	start := time.Now()

	var access string
	if req.Auth == AuthBearer {
		access = p.loadSession(ctx).AccessToken
	}

	resp, err := p.send(ctx, req, access)
	if err == nil && resp.StatusCode == http.StatusUnauthorized &&
		req.Auth == AuthBearer && req.retry == domainauth.NotRetried {
		resp, err = p.recoverUnauthorized(ctx, req, access)
	}

	p.emit(req, resp, err, time.Since(start))
	return resp, err
}

// recoverUnauthorized runs the refresh-and-replay sequence for a request that got its first 401.
func (p *Pipeline) recoverUnauthorized(ctx context.Context, req *Request, sentAccess string) (*Response, error) {
	req.retry = domainauth.Retried
	sess := p.loadSession(ctx)

	// Another request already rotated the credentials; replay with the current token.
	if p.coalesce && sess.AccessToken != "" && sess.AccessToken != sentAccess {
		p.logger.DebugContext(ctx, "replaying with rotated credentials", "request_id", req.ID, "path", req.Path)
		return p.replay(ctx, req, sess.AccessToken)
	}

	if sess.RefreshToken == "" {
		return nil, p.expire(ctx, "", errNoRefreshToken)
	}

	tokens, err := p.refresh(ctx, sess.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the credentials.
			return nil, apperrors.FromTransport(ctx.Err())
		}
		// Lost the race with a refresh that already rotated the pair.
		if now := p.loadSession(ctx); p.coalesce && now.AccessToken != "" && now.AccessToken != sentAccess {
			return p.replay(ctx, req, now.AccessToken)
		}
		return nil, p.expire(ctx, sess.RefreshToken, err)
	}
	return p.replay(ctx, req, tokens.Access)
}

func (p *Pipeline) replay(ctx context.Context, req *Request, access string) (*Response, error) {
	resp, err := p.send(ctx, req, access)
	if resp != nil {
		resp.Retried = true
	}
	return resp, err
}

// refresh obtains a new token pair, sharing one in-flight exchange per refresh token
// when coalescing is enabled.
func (p *Pipeline) refresh(ctx context.Context, refreshToken string) (domainauth.Tokens, error) {
	if !p.coalesce {
		return p.refreshAndStore(ctx, refreshToken)
	}

	ch := p.group.DoChan(refreshToken, func() (any, error) {
		// Detached so one caller cancelling does not fail the others waiting on it.
		return p.refreshAndStore(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case <-ctx.Done():
		return domainauth.Tokens{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.EmitRefresh(p.metrics, metrics.RefreshMetric{Shared: true, Err: res.Err})
		}
		if res.Err != nil {
			return domainauth.Tokens{}, res.Err
		}
		tokens, ok := res.Val.(domainauth.Tokens)
		if !ok {
			return domainauth.Tokens{}, fmt.Errorf("%w: unexpected refresh result %T", ErrRefreshDenied, res.Val)
		}
		return tokens, nil
	}
}

func (p *Pipeline) refreshAndStore(ctx context.Context, refreshToken string) (domainauth.Tokens, error) {
	start := time.Now()
	tokens, err := p.refresher.Refresh(ctx, refreshToken)
	metrics.EmitRefresh(p.metrics, metrics.RefreshMetric{Duration: time.Since(start), Err: err})
	if err != nil {
		p.logger.InfoContext(ctx, "credential refresh failed", "error", err)
		return domainauth.Tokens{}, err
	}
	if !tokens.Complete() {
		return domainauth.Tokens{}, fmt.Errorf("%w: incomplete token pair", ErrRefreshDenied)
	}

	// Only write over the session the refresh token came from; a logout or a new login
	// in the meantime wins.
	swapped, err := p.store.RotateTokens(ctx, refreshToken, tokens)
	switch {
	case err != nil:
		p.logger.WarnContext(ctx, "persist refreshed credentials failed", "error", err)
	case !swapped:
		p.logger.InfoContext(ctx, "session changed during refresh; not persisting rotated credentials")
		return tokens, nil
	}
	p.logger.DebugContext(ctx, "credentials refreshed", "access_len", len(tokens.Access))
	return tokens, nil
}

// expire tears the session down and returns the terminal error for the caller.
// presentedRefresh is the refresh token that failed; a session replaced since then is left alone.
func (p *Pipeline) expire(ctx context.Context, presentedRefresh string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	current := p.loadSession(ctx)
	if current.RefreshToken != "" && current.RefreshToken != presentedRefresh {
		p.logger.InfoContext(ctx, "refresh failed for a replaced session; keeping current session")
		return apperrors.SessionExpired(cause)
	}

	if err := p.store.Clear(ctx); err != nil {
		p.logger.ErrorContext(ctx, "clear session store failed", "error", err)
	}
	reason := "refresh_failed"
	if errors.Is(cause, errNoRefreshToken) {
		reason = "no_refresh_token"
	}
	metrics.EmitSessionLost(p.metrics, reason)
	p.logger.WarnContext(ctx, "session lost", "reason", reason, "error", cause)

	if l := p.currentListener(); l != nil {
		l.SessionLost(ctx)
	}
	return apperrors.SessionExpired(cause)
}

// loadSession reads the store, treating an unreadable store as no session.
func (p *Pipeline) loadSession(ctx context.Context) domainauth.Session {
	sess, err := p.store.Get(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "session store unreadable; continuing unauthenticated", "error", err)
		return domainauth.Session{}
	}
	return sess
}

func (p *Pipeline) send(ctx context.Context, req *Request, access string) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.FromTransport(ctx.Err())
			}
			return nil, apperrors.Wrap(err, apperrors.ErrCodeRateLimited, "Client rate limit exceeded.")
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	hreq, err := req.build(ctx, p.base)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		hreq.Header.Set("User-Agent", p.userAgent)
	}
	if access != "" {
		domainauth.Tokens{Access: access}.OAuth2().SetAuthHeader(hreq)
	}

	resp, err := p.http.Do(hreq)
	if err != nil {
		return nil, apperrors.FromTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.FromTransport(fmt.Errorf("read response body: %w", err))
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (p *Pipeline) emit(req *Request, resp *Response, err error, d time.Duration) {
	m := metrics.RequestMetric{
		Method:   req.Method,
		Endpoint: endpointTag(req.Path),
		Retried:  req.retry == domainauth.Retried,
		Duration: d,
		Err:      err,
	}
	if resp != nil {
		m.Status = resp.StatusCode
		if err == nil {
			m.Err = resp.Err()
		}
	}
	metrics.EmitRequest(p.metrics, m)
}

// endpointTag collapses record ids in a path so metric cardinality stays bounded.
func endpointTag(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		if looksLikeID(s) {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}

func looksLikeID(s string) bool {
	if s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
