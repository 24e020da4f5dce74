package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// RefreshPath is the token exchange endpoint, relative to the API base URL.
const RefreshPath = "/token/refresh/"

// ErrRefreshDenied is returned for every refresh failure: transport error, non-2xx
// status, or a response without a usable access token.
var ErrRefreshDenied = errors.New("credential refresh denied")

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds a single refresh call; defaults to 10s.
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Refresher exchanges a refresh token for a new token pair with one POST.
// It never retries and never touches the session store.
type Refresher struct {
	base      *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

var _ ports.CredentialRefresher = (*Refresher)(nil)

// NewRefresher validates options and returns a Refresher.
func NewRefresher(opts RefresherOptions) (*Refresher, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		base:      base,
		http:      hc,
		timeout:   timeout,
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "refresher"),
	}, nil
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Refresh implements ports.CredentialRefresher.
// A response that does not rotate the refresh token keeps the presented one.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (domainauth.Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domainauth.Tokens{}, fmt.Errorf("%w: no refresh token", ErrRefreshDenied)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := NewJSONRequest(http.MethodPost, RefreshPath, map[string]string{"refresh": refreshToken})
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshDenied, err)
	}
	hreq, err := req.build(ctx, r.base)
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshDenied, err)
	}
	if r.userAgent != "" {
		hreq.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.http.Do(hreq)
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshDenied, apperrors.FromTransport(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("%w: read response: %w", ErrRefreshDenied, apperrors.FromTransport(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.DebugContext(ctx, "refresh rejected", "status", resp.StatusCode, "request_id", req.ID)
		return domainauth.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshDenied, apperrors.FromResponse(resp.StatusCode, body))
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domainauth.Tokens{}, fmt.Errorf("%w: decode response: %w", ErrRefreshDenied, err)
	}
	if out.Access == "" {
		return domainauth.Tokens{}, fmt.Errorf("%w: response carried no access token", ErrRefreshDenied)
	}
	if out.Refresh == "" {
		out.Refresh = refreshToken
	}
	return domainauth.Tokens{Access: out.Access, Refresh: out.Refresh}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("api base url has no host")
	}
	return u, nil
}
