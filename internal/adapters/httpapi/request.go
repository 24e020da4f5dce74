package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
)

// maxResponseBytes caps how much of a response body is buffered.
const maxResponseBytes = 16 << 20

// AuthMode selects how the pipeline authenticates a request.
type AuthMode uint8

const (
	// AuthBearer attaches the stored access token and refreshes once on 401.
	AuthBearer AuthMode = iota
	// AuthNone sends the request without credentials and never refreshes.
	// Used by the credential endpoints so a rejected login cannot tear down a live session.
	AuthNone
)

func (m AuthMode) String() string {
	if m == AuthNone {
		return "none"
	}
	return "bearer"
}

// Request is a pending API call. Its body is buffered so the call can be replayed
// after a credential refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Auth        AuthMode
	ID          uuid.UUID

	retry domainauth.RetryState
}

// NewRequest creates a bodiless request for a path relative to the API base URL.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		ID:     uuid.New(),
	}
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func NewJSONRequest(method, path string, v any) (*Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req := NewRequest(method, path)
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

// WithQuery sets a query parameter; empty values are skipped.
func (r *Request) WithQuery(key, value string) *Request {
	if value == "" {
		return r
	}
	if r.Query == nil {
		r.Query = url.Values{}
	}
	r.Query.Set(key, value)
	return r
}

// WithAuth sets the authentication mode.
func (r *Request) WithAuth(mode AuthMode) *Request {
	r.Auth = mode
	return r
}

// RetryState reports whether the request has already been replayed after a 401.
func (r *Request) RetryState() domainauth.RetryState { return r.retry }

func (r *Request) endpoint(base *url.URL) string {
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	u.RawQuery = r.Query.Encode()
	return u.String()
}

func (r *Request) build(ctx context.Context, base *url.URL) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, r.Method, r.endpoint(base), body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", r.Method, r.Path, err)
	}
	if r.ContentType != "" {
		hreq.Header.Set("Content-Type", r.ContentType)
	}
	hreq.Header.Set("Accept", "application/json")
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	hreq.Header.Set("X-Request-ID", r.ID.String())
	return hreq, nil
}

// Response is a fully buffered API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Retried is true when the response came from the replay after a credential refresh.
	Retried bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Err returns nil for a 2xx response, otherwise the mapped *errors.AppError.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return apperrors.FromResponse(r.StatusCode, r.Body)
}

// Decode checks the status and unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeInternal,
			Message: "Malformed response from server.",
			Cause:   err,
			Status:  r.StatusCode,
			Body:    r.Body,
		}
	}
	return nil
}
