package httpapi

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/oculus-oct/oculus-go/internal/ports"
)

// ErrNoSession is returned by the token source when no session is stored.
var ErrNoSession = errors.New("no session stored")

// StoreTokenSource exposes the stored access token as an oauth2.TokenSource for clients
// that fetch outside the pipeline, such as media downloads. It reads the store on every
// call so it always follows the latest refresh.
type StoreTokenSource struct {
	ctx   context.Context
	store ports.SessionStore
}

var _ oauth2.TokenSource = (*StoreTokenSource)(nil)

// NewTokenSource returns a StoreTokenSource bound to ctx.
func NewTokenSource(ctx context.Context, store ports.SessionStore) *StoreTokenSource {
	return &StoreTokenSource{ctx: ctx, store: store}
}

// Token implements oauth2.TokenSource.
func (s *StoreTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.store.Get(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !sess.HasTokens() {
		return nil, ErrNoSession
	}
	return sess.Tokens().OAuth2(), nil
}
