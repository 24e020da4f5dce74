// Package redis provides a Redis-backed session store, for sessions shared between
// machines or containers.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oculus-oct/oculus-go/internal/data/cryptoutil"
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// DefaultPrefix namespaces the three session keys.
const DefaultPrefix = "oculus:session:"

// maxWatchAttempts bounds optimistic retries when a watched key changes under a narrow write.
const maxWatchAttempts = 5

// ErrConflict is returned when a narrow write kept losing to concurrent writers.
var ErrConflict = errors.New("redis session store: concurrent update, giving up")

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient
	Prefix string
	// TTL expires all three keys together; 0 keeps them until cleared.
	TTL    time.Duration
	Sealer cryptoutil.Sealer
}

// SessionStore keeps access_token, refresh_token and user as three keys under one prefix.
// Writes and deletes run in a single MULTI/EXEC; reads use one MGET.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	sealer cryptoutil.Sealer
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store with the default prefix and no sealing.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	s, _ := NewSessionStoreWithOptions(SessionStoreOptions{Client: client})
	return s
}

// NewSessionStoreWithOptions creates a session store from options.
func NewSessionStoreWithOptions(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis session store: client is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("redis session store: negative ttl %s", opts.TTL)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	sealer := opts.Sealer
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	return &SessionStore{client: opts.Client, prefix: prefix, ttl: opts.TTL, sealer: sealer}, nil
}

func (s *SessionStore) keys() (access, refresh, user string) {
	return s.prefix + domainauth.KeyAccessToken,
		s.prefix + domainauth.KeyRefreshToken,
		s.prefix + domainauth.KeyIdentity
}

// Get implements ports.SessionStore.
func (s *SessionStore) Get(ctx context.Context) (domainauth.Session, error) {
	ak, rk, uk := s.keys()
	vals, err := s.client.MGet(ctx, ak, rk, uk).Result()
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis mget: %w", err)
	}
	if len(vals) != 3 {
		return domainauth.Session{}, fmt.Errorf("redis mget: expected 3 values, got %d", len(vals))
	}

	tokens, err := cryptoutil.OpenTokens(s.sealer, str(vals[0]), str(vals[1]))
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	sess := domainauth.NewSession(tokens, nil)
	if raw := str(vals[2]); raw != "" {
		var id domainauth.Identity
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			return domainauth.Session{}, fmt.Errorf("%w: identity: %w", ports.ErrCorruptSession, err)
		}
		sess.Identity = &id
	}
	if err := sess.Validate(); err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	return sess, nil
}

// Set implements ports.SessionStore.
func (s *SessionStore) Set(ctx context.Context, sess domainauth.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	access, refresh, err := cryptoutil.SealTokens(s.sealer, sess.Tokens())
	if err != nil {
		return err
	}
	var user []byte
	if sess.Identity != nil {
		if user, err = json.Marshal(sess.Identity); err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
	}

	ak, rk, uk := s.keys()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if access == "" {
			pipe.Del(ctx, ak, rk)
		} else {
			pipe.Set(ctx, ak, access, s.ttl)
			pipe.Set(ctx, rk, refresh, s.ttl)
		}
		if user == nil {
			pipe.Del(ctx, uk)
		} else {
			pipe.Set(ctx, uk, user, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// SetIdentity implements ports.SessionStore. Only the user key is written; the token keys
// are watched so an identity is never attached to a session cleared in the meantime.
func (s *SessionStore) SetIdentity(ctx context.Context, id *domainauth.Identity) error {
	var user []byte
	if id != nil {
		var err error
		if user, err = json.Marshal(id); err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
	}

	ak, rk, uk := s.keys()
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, ak, rk, uk).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if user == nil {
				pipe.Del(ctx, uk)
			} else {
				pipe.Set(ctx, uk, user, s.ttl)
			}
			return nil
		})
		return err
	}, ak, rk, uk)
	if err != nil {
		return fmt.Errorf("redis save identity: %w", err)
	}
	return nil
}

// RotateTokens implements ports.SessionStore. The refresh key is compared and both token
// keys replaced inside one WATCH/MULTI; the user key is not touched.
func (s *SessionStore) RotateTokens(ctx context.Context, presented string, tokens domainauth.Tokens) (bool, error) {
	if !tokens.Complete() {
		return false, domainauth.ErrHalfSession
	}
	if presented == "" {
		return false, nil
	}
	access, refresh, err := cryptoutil.SealTokens(s.sealer, tokens)
	if err != nil {
		return false, err
	}

	ak, rk, _ := s.keys()
	var swapped bool
	err = s.watch(ctx, func(tx *redis.Tx) error {
		swapped = false
		sealed, err := tx.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := cryptoutil.OpenString(s.sealer, domainauth.KeyRefreshToken, sealed)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
		}
		if current != presented {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ak, access, s.ttl)
			pipe.Set(ctx, rk, refresh, s.ttl)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, ak, rk)
	if err != nil {
		return false, fmt.Errorf("redis rotate tokens: %w", err)
	}
	return swapped, nil
}

func (s *SessionStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxWatchAttempts {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConflict
}

// Clear implements ports.SessionStore.
func (s *SessionStore) Clear(ctx context.Context) error {
	ak, rk, uk := s.keys()
	if err := s.client.Del(ctx, ak, rk, uk).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}
