package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oculus-oct/oculus-go/internal/data/cryptoutil"
	"github.com/oculus-oct/oculus-go/internal/data/pgxutil"
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// DefaultSessionName is the row key used when none is configured.
const DefaultSessionName = "default"

// DBTX is the subset of *pgxpool.Pool the session repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// SessionRepoOptions configures a SessionRepo.
type SessionRepoOptions struct {
	DB DBTX
	// Name selects the row; several CLI profiles can share one database.
	Name   string
	Sealer cryptoutil.Sealer
	Logger *slog.Logger
}

// SessionRepo stores the client session as one row of client_sessions.
type SessionRepo struct {
	db     DBTX
	name   string
	sealer cryptoutil.Sealer
	logger *slog.Logger
}

var _ ports.SessionStore = (*SessionRepo)(nil)

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(opts SessionRepoOptions) (*SessionRepo, error) {
	if opts.DB == nil {
		return nil, errors.New("session repo: db is required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = DefaultSessionName
	}
	sealer := opts.Sealer
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepo{
		db:     opts.DB,
		name:   name,
		sealer: sealer,
		logger: logger.With("component", "session_repo", "session", name),
	}, nil
}

const (
	selectSessionSQL = `SELECT access_token, refresh_token, identity FROM client_sessions WHERE name = $1`
	upsertSessionSQL = `
		INSERT INTO client_sessions (name, access_token, refresh_token, identity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			identity = EXCLUDED.identity,
			updated_at = now()`
	deleteSessionSQL = `DELETE FROM client_sessions WHERE name = $1`

	updateIdentitySQL = `UPDATE client_sessions SET identity = $2, updated_at = now() WHERE name = $1`

	lockRefreshTokenSQL = `SELECT refresh_token FROM client_sessions WHERE name = $1 FOR UPDATE`
	updateTokensSQL     = `
		UPDATE client_sessions
		SET access_token = $2, refresh_token = $3, updated_at = now()
		WHERE name = $1`
)

// Get implements ports.SessionStore. A missing row or a missing table is the absent session.
func (r *SessionRepo) Get(ctx context.Context) (domainauth.Session, error) {
	var (
		access, refresh string
		identity        []byte
	)
	err := r.db.QueryRow(ctx, selectSessionSQL, r.name).Scan(&access, &refresh, &identity)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domainauth.Session{}, nil
	case apperrors.IsUndefinedTable(err):
		r.logger.DebugContext(ctx, "client_sessions table missing; treating as no session")
		return domainauth.Session{}, nil
	case err != nil:
		return domainauth.Session{}, fmt.Errorf("get session: %w", apperrors.MapDBError(err))
	}

	tokens, err := cryptoutil.OpenTokens(r.sealer, access, refresh)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	sess := domainauth.NewSession(tokens, nil)
	if len(identity) > 0 && string(identity) != "null" {
		var id domainauth.Identity
		if err := json.Unmarshal(identity, &id); err != nil {
			return domainauth.Session{}, fmt.Errorf("%w: identity: %w", ports.ErrCorruptSession, err)
		}
		sess.Identity = &id
	}
	if err := sess.Validate(); err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
	}
	return sess, nil
}

// Set implements ports.SessionStore. The zero session deletes the row.
func (r *SessionRepo) Set(ctx context.Context, sess domainauth.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.IsZero() {
		return r.Clear(ctx)
	}

	access, refresh, err := cryptoutil.SealTokens(r.sealer, sess.Tokens())
	if err != nil {
		return err
	}
	var identity []byte
	if sess.Identity != nil {
		if identity, err = json.Marshal(sess.Identity); err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
	}

	err = pgxutil.WithTx(ctx, r.db, pgxutil.TxConfig{
		Opts: pgxutil.ReadCommitted(),
		Fn: func(tx pgx.Tx) error {
			_, execErr := tx.Exec(ctx, upsertSessionSQL, r.name, access, refresh, identity)
			return execErr
		},
	})
	if err != nil {
		return fmt.Errorf("save session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// SetIdentity implements ports.SessionStore. Only the identity column is updated; a
// missing row is left missing.
func (r *SessionRepo) SetIdentity(ctx context.Context, id *domainauth.Identity) error {
	var identity []byte
	if id != nil {
		var err error
		if identity, err = json.Marshal(id); err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
	}
	if _, err := r.db.Exec(ctx, updateIdentitySQL, r.name, identity); err != nil {
		if apperrors.IsUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("save identity: %w", apperrors.MapDBError(err))
	}
	return nil
}

// RotateTokens implements ports.SessionStore. The row is locked while the stored refresh
// token is compared, since sealed values cannot be compared in SQL.
func (r *SessionRepo) RotateTokens(ctx context.Context, presented string, tokens domainauth.Tokens) (bool, error) {
	if !tokens.Complete() {
		return false, domainauth.ErrHalfSession
	}
	if presented == "" {
		return false, nil
	}
	access, refresh, err := cryptoutil.SealTokens(r.sealer, tokens)
	if err != nil {
		return false, err
	}

	var swapped bool
	err = pgxutil.WithTx(ctx, r.db, pgxutil.TxConfig{
		Opts: pgxutil.ReadCommitted(),
		Fn: func(tx pgx.Tx) error {
			var sealed string
			err := tx.QueryRow(ctx, lockRefreshTokenSQL, r.name).Scan(&sealed)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			current, err := cryptoutil.OpenString(r.sealer, domainauth.KeyRefreshToken, sealed)
			if err != nil {
				return fmt.Errorf("%w: %w", ports.ErrCorruptSession, err)
			}
			if current != presented {
				return nil
			}
			if _, err := tx.Exec(ctx, updateTokensSQL, r.name, access, refresh); err != nil {
				return err
			}
			swapped = true
			return nil
		},
	})
	switch {
	case apperrors.IsUndefinedTable(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("rotate tokens: %w", apperrors.MapDBError(err))
	}
	return swapped, nil
}

// Clear implements ports.SessionStore.
func (r *SessionRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, deleteSessionSQL, r.name); err != nil {
		if apperrors.IsUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("clear session: %w", apperrors.MapDBError(err))
	}
	return nil
}
