package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/adapters/filestore"
	"github.com/oculus-oct/oculus-go/internal/adapters/memstore"
	redisstore "github.com/oculus-oct/oculus-go/internal/adapters/redis"
	"github.com/oculus-oct/oculus-go/internal/data"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// SessionStoreConfig contains configuration for opening the session store.
type SessionStoreConfig struct {
	Session  config.SessionConfig
	Postgres config.DBConfig
	Redis    config.RedisConfig
	Logger   *slog.Logger
}

// OpenSessionStore opens the configured session backend. The returned close func releases
// any connection the backend holds and is never nil.
//
//nolint:ireturn // the backend is chosen at runtime.
func OpenSessionStore(ctx context.Context, cfg SessionStoreConfig) (ports.SessionStore, func() error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	sealer, err := CreateSealer(cfg.Session.EncryptionKey, logger)
	if err != nil {
		return nil, noop, err
	}

	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return memstore.NewSessionStore(), noop, nil

	case config.SessionBackendRedis:
		client, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, noop, err
		}
		store, err := redisstore.NewSessionStoreWithOptions(redisstore.SessionStoreOptions{
			Client: client,
			Prefix: cfg.Session.RedisPrefix,
			TTL:    cfg.Session.TTL,
			Sealer: sealer,
		})
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, client.Close, nil

	case config.SessionBackendPostgres:
		pool, err := ConnectPostgres(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
		if err != nil {
			return nil, noop, err
		}
		closePool := func() error { pool.Close(); return nil }
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, noop, err
			}
		}
		repo, err := data.NewSessionRepo(data.SessionRepoOptions{
			DB:     pool,
			Name:   cfg.Session.Name,
			Sealer: sealer,
			Logger: logger,
		})
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return repo, closePool, nil

	case config.SessionBackendFile, "":
		path := cfg.Session.File
		if path == "" {
			if path, err = filestore.DefaultPath(); err != nil {
				return nil, noop, err
			}
		}
		store, err := filestore.NewSessionStore(path, sealer)
		if err != nil {
			return nil, noop, err
		}
		logger.Debug("file session store opened", "path", store.Path())
		return store, noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}
