package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionBackend selects where the client session is persisted.
type SessionBackend string

const (
	// SessionBackendFile keeps the session in a JSON file under the user config dir.
	SessionBackendFile SessionBackend = "file"
	// SessionBackendRedis keeps the session as three Redis keys.
	SessionBackendRedis SessionBackend = "redis"
	// SessionBackendPostgres keeps the session as a row of client_sessions.
	SessionBackendPostgres SessionBackend = "postgres"
	// SessionBackendMemory keeps the session for the lifetime of the process only.
	SessionBackendMemory SessionBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch SessionBackend(v) {
	case SessionBackendFile, SessionBackendRedis, SessionBackendPostgres, SessionBackendMemory:
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: file, redis, postgres, memory)", v)
	}
}

// SessionConfig groups session persistence configuration.
type SessionConfig struct {
	Backend SessionBackend `env:"SESSION_BACKEND" envDefault:"file"`

	// File is the session file path; empty means <user config dir>/oculus/session.json.
	File string `env:"SESSION_FILE"`

	// Name selects the row in client_sessions, so several profiles can share a database.
	Name string `env:"SESSION_NAME" envDefault:"default"`

	RedisPrefix string `env:"SESSION_REDIS_PREFIX" envDefault:"oculus:session:"`

	// TTL expires the Redis keys; 0 keeps them until logout.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"0"`

	// EncryptionKey seals stored tokens (32 bytes, hex or base64). Empty stores them as-is.
	EncryptionKey string `env:"SESSION_ENCRYPTION_KEY"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = SessionBackendFile
	}
	c.File = strings.TrimSpace(c.File)
	if c.Name = strings.TrimSpace(c.Name); c.Name == "" {
		c.Name = "default"
	}
	if c.RedisPrefix = strings.TrimSpace(c.RedisPrefix); c.RedisPrefix == "" {
		c.RedisPrefix = "oculus:session:"
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
}
