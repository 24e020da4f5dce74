package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - http.go: backend API client configuration
//   - auth.go: session persistence configuration
//   - database.go: PostgreSQL, Redis and cache configuration
//   - observability.go: metrics and logging configuration
type AppConfig struct {
	// Backend API client configuration
	API APIConfig

	// Session persistence configuration
	Session SessionConfig

	// Database configuration (used by the postgres and redis session backends)
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Client-side analysis cache
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
	Log           LogConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Session.Sanitize()
	c.Cache.Sanitize()
	c.Observability.Sanitize()
	c.Log.Sanitize()
}
