package config

import (
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRefreshTimeout = 10 * time.Second
)

// APIConfig contains backend API client configuration.
type APIConfig struct {
	// BaseURL is the API root including its path prefix (e.g., "https://oculus.example.com/api").
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000/api"`

	// RequestTimeout bounds each send; the replay after a refresh gets its own budget.
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"30s"`

	// RefreshTimeout bounds a credential refresh call.
	RefreshTimeout time.Duration `env:"API_REFRESH_TIMEOUT" envDefault:"10s"`

	UserAgent string `env:"API_USER_AGENT" envDefault:"oculus-go"`

	// RateLimit is the sustained requests per second; 0 disables client-side pacing.
	RateLimit float64 `env:"API_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"API_RATE_BURST" envDefault:"5"`

	// CoalesceRefresh makes concurrent authorization failures share one refresh call.
	CoalesceRefresh bool `env:"API_COALESCE_REFRESH" envDefault:"true"`
}

// Sanitize applies guardrails to API client configuration values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.RequestTimeout < 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = defaultRefreshTimeout
	}
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateBurst < 1 {
		c.RateBurst = 1
	}
}

// RateLimited reports whether client-side pacing is on.
func (c *APIConfig) RateLimited() bool {
	return c.RateLimit > 0
}
