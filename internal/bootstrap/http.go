package bootstrap

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/oculus-oct/oculus-go/config"
)

// NewHTTPClient builds the transport shared by the request pipeline and the refresher.
// Per-request deadlines come from the pipeline, so the client itself has no Timeout.
func NewHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ResponseHeaderTimeout = 60 * time.Second
	transport.MaxIdleConnsPerHost = 8

	return &http.Client{Transport: transport, Jar: jar}, nil
}

// NewRateLimiter returns the client-side pacer, or nil when pacing is off.
func NewRateLimiter(cfg config.APIConfig) *rate.Limiter {
	if !cfg.RateLimited() {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
}
