package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/adapters/httpapi"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// AuthConfig contains the dependencies of the credential refresher and request pipeline.
type AuthConfig struct {
	API        config.APIConfig
	Store      ports.SessionStore
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// AuthComponents holds the wired refresher and pipeline.
type AuthComponents struct {
	Refresher *httpapi.Refresher
	Pipeline  *httpapi.Pipeline
}

// BuildAuth wires the refresher into the request pipeline. The session listener is
// attached later, once the session service exists.
func BuildAuth(cfg AuthConfig) (*AuthComponents, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}

	refresher, err := httpapi.NewRefresher(httpapi.RefresherOptions{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Timeout:    cfg.API.RefreshTimeout,
		UserAgent:  cfg.API.UserAgent,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create refresher: %w", err)
	}

	pipeline, err := httpapi.NewPipeline(httpapi.PipelineOptions{
		BaseURL:         cfg.API.BaseURL,
		HTTPClient:      cfg.HTTPClient,
		Store:           cfg.Store,
		Refresher:       refresher,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
		RequestTimeout:  cfg.API.RequestTimeout,
		UserAgent:       cfg.API.UserAgent,
		Limiter:         NewRateLimiter(cfg.API),
		CoalesceRefresh: cfg.API.CoalesceRefresh,
	})
	if err != nil {
		return nil, fmt.Errorf("create request pipeline: %w", err)
	}

	return &AuthComponents{Refresher: refresher, Pipeline: pipeline}, nil
}
