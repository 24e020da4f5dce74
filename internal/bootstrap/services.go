package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/adapters/httpapi"
	"github.com/oculus-oct/oculus-go/internal/adapters/jwtclaims"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/ports"
	"github.com/oculus-oct/oculus-go/internal/service"
)

// AppOptions contains the dependencies for NewApp.
type AppOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Store, when set, replaces the configured session backend.
	Store ports.SessionStore
	// HTTPClient, when set, replaces the default transport.
	HTTPClient *http.Client
	// Metrics, when set, replaces the statsd sink built from config.
	Metrics statsd.Sink
}

// App is the wired client: one session store, one request pipeline, and the services on top.
type App struct {
	Config     *config.AppConfig
	Logger     *slog.Logger
	Store      ports.SessionStore
	HTTPClient *http.Client
	Metrics    statsd.Sink
	Pipeline   *httpapi.Pipeline
	API        *httpapi.Client
	Subjects   jwtclaims.Reader

	Sessions *service.SessionService
	Images   *service.ImageService
	Reviews  *service.ReviewService

	closers []func() error
}

// NewApp opens the session store and wires every component. Close releases what it opened.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{Config: opts.Config, Logger: logger}
	built := false
	defer func() {
		if !built {
			_ = app.Close()
		}
	}()

	app.Metrics = opts.Metrics
	if app.Metrics == nil {
		sink, closeSink := buildObservability(logger, opts.Config.Observability)
		app.Metrics = sink
		app.closers = append(app.closers, closeSink)
	}

	app.Store = opts.Store
	if app.Store == nil {
		store, closeStore, err := OpenSessionStore(ctx, SessionStoreConfig{
			Session:  opts.Config.Session,
			Postgres: opts.Config.Postgres,
			Redis:    opts.Config.Redis,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		app.Store = store
		app.closers = append(app.closers, closeStore)
	}

	app.HTTPClient = opts.HTTPClient
	if app.HTTPClient == nil {
		hc, err := NewHTTPClient()
		if err != nil {
			return nil, err
		}
		app.HTTPClient = hc
	}

	auth, err := BuildAuth(AuthConfig{
		API:        opts.Config.API,
		Store:      app.Store,
		HTTPClient: app.HTTPClient,
		Logger:     logger,
		Metrics:    app.Metrics,
	})
	if err != nil {
		return nil, err
	}
	app.Pipeline = auth.Pipeline
	app.API = httpapi.NewClient(auth.Pipeline)

	if err := app.buildServices(); err != nil {
		return nil, err
	}

	built = true
	return app, nil
}

func (a *App) buildServices() error {
	reconciler, err := service.NewIdentityReconciler(service.IdentityReconcilerOptions{
		API:      a.API,
		Store:    a.Store,
		Subjects: a.Subjects,
		Logger:   a.Logger,
		Timeout:  a.Config.API.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("create identity reconciler: %w", err)
	}

	a.Sessions, err = service.NewSessionService(service.SessionServiceOptions{
		API:        a.API,
		Store:      a.Store,
		Reconciler: reconciler,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create session service: %w", err)
	}
	a.Pipeline.SetListener(a.Sessions)

	a.Images, err = service.NewImageService(service.ImageServiceOptions{
		API:       a.API,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
		CacheSize: a.Config.Cache.AnalysisSize,
		CacheTTL:  a.Config.Cache.AnalysisTTL,
	})
	if err != nil {
		return fmt.Errorf("create image service: %w", err)
	}
	a.Sessions.Subscribe(a.Images.SessionChanged)

	a.Reviews, err = service.NewReviewService(service.ReviewServiceOptions{API: a.API, Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("create review service: %w", err)
	}
	return nil
}

// Close releases the session store connection and the metrics socket.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildObservability configures the metrics sink. A statsd failure is logged and metrics are dropped.
//
//nolint:ireturn // Discard and *statsd.Client are both valid sinks.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) (statsd.Sink, func() error) {
	noop := func() error { return nil }
	if !cfg.Metrics.IsEnabled() {
		return statsd.Discard{}, noop
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return statsd.Discard{}, noop
	}
	return client, client.Close
}
