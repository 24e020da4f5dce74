package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/observability/metrics"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

const (
	defaultAnalysisCacheSize = 256
	defaultAnalysisCacheTTL  = 10 * time.Minute
	defaultFetchConcurrency  = 4
)

// ImageServiceOptions groups dependencies for ImageService.
type ImageServiceOptions struct {
	API     ports.ImageAPI
	Logger  *slog.Logger
	Metrics statsd.Sink
	// CacheSize bounds the analysis cache; a negative value disables caching.
	CacheSize int
	CacheTTL  time.Duration
	// Concurrency bounds parallel fetches in GetMany.
	Concurrency int
}

// ImageService uploads and reads OCT images and their analysis results. Finished analyses
// are cached per session; the cache is purged whenever the session changes hands.
type ImageService struct {
	api         ports.ImageAPI
	logger      *slog.Logger
	metrics     statsd.Sink
	cache       *expirable.LRU[string, model.AnalysisResult]
	concurrency int

	mu    sync.Mutex
	owner domainauth.FlexString
}

// NewImageService constructs a new ImageService.
func NewImageService(opts ImageServiceOptions) (*ImageService, error) {
	if opts.API == nil {
		return nil, errors.New("API is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Discard{}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}

	svc := &ImageService{
		api:         opts.API,
		logger:      logger.With("component", "image_service"),
		metrics:     sink,
		concurrency: concurrency,
	}
	if opts.CacheSize >= 0 {
		size := opts.CacheSize
		if size == 0 {
			size = defaultAnalysisCacheSize
		}
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = defaultAnalysisCacheTTL
		}
		svc.cache = expirable.NewLRU[string, model.AnalysisResult](size, nil, ttl)
	}
	return svc, nil
}

// Upload validates and uploads a scan. The backend analyses it synchronously.
func (s *ImageService) Upload(ctx context.Context, up model.ImageUpload) (model.OCTImage, error) {
	if err := up.Validate(); err != nil {
		return model.OCTImage{}, apperrors.Validation(err.Error())
	}
	img, err := s.api.UploadImage(ctx, up)
	if err != nil {
		return model.OCTImage{}, err
	}
	s.remember(img)
	s.logger.InfoContext(ctx, "image uploaded", "image_id", img.ID, "analyzed", img.Analyzed())
	return img, nil
}

// List lists the doctor's images.
func (s *ImageService) List(ctx context.Context, q model.ImageQuery) ([]model.OCTImage, error) {
	return s.api.ListImages(ctx, q)
}

// Get fetches one image with its analysis.
func (s *ImageService) Get(ctx context.Context, id string) (model.OCTImage, error) {
	if id == "" {
		return model.OCTImage{}, apperrors.ValidationField("id", "image id is required")
	}
	img, err := s.api.GetImage(ctx, id)
	if err != nil {
		return model.OCTImage{}, err
	}
	s.remember(img)
	return img, nil
}

// GetMany fetches several images in parallel, preserving the order of ids.
// The first failure cancels the remaining fetches and is returned.
func (s *ImageService) GetMany(ctx context.Context, ids []string) ([]model.OCTImage, error) {
	out := make([]model.OCTImage, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			img, err := s.Get(gctx, id)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalysisResults lists analysis results, optionally for one image.
func (s *ImageService) AnalysisResults(ctx context.Context, imageID string) ([]model.AnalysisResult, error) {
	return s.api.ListAnalysisResults(ctx, imageID)
}

// AnalysisForImage returns the analysis results of one image. It is best-effort: on
// failure it logs and returns an empty slice.
func (s *ImageService) AnalysisForImage(ctx context.Context, imageID string) []model.AnalysisResult {
	if s.cache != nil {
		if cached, ok := s.cache.Get(imageID); ok {
			metrics.EmitCache(s.metrics, true)
			return []model.AnalysisResult{cached}
		}
		metrics.EmitCache(s.metrics, false)
	}

	results, err := s.api.ListAnalysisResults(ctx, imageID)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis lookup failed", "image_id", imageID, "error", err)
		return []model.AnalysisResult{}
	}
	for _, r := range results {
		s.cacheAnalysis(imageID, r)
	}
	if results == nil {
		results = []model.AnalysisResult{}
	}
	return results
}

// SessionChanged drops cached analyses when a different user (or nobody) holds the session.
// It is meant to be registered with SessionService.Subscribe.
func (s *ImageService) SessionChanged(snap Snapshot) {
	var owner domainauth.FlexString
	if snap.Identity != nil {
		owner = snap.Identity.ID
	}
	s.mu.Lock()
	changed := owner != s.owner
	s.owner = owner
	s.mu.Unlock()

	if changed {
		s.Purge()
	}
}

// Purge empties the analysis cache.
func (s *ImageService) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *ImageService) remember(img model.OCTImage) {
	if img.AnalysisResult != nil {
		s.cacheAnalysis(img.ID, *img.AnalysisResult)
	}
}

// cacheAnalysis keeps finished analyses only; failed ones may be re-run server-side.
func (s *ImageService) cacheAnalysis(imageID string, r model.AnalysisResult) {
	if s.cache == nil || r.Failed() || imageID == "" {
		return
	}
	s.cache.Add(imageID, r)
}
