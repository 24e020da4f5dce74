package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oculus-oct/oculus-go/internal/domain/model"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// ReviewServiceOptions groups dependencies for ReviewService.
type ReviewServiceOptions struct {
	API    ports.ReviewAPI
	Logger *slog.Logger
}

// ReviewService manages doctors' reviews of analysis results.
type ReviewService struct {
	api    ports.ReviewAPI
	logger *slog.Logger
}

// NewReviewService constructs a new ReviewService.
func NewReviewService(opts ReviewServiceOptions) (*ReviewService, error) {
	if opts.API == nil {
		return nil, errors.New("API is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{api: opts.API, logger: logger.With("component", "review_service")}, nil
}

// MutationResult is the outcome of a review mutation plus the re-fetched list.
// Reviews is nil when the re-fetch failed; the mutation itself still succeeded.
type MutationResult struct {
	Review  *model.Review  `json:"review,omitempty"`
	Reviews []model.Review `json:"reviews"`
}

// List lists reviews, for one analysis result when analysisID is set.
func (s *ReviewService) List(ctx context.Context, analysisID, ordering string) ([]model.Review, error) {
	return s.api.ListReviews(ctx, model.ReviewQuery{AnalysisResult: analysisID, Ordering: ordering})
}

// Submit creates a review and re-fetches the reviews of its analysis.
func (s *ReviewService) Submit(ctx context.Context, in model.CreateReviewRequest) (MutationResult, error) {
	if err := in.Validate(); err != nil {
		return MutationResult{}, apperrors.Validation(err.Error())
	}
	rv, err := s.api.CreateReview(ctx, in)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Review: &rv, Reviews: s.refetch(ctx, in.AnalysisResult)}, nil
}

// Update partially updates a review and re-fetches the reviews of its analysis.
func (s *ReviewService) Update(ctx context.Context, id string, in model.UpdateReviewRequest) (MutationResult, error) {
	if id == "" {
		return MutationResult{}, apperrors.ValidationField("id", "review id is required")
	}
	if err := in.Validate(); err != nil {
		return MutationResult{}, apperrors.Validation(err.Error())
	}
	rv, err := s.api.UpdateReview(ctx, id, in)
	if err != nil {
		return MutationResult{}, err
	}
	var analysisID string
	if rv.AnalysisResult != nil {
		analysisID = *rv.AnalysisResult
	}
	return MutationResult{Review: &rv, Reviews: s.refetch(ctx, analysisID)}, nil
}

// Delete deletes a review and re-fetches the reviews of analysisID (all reviews when empty).
func (s *ReviewService) Delete(ctx context.Context, id, analysisID string) (MutationResult, error) {
	if id == "" {
		return MutationResult{}, apperrors.ValidationField("id", "review id is required")
	}
	if err := s.api.DeleteReview(ctx, id); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Reviews: s.refetch(ctx, analysisID)}, nil
}

// refetch is best-effort; a failure is logged and yields nil.
func (s *ReviewService) refetch(ctx context.Context, analysisID string) []model.Review {
	reviews, err := s.List(ctx, analysisID, "")
	if err != nil {
		s.logger.WarnContext(ctx, "re-fetch reviews after mutation failed", "analysis_id", analysisID, "error", err)
		return nil
	}
	return reviews
}
