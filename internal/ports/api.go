package ports

import (
	"context"
	"encoding/json"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
)

// AccountAPI covers the credential and doctor-profile endpoints.
type AccountAPI interface {
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error)
	Signup(ctx context.Context, reg domainauth.Registration) (domainauth.AuthResult, error)
	Me(ctx context.Context) (domainauth.Identity, error)
	// UpdateProfile returns the raw response so callers can merge it into a cached identity.
	UpdateProfile(ctx context.Context, upd domainauth.ProfileUpdate) (json.RawMessage, error)
}

// ImageAPI covers the image and analysis-result endpoints.
type ImageAPI interface {
	UploadImage(ctx context.Context, up model.ImageUpload) (model.OCTImage, error)
	ListImages(ctx context.Context, q model.ImageQuery) ([]model.OCTImage, error)
	GetImage(ctx context.Context, id string) (model.OCTImage, error)
	ListAnalysisResults(ctx context.Context, imageID string) ([]model.AnalysisResult, error)
	AnalysisByImage(ctx context.Context, imageID string) (model.AnalysisResult, error)
}

// ReviewAPI covers the review endpoints.
type ReviewAPI interface {
	ListReviews(ctx context.Context, q model.ReviewQuery) ([]model.Review, error)
	CreateReview(ctx context.Context, in model.CreateReviewRequest) (model.Review, error)
	UpdateReview(ctx context.Context, id string, in model.UpdateReviewRequest) (model.Review, error)
	DeleteReview(ctx context.Context, id string) error
}
