package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// Backend paths, relative to the API base URL.
const (
	LoginPath         = "/token/"
	SignupPath        = "/doctors/signup/"
	MePath            = "/doctors/me/"
	UpdateProfilePath = "/doctors/update_profile/"
	ImagesPath        = "/oct-images/"
	AnalysisPath      = "/analysis-results/"
	ReviewsPath       = "/reviews/"
)

// Doer sends a pending request. *Pipeline is the production implementation.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client wraps every backend endpoint with typed requests and responses.
// Non-2xx responses surface as *errors.AppError.
type Client struct {
	doer Doer
}

var (
	_ ports.AccountAPI = (*Client)(nil)
	_ ports.ImageAPI   = (*Client)(nil)
	_ ports.ReviewAPI  = (*Client)(nil)
)

// NewClient returns a Client sending through doer.
func NewClient(doer Doer) *Client {
	return &Client{doer: doer}
}

type authResponse struct {
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	User    json.RawMessage `json:"user"`
}

func (a authResponse) result() (domainauth.AuthResult, error) {
	tokens := domainauth.Tokens{Access: a.Access, Refresh: a.Refresh}
	if !tokens.Complete() {
		return domainauth.AuthResult{}, apperrors.Internal("Authentication response carried no credentials.")
	}
	id, err := domainauth.ParseIdentity(a.User)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Authentication response carried no user profile.")
	}
	return domainauth.AuthResult{Tokens: tokens, Identity: id}, nil
}

// Login exchanges credentials for a token pair and identity.
func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error) {
	req, err := NewJSONRequest(http.MethodPost, LoginPath, creds)
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	var out authResponse
	if err := c.call(ctx, req.WithAuth(AuthNone), &out); err != nil {
		return domainauth.AuthResult{}, err
	}
	return out.result()
}

// Signup registers a doctor account. A profile picture switches the body to multipart.
func (c *Client) Signup(ctx context.Context, reg domainauth.Registration) (domainauth.AuthResult, error) {
	keys, fields := reg.Fields()
	var (
		req *Request
		err error
	)
	if reg.ProfilePicture != nil {
		form := NewForm().SetAll(keys, fields).
			File("profile_picture", reg.ProfilePicture.Filename, reg.ProfilePicture.Content)
		req, err = NewMultipartRequest(http.MethodPost, SignupPath, form)
	} else {
		req, err = NewJSONRequest(http.MethodPost, SignupPath, fields)
	}
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	var out authResponse
	if err := c.call(ctx, req.WithAuth(AuthNone), &out); err != nil {
		return domainauth.AuthResult{}, err
	}
	return out.result()
}

// Me fetches the authoritative identity of the authenticated doctor.
func (c *Client) Me(ctx context.Context) (domainauth.Identity, error) {
	var raw json.RawMessage
	if err := c.call(ctx, NewRequest(http.MethodGet, MePath), &raw); err != nil {
		return domainauth.Identity{}, err
	}
	id, err := domainauth.ParseIdentity(raw)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Malformed profile response.")
	}
	return id, nil
}

// UpdateProfile sends a partial profile edit and returns the raw response fields
// for the caller to merge into its cached identity.
func (c *Client) UpdateProfile(ctx context.Context, upd domainauth.ProfileUpdate) (json.RawMessage, error) {
	keys, fields := upd.Fields()
	var (
		req *Request
		err error
	)
	if upd.ProfilePicture != nil {
		form := NewForm().SetAll(keys, fields).
			File("profile_picture", upd.ProfilePicture.Filename, upd.ProfilePicture.Content)
		req, err = NewMultipartRequest(http.MethodPatch, UpdateProfilePath, form)
	} else {
		req, err = NewJSONRequest(http.MethodPatch, UpdateProfilePath, fields)
	}
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UploadImage uploads a scan. The backend runs the analysis synchronously and
// returns the image with its analysis attached.
func (c *Client) UploadImage(ctx context.Context, up model.ImageUpload) (model.OCTImage, error) {
	form := NewForm()
	if up.CustomID != "" {
		form.Set("custom_id", up.CustomID)
	}
	form.File("image_file", up.Filename, up.Content)
	req, err := NewMultipartRequest(http.MethodPost, ImagesPath, form)
	if err != nil {
		return model.OCTImage{}, err
	}
	var out model.OCTImage
	if err := c.call(ctx, req, &out); err != nil {
		return model.OCTImage{}, err
	}
	return out, nil
}

// ListImages lists the authenticated doctor's images.
func (c *Client) ListImages(ctx context.Context, q model.ImageQuery) ([]model.OCTImage, error) {
	req := NewRequest(http.MethodGet, ImagesPath).
		WithQuery("search", q.Search).
		WithQuery("ordering", q.Ordering)
	return callList[model.OCTImage](ctx, c, req)
}

// GetImage fetches one image with its analysis, when present.
func (c *Client) GetImage(ctx context.Context, id string) (model.OCTImage, error) {
	var out model.OCTImage
	if err := c.call(ctx, NewRequest(http.MethodGet, ImagesPath+url.PathEscape(id)+"/"), &out); err != nil {
		return model.OCTImage{}, err
	}
	return out, nil
}

// ListAnalysisResults lists analysis results, optionally for a single image.
func (c *Client) ListAnalysisResults(ctx context.Context, imageID string) ([]model.AnalysisResult, error) {
	req := NewRequest(http.MethodGet, AnalysisPath).WithQuery("oct_image", imageID)
	return callList[model.AnalysisResult](ctx, c, req)
}

// AnalysisByImage fetches the analysis result of one image.
func (c *Client) AnalysisByImage(ctx context.Context, imageID string) (model.AnalysisResult, error) {
	var out model.AnalysisResult
	path := AnalysisPath + "by-image/" + url.PathEscape(imageID) + "/"
	if err := c.call(ctx, NewRequest(http.MethodGet, path), &out); err != nil {
		return model.AnalysisResult{}, err
	}
	return out, nil
}

// ListReviews lists reviews, newest first unless ordered otherwise.
func (c *Client) ListReviews(ctx context.Context, q model.ReviewQuery) ([]model.Review, error) {
	req := NewRequest(http.MethodGet, ReviewsPath).
		WithQuery("analysis_result", q.AnalysisResult).
		WithQuery("ordering", q.Ordering)
	return callList[model.Review](ctx, c, req)
}

// CreateReview submits a review.
func (c *Client) CreateReview(ctx context.Context, in model.CreateReviewRequest) (model.Review, error) {
	req, err := NewJSONRequest(http.MethodPost, ReviewsPath, in)
	if err != nil {
		return model.Review{}, err
	}
	var out model.Review
	if err := c.call(ctx, req, &out); err != nil {
		return model.Review{}, err
	}
	return out, nil
}

// UpdateReview partially updates a review owned by the caller.
func (c *Client) UpdateReview(ctx context.Context, id string, in model.UpdateReviewRequest) (model.Review, error) {
	req, err := NewJSONRequest(http.MethodPatch, ReviewsPath+url.PathEscape(id)+"/", in)
	if err != nil {
		return model.Review{}, err
	}
	var out model.Review
	if err := c.call(ctx, req, &out); err != nil {
		return model.Review{}, err
	}
	return out, nil
}

// DeleteReview deletes a review owned by the caller.
func (c *Client) DeleteReview(ctx context.Context, id string) error {
	return c.call(ctx, NewRequest(http.MethodDelete, ReviewsPath+url.PathEscape(id)+"/"), nil)
}

func (c *Client) call(ctx context.Context, req *Request, out any) error {
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// callList decodes a bare JSON array or a paginated {"results": [...]} envelope.
func callList[T any](ctx context.Context, c *Client, req *Request) ([]T, error) {
	var raw json.RawMessage
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Malformed list response.")
		}
		trimmed = page.Results
	}
	out := []T{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("decode %s: %w", req.Path, err), apperrors.ErrCodeInternal, "Malformed list response.")
	}
	return out, nil
}
