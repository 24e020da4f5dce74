package model

import (
	"errors"
	"strings"
	"time"
)

const (
	minRating = 1
	maxRating = 5
)

// ReviewAuthor is the public projection of the reviewing doctor.
type ReviewAuthor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Review is a doctor's rating of an analysis result.
type Review struct {
	ID             string       `json:"id"`
	AnalysisResult *string      `json:"analysis_result,omitempty"`
	Doctor         ReviewAuthor `json:"doctor"`
	Rating         int          `json:"rating"`
	Comments       string       `json:"comments"`
	ReviewDate     time.Time    `json:"review_date"`
	IsOwner        bool         `json:"is_owner"`
}

// CreateReviewRequest represents parameters to submit a Review.
type CreateReviewRequest struct {
	AnalysisResult string `json:"analysis_result,omitempty"`
	Rating         int    `json:"rating"`
	Comments       string `json:"comments"`
}

// UpdateReviewRequest represents parameters to update a Review.
type UpdateReviewRequest struct {
	Rating   *int    `json:"rating,omitempty"`
	Comments *string `json:"comments,omitempty"`
}

func validRating(r int) bool { return r >= minRating && r <= maxRating }

// Validate validates CreateReviewRequest.
func (r *CreateReviewRequest) Validate() error {
	if !validRating(r.Rating) {
		return errors.New("rating must be between 1 and 5")
	}
	r.Comments = strings.TrimSpace(r.Comments)
	if r.Comments == "" {
		return errors.New("comments are required")
	}
	r.AnalysisResult = strings.TrimSpace(r.AnalysisResult)
	return nil
}

// HasUpdates reports whether any field is set in UpdateReviewRequest.
func (r *UpdateReviewRequest) HasUpdates() bool {
	return r.Rating != nil || r.Comments != nil
}

// Validate validates UpdateReviewRequest, ensuring at least one field is set and values are sane.
func (r *UpdateReviewRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Rating != nil && !validRating(*r.Rating) {
		return errors.New("rating must be between 1 and 5")
	}
	if r.Comments != nil {
		c := strings.TrimSpace(*r.Comments)
		if c == "" {
			return errors.New("comments cannot be empty")
		}
		r.Comments = &c
	}
	return nil
}
