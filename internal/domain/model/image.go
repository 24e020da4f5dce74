package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

const maxCustomIDLen = 50

// DoctorRef is the owner reference on an image record.
// List endpoints return the doctor primary key; detail endpoints embed the full profile.
type DoctorRef struct {
	ID      domainauth.FlexString
	Profile *domainauth.Identity
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DoctorRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		id, err := domainauth.ParseIdentity(data)
		if err != nil {
			return fmt.Errorf("doctor profile: %w", err)
		}
		d.ID = id.ID
		d.Profile = &id
		return nil
	}
	return d.ID.UnmarshalJSON(data)
}

// MarshalJSON implements json.Marshaler.
func (d DoctorRef) MarshalJSON() ([]byte, error) {
	if d.Profile != nil {
		return json.Marshal(d.Profile)
	}
	if d.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.ID)
}

// OCTImage is an uploaded optical coherence tomography scan.
type OCTImage struct {
	ID             string          `json:"id"`
	Doctor         DoctorRef       `json:"doctor"`
	ImageFile      string          `json:"image_file"`
	UploadDate     time.Time       `json:"upload_date"`
	CustomID       *string         `json:"custom_id,omitempty"`
	AnalysisResult *AnalysisResult `json:"analysis_result,omitempty"`
}

// Label returns the custom id when set, falling back to the record id.
func (i OCTImage) Label() string {
	if i.CustomID != nil && *i.CustomID != "" {
		return *i.CustomID
	}
	return i.ID
}

// Analyzed reports whether the AI analysis has been attached to the image.
func (i OCTImage) Analyzed() bool { return i.AnalysisResult != nil }

// ImageRef is the image reference on an analysis result: an id, or the embedded record on detail endpoints.
type ImageRef struct {
	ID    string
	Image *OCTImage
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ImageRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var img OCTImage
		if err := json.Unmarshal(data, &img); err != nil {
			return fmt.Errorf("oct image: %w", err)
		}
		r.ID = img.ID
		r.Image = &img
		return nil
	}
	return json.Unmarshal(data, &r.ID)
}

// MarshalJSON implements json.Marshaler.
func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r.Image != nil {
		return json.Marshal(r.Image)
	}
	return json.Marshal(r.ID)
}

// AnalysisResult is the AI classification attached to an OCT image.
type AnalysisResult struct {
	ID             string    `json:"id"`
	OCTImage       ImageRef  `json:"oct_image"`
	Classification string    `json:"classification"`
	Findings       string    `json:"findings"`
	AnalysisImage  *string   `json:"analysis_image,omitempty"`
	AnalysisDate   time.Time `json:"analysis_date"`
}

// Failed reports whether the analysis service returned its error category.
func (a AnalysisResult) Failed() bool {
	return strings.EqualFold(a.Classification, "error")
}

// ImageUpload carries a scan to upload.
type ImageUpload struct {
	Filename string
	Content  io.Reader
	CustomID string
}

// Validate validates ImageUpload.
func (u *ImageUpload) Validate() error {
	if u.Content == nil {
		return errors.New("image content is required")
	}
	u.Filename = strings.TrimSpace(u.Filename)
	if u.Filename == "" {
		return errors.New("image filename is required")
	}
	u.CustomID = strings.TrimSpace(u.CustomID)
	if utf8.RuneCountInString(u.CustomID) > maxCustomIDLen {
		return errors.New("custom_id cannot exceed 50 characters")
	}
	return nil
}
