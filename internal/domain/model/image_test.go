package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCTImage_ListShape(t *testing.T) {
	raw := `{
		"id": "6f1c0f44-8d3e-4e55-9a43-0b0f6c7d9e01",
		"doctor": 3,
		"image_file": "http://localhost:8000/media/oct_images/scan.png",
		"upload_date": "2025-03-01T10:00:00Z",
		"custom_id": null
	}`
	var img OCTImage
	require.NoError(t, json.Unmarshal([]byte(raw), &img))

	assert.Equal(t, "3", img.Doctor.ID.String())
	assert.Nil(t, img.Doctor.Profile)
	assert.Nil(t, img.CustomID)
	assert.False(t, img.Analyzed())
	assert.Equal(t, img.ID, img.Label())
}

func TestOCTImage_DetailShape(t *testing.T) {
	raw := `{
		"id": "img-1",
		"doctor": {"user": {"id": 3, "first_name": "Ada"}, "hospital": "St Mary"},
		"image_file": "/media/oct_images/scan.png",
		"upload_date": "2025-03-01T10:00:00Z",
		"custom_id": "P-77",
		"analysis_result": {
			"id": "res-1",
			"oct_image": "img-1",
			"classification": "DRUSEN",
			"findings": "Drusen deposits present.",
			"analysis_image": null,
			"analysis_date": "2025-03-01T10:00:05Z"
		}
	}`
	var img OCTImage
	require.NoError(t, json.Unmarshal([]byte(raw), &img))

	require.NotNil(t, img.Doctor.Profile)
	assert.Equal(t, "3", img.Doctor.ID.String())
	assert.Equal(t, "St Mary", img.Doctor.Profile.Hospital)
	assert.Equal(t, "P-77", img.Label())
	require.True(t, img.Analyzed())
	assert.Equal(t, "img-1", img.AnalysisResult.OCTImage.ID)
	assert.Nil(t, img.AnalysisResult.AnalysisImage)
	assert.False(t, img.AnalysisResult.Failed())
}

func TestAnalysisResult_EmbeddedImage(t *testing.T) {
	raw := `{
		"id": "res-1",
		"oct_image": {"id": "img-1", "doctor": 3, "image_file": "x.png", "upload_date": "2025-03-01T10:00:00Z"},
		"classification": "Error",
		"findings": "",
		"analysis_date": "2025-03-01T10:00:05Z"
	}`
	var res AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))

	assert.Equal(t, "img-1", res.OCTImage.ID)
	require.NotNil(t, res.OCTImage.Image)
	assert.True(t, res.Failed())

	out, err := json.Marshal(res.OCTImage)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"image_file":"x.png"`)
}

func TestDoctorRef_MarshalID(t *testing.T) {
	out, err := json.Marshal(DoctorRef{ID: "9"})
	require.NoError(t, err)
	assert.JSONEq(t, `"9"`, string(out))

	out, err = json.Marshal(DoctorRef{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestImageUpload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		upload  ImageUpload
		wantErr string
	}{
		{
			name:    "missing content",
			upload:  ImageUpload{Filename: "scan.png"},
			wantErr: "image content is required",
		},
		{
			name:    "missing filename",
			upload:  ImageUpload{Filename: "  ", Content: strings.NewReader("x")},
			wantErr: "image filename is required",
		},
		{
			name:    "custom id too long",
			upload:  ImageUpload{Filename: "scan.png", Content: strings.NewReader("x"), CustomID: strings.Repeat("a", 51)},
			wantErr: "custom_id cannot exceed 50 characters",
		},
		{
			name:   "valid",
			upload: ImageUpload{Filename: " scan.png ", Content: strings.NewReader("x"), CustomID: " P-1 "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.upload.Validate()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "scan.png", tt.upload.Filename)
			assert.Equal(t, "P-1", tt.upload.CustomID)
		})
	}
}
