package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/mocks"
	"github.com/oculus-oct/oculus-go/internal/testutil"
)

func newImageService(t *testing.T, opts ImageServiceOptions) (*ImageService, *mocks.MockImageAPI, *testutil.RecordingSink) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockImageAPI(ctrl)
	sink := &testutil.RecordingSink{}
	opts.API = api
	opts.Metrics = sink
	svc, err := NewImageService(opts)
	require.NoError(t, err)
	return svc, api, sink
}

func analysis(id, imageID, class string) model.AnalysisResult {
	return model.AnalysisResult{ID: id, OCTImage: model.ImageRef{ID: imageID}, Classification: class}
}

func TestNewImageService(t *testing.T) {
	_, err := NewImageService(ImageServiceOptions{})
	require.EqualError(t, err, "API is required")

	svc, _, _ := newImageService(t, ImageServiceOptions{})
	assert.NotNil(t, svc.cache)
	assert.Equal(t, defaultFetchConcurrency, svc.concurrency)

	svc, _, _ = newImageService(t, ImageServiceOptions{CacheSize: -1})
	assert.Nil(t, svc.cache)
}

func TestImageService_Upload(t *testing.T) {
	svc, api, sink := newImageService(t, ImageServiceOptions{})
	ctx := context.Background()

	_, err := svc.Upload(ctx, model.ImageUpload{Filename: "scan.png"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Upload(ctx, model.ImageUpload{
		Filename: "scan.png", Content: strings.NewReader("x"), CustomID: strings.Repeat("a", 51),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	res := analysis("a1", "img1", "DME")
	api.EXPECT().UploadImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, up model.ImageUpload) (model.OCTImage, error) {
			assert.Equal(t, "P-7", up.CustomID, "custom id is trimmed")
			return model.OCTImage{ID: "img1", AnalysisResult: &res}, nil
		})
	img, err := svc.Upload(ctx, model.ImageUpload{Filename: "scan.png", Content: strings.NewReader("x"), CustomID: " P-7 "})
	require.NoError(t, err)
	assert.True(t, img.Analyzed())

	// the upload's analysis is served from cache
	got := svc.AnalysisForImage(ctx, "img1")
	require.Len(t, got, 1)
	assert.Equal(t, "DME", got[0].Classification)
	assert.Equal(t, int64(1), sink.Total("cache.analysis", map[string]string{"result": "hit"}))
}

func TestImageService_AnalysisForImage(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		svc, api, sink := newImageService(t, ImageServiceOptions{})
		api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").
			Return([]model.AnalysisResult{analysis("a1", "img1", "normal")}, nil).Times(1)

		first := svc.AnalysisForImage(context.Background(), "img1")
		second := svc.AnalysisForImage(context.Background(), "img1")
		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), sink.Total("cache.analysis", map[string]string{"result": "miss"}))
		assert.Equal(t, int64(1), sink.Total("cache.analysis", map[string]string{"result": "hit"}))
	})

	t.Run("failure is an empty slice", func(t *testing.T) {
		svc, api, _ := newImageService(t, ImageServiceOptions{})
		api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").Return(nil, apperrors.Internal("boom"))

		got := svc.AnalysisForImage(context.Background(), "img1")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("no results is an empty slice", func(t *testing.T) {
		svc, api, _ := newImageService(t, ImageServiceOptions{})
		api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").Return(nil, nil)

		got := svc.AnalysisForImage(context.Background(), "img1")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("failed analyses are not cached", func(t *testing.T) {
		svc, api, _ := newImageService(t, ImageServiceOptions{})
		api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").
			Return([]model.AnalysisResult{analysis("a1", "img1", "Error")}, nil).Times(2)

		svc.AnalysisForImage(context.Background(), "img1")
		svc.AnalysisForImage(context.Background(), "img1")
	})

	t.Run("cache disabled", func(t *testing.T) {
		svc, api, sink := newImageService(t, ImageServiceOptions{CacheSize: -1})
		api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").
			Return([]model.AnalysisResult{analysis("a1", "img1", "normal")}, nil).Times(2)

		svc.AnalysisForImage(context.Background(), "img1")
		svc.AnalysisForImage(context.Background(), "img1")
		assert.Empty(t, sink.Named("cache.analysis"))
	})
}

func TestImageService_SessionChangedPurgesCache(t *testing.T) {
	svc, api, _ := newImageService(t, ImageServiceOptions{})
	api.EXPECT().ListAnalysisResults(gomock.Any(), "img1").
		Return([]model.AnalysisResult{analysis("a1", "img1", "normal")}, nil).Times(2)

	doc1 := Snapshot{State: domainauth.StateConfirmed, Identity: testutil.NewIdentity().Build()}
	svc.SessionChanged(doc1)
	svc.AnalysisForImage(context.Background(), "img1")

	// same owner, new state: cache kept
	svc.SessionChanged(Snapshot{State: domainauth.StateOptimistic, Identity: doc1.Identity})
	svc.AnalysisForImage(context.Background(), "img1")
	assert.Equal(t, 1, svc.cache.Len())

	svc.SessionChanged(Snapshot{State: domainauth.StateAnonymous})
	assert.Zero(t, svc.cache.Len())
	svc.AnalysisForImage(context.Background(), "img1")
}

func TestImageService_GetMany(t *testing.T) {
	t.Run("keeps order", func(t *testing.T) {
		svc, api, _ := newImageService(t, ImageServiceOptions{Concurrency: 2})
		var inFlight, peak atomic.Int32
		api.EXPECT().GetImage(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, id string) (model.OCTImage, error) {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				return model.OCTImage{ID: id}, nil
			}).Times(5)

		ids := []string{"a", "b", "c", "d", "e"}
		got, err := svc.GetMany(context.Background(), ids)
		require.NoError(t, err)
		require.Len(t, got, len(ids))
		for i, id := range ids {
			assert.Equal(t, id, got[i].ID)
		}
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("first error wins", func(t *testing.T) {
		svc, api, _ := newImageService(t, ImageServiceOptions{Concurrency: 1})
		api.EXPECT().GetImage(gomock.Any(), "a").Return(model.OCTImage{ID: "a"}, nil)
		api.EXPECT().GetImage(gomock.Any(), "missing").Return(model.OCTImage{}, apperrors.NotFound("Not found."))
		api.EXPECT().GetImage(gomock.Any(), "c").Return(model.OCTImage{ID: "c"}, nil).AnyTimes()

		_, err := svc.GetMany(context.Background(), []string{"a", "missing", "c"})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _, _ := newImageService(t, ImageServiceOptions{})
		_, err := svc.GetMany(context.Background(), []string{""})
		require.Error(t, err)
		assert.Equal(t, "id", apperrors.GetField(err))
	})
}

func TestImageService_Passthrough(t *testing.T) {
	svc, api, _ := newImageService(t, ImageServiceOptions{})
	ctx := context.Background()

	q := model.ImageQuery{Search: "P-0", Ordering: "-upload_date"}
	api.EXPECT().ListImages(gomock.Any(), q).Return([]model.OCTImage{{ID: "x"}}, nil)
	list, err := svc.List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	api.EXPECT().ListAnalysisResults(gomock.Any(), "").Return(nil, errors.New("offline"))
	_, err = svc.AnalysisResults(ctx, "")
	require.EqualError(t, err, "offline")
}
