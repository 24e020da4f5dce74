// Package mocks provides gomock mocks for the session ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in
// internal/ports. The generated files are checked in; regenerate them after interface changes:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockSessionStore(ctrl)
//	store.EXPECT().Get(gomock.Any()).Return(domainauth.Session{}, nil)
package mocks

// SessionStore: Get, Set, Clear, SetIdentity, RotateTokens
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/oculus-oct/oculus-go/internal/ports SessionStore

// CredentialRefresher: Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_refresher_mock.go github.com/oculus-oct/oculus-go/internal/ports CredentialRefresher

// SessionListener: SessionLost
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_listener_mock.go github.com/oculus-oct/oculus-go/internal/ports SessionListener

// AccountAPI: Login, Signup, Me, UpdateProfile
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=account_api_mock.go github.com/oculus-oct/oculus-go/internal/ports AccountAPI

// ImageAPI: UploadImage, ListImages, GetImage, ListAnalysisResults, AnalysisByImage
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=image_api_mock.go github.com/oculus-oct/oculus-go/internal/ports ImageAPI

// ReviewAPI: ListReviews, CreateReview, UpdateReview, DeleteReview
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=review_api_mock.go github.com/oculus-oct/oculus-go/internal/ports ReviewAPI
