package ports_test

import (
	"testing"

	"github.com/oculus-oct/oculus-go/internal/adapters/jwtclaims"
	"github.com/oculus-oct/oculus-go/internal/mocks"
	mocksauth "github.com/oculus-oct/oculus-go/internal/mocks/auth"
	"github.com/oculus-oct/oculus-go/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionStore = (*mocksauth.MemorySessionStore)(nil)
	var _ ports.CredentialRefresher = (*mocksauth.StubRefresher)(nil)
	var _ ports.SessionStore = (*mocks.MockSessionStore)(nil)
	var _ ports.CredentialRefresher = (*mocks.MockCredentialRefresher)(nil)
	var _ ports.SessionListener = (*mocks.MockSessionListener)(nil)
	var _ ports.SessionListener = ports.SessionListenerFunc(nil)
	var _ ports.SubjectReader = jwtclaims.Reader{}
	var _ ports.AccountAPI = (*mocks.MockAccountAPI)(nil)
	var _ ports.ImageAPI = (*mocks.MockImageAPI)(nil)
	var _ ports.ReviewAPI = (*mocks.MockReviewAPI)(nil)
}
