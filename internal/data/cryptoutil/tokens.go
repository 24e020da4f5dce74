package cryptoutil

import (
	"fmt"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

// SealTokens seals both halves of a token pair under their persisted key names.
func SealTokens(s Sealer, t domainauth.Tokens) (access, refresh string, err error) {
	if access, err = SealString(s, domainauth.KeyAccessToken, t.Access); err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	if refresh, err = SealString(s, domainauth.KeyRefreshToken, t.Refresh); err != nil {
		return "", "", fmt.Errorf("seal refresh token: %w", err)
	}
	return access, refresh, nil
}

// OpenTokens is the inverse of SealTokens.
func OpenTokens(s Sealer, access, refresh string) (domainauth.Tokens, error) {
	var (
		t   domainauth.Tokens
		err error
	)
	if t.Access, err = OpenString(s, domainauth.KeyAccessToken, access); err != nil {
		return domainauth.Tokens{}, fmt.Errorf("open access token: %w", err)
	}
	if t.Refresh, err = OpenString(s, domainauth.KeyRefreshToken, refresh); err != nil {
		return domainauth.Tokens{}, fmt.Errorf("open refresh token: %w", err)
	}
	return t, nil
}
