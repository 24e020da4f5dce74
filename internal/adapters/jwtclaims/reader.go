// Package jwtclaims reads claims from access tokens without verifying them. The client
// does not hold the signing key; claims are only used to detect a cached identity that
// belongs to another user.
package jwtclaims

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

// UserIDClaim is the claim the backend stores the user's primary key under.
const UserIDClaim = "user_id"

// Reader implements ports.SubjectReader.
type Reader struct{}

// Subject returns the user_id claim, falling back to "sub".
func (Reader) Subject(accessToken string) (domainauth.FlexString, bool) {
	claims, ok := parse(accessToken)
	if !ok {
		return "", false
	}
	if id, ok := domainauth.ParseUserID(claims[UserIDClaim]); ok {
		return id, true
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return domainauth.FlexString(sub), true
}

// ExpiresAt returns the exp claim, for status output.
func (Reader) ExpiresAt(accessToken string) (time.Time, bool) {
	claims, ok := parse(accessToken)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func parse(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
