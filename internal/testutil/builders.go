package testutil

import (
	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

// IdentityBuilder provides a fluent interface for building identities for testing.
type IdentityBuilder struct {
	id domainauth.Identity
}

// NewIdentity creates an IdentityBuilder with sensible defaults.
func NewIdentity() *IdentityBuilder {
	return &IdentityBuilder{id: domainauth.Identity{
		ID:            "1",
		Username:      "doc1",
		Email:         "doc1@example.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Hospital:      "St Mary",
		Specialty:     "Retina",
		Role:          "general",
		LicenseNumber: "L-0001",
	}}
}

// WithID sets the user id.
func (b *IdentityBuilder) WithID(id string) *IdentityBuilder {
	b.id.ID = domainauth.FlexString(id)
	return b
}

// WithUsername sets the username and derives the email from it.
func (b *IdentityBuilder) WithUsername(username string) *IdentityBuilder {
	b.id.Username = username
	b.id.Email = username + "@example.com"
	return b
}

// WithHospital sets the hospital.
func (b *IdentityBuilder) WithHospital(hospital string) *IdentityBuilder {
	b.id.Hospital = hospital
	return b
}

// Build returns a copy of the identity.
func (b *IdentityBuilder) Build() *domainauth.Identity {
	id := b.id
	return &id
}

// SessionFor builds a stored session for identity with the given token pair.
func SessionFor(access, refresh string, identity *domainauth.Identity) domainauth.Session {
	return domainauth.NewSession(domainauth.Tokens{Access: access, Refresh: refresh}, identity)
}
