package auth

import (
	"errors"
	"io"
	"net/mail"
	"strings"
)

// Credentials is a username/password pair for the token endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates Credentials.
func (c *Credentials) Validate() error {
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Picture is a profile picture to upload.
type Picture struct {
	Filename string
	Content  io.Reader
}

// Registration carries the signup form.
type Registration struct {
	Username       string
	Password       string
	Email          string
	FirstName      string
	LastName       string
	Hospital       string
	Specialty      string
	Role           string
	LicenseNumber  string
	PhoneNumber    string
	ProfilePicture *Picture
}

// Validate validates Registration.
func (r *Registration) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if r.Username == "" {
		return errors.New("username is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is not a valid address")
	}
	if r.ProfilePicture != nil && r.ProfilePicture.Content == nil {
		return errors.New("profile picture has no content")
	}
	return nil
}

// registrationOrder is the field order of the signup form.
var registrationOrder = []string{
	"username", "password", "email", "first_name", "last_name",
	"hospital", "specialty", "role", "license_number", "phone_number",
}

// Fields returns the non-empty text fields keyed by their wire names, plus their order.
func (r Registration) Fields() ([]string, map[string]string) {
	all := map[string]string{
		"username":       r.Username,
		"password":       r.Password,
		"email":          r.Email,
		"first_name":     r.FirstName,
		"last_name":      r.LastName,
		"hospital":       r.Hospital,
		"specialty":      r.Specialty,
		"role":           r.Role,
		"license_number": r.LicenseNumber,
		"phone_number":   r.PhoneNumber,
	}
	return compact(registrationOrder, all)
}

// ProfileUpdate is a partial profile edit. Nil fields are left untouched on the server.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	Email          *string
	Hospital       *string
	Specialty      *string
	Role           *string
	LicenseNumber  *string
	PhoneNumber    *string
	ProfilePicture *Picture
}

var profileOrder = []string{
	"first_name", "last_name", "email", "hospital", "specialty",
	"role", "license_number", "phone_number",
}

// Fields returns the set fields keyed by their wire names, plus their order.
// Set-but-empty values are kept so a field can be blanked.
func (u ProfileUpdate) Fields() ([]string, map[string]string) {
	ptrs := map[string]*string{
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"email":          u.Email,
		"hospital":       u.Hospital,
		"specialty":      u.Specialty,
		"role":           u.Role,
		"license_number": u.LicenseNumber,
		"phone_number":   u.PhoneNumber,
	}
	keys := make([]string, 0, len(ptrs))
	out := make(map[string]string, len(ptrs))
	for _, k := range profileOrder {
		if p := ptrs[k]; p != nil {
			keys = append(keys, k)
			out[k] = *p
		}
	}
	return keys, out
}

// Validate validates ProfileUpdate.
func (u ProfileUpdate) Validate() error {
	keys, fields := u.Fields()
	if len(keys) == 0 && u.ProfilePicture == nil {
		return errors.New("at least one field must be updated")
	}
	if email, ok := fields["email"]; ok && email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return errors.New("email is not a valid address")
		}
	}
	if u.ProfilePicture != nil && u.ProfilePicture.Content == nil {
		return errors.New("profile picture has no content")
	}
	return nil
}

func compact(order []string, all map[string]string) ([]string, map[string]string) {
	keys := make([]string, 0, len(order))
	out := make(map[string]string, len(order))
	for _, k := range order {
		if v := all[k]; v != "" {
			keys = append(keys, k)
			out[k] = v
		}
	}
	return keys, out
}
